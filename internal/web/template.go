package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/water-heater/internal/sensor"
	"github.com/sweeney/water-heater/internal/status"
)

var funcs = template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"temp": func(v float64, ok bool) string {
		if !ok {
			return "-"
		}
		return fmt.Sprintf("%.1f °C", v)
	},
	"ms": func(v int64) string {
		if v == 0 {
			return "disabled"
		}
		return fmt.Sprintf("%dms", v)
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(funcs).Parse(indexHTML))

var simulateTmpl = template.Must(template.New("simulate").Parse(simulateHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Water Heater</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Water Heater</h1>

<h2>State</h2>
<table>
<tr><th>Heater</th><td id="heater-state" class="{{if eq .HeaterString "ON"}}on{{else if eq .HeaterString "OFF"}}off{{else}}unknown{{end}}">{{.HeaterString}}</td></tr>
{{if .Fault}}<tr><th>Sensor</th><td class="fault">Sensor Fault! ({{.Fault}})</td></tr>{{end}}
<tr><th>Current</th><td>{{temp .Raw .RawOK}}</td></tr>
<tr><th>Smoothed</th><td>{{temp .Smoothed .SmoothedOK}}</td></tr>
<tr><th>Max</th><td>{{temp .MaxTemp .MaxTempOK}}</td></tr>
<tr><th>Window</th><td>{{.HistoryLen}}/{{.Config.WindowSize}}</td></tr>
<tr><th>Servo</th><td>{{if .ServoAttached}}attached{{else}}detached{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Thresholds</h2>
<table>
<tr><th>On below</th><td>{{printf "%.1f" .Config.OnTemp}} °C</td></tr>
<tr><th>Off above</th><td>{{printf "%.1f" .Config.OffTemp}} °C</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.KafkaBrokers}}<tr><th>Kafka</th><td>{{.Config.KafkaBrokers}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Heater ON</th><td>{{.Counts.HeaterOn}}</td></tr>
<tr><th>Heater OFF</th><td>{{.Counts.HeaterOff}}</td></tr>
<tr><th>Rejected readings</th><td>{{.Rejected}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Session</th><td>{{.SessionID}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{ms .Config.HeartbeatMs}}</td></tr>
<tr><th>Servo detach</th><td>{{.Config.DetachDelayMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a>{{if .Config.Simulate}} | <a href="/simulate">simulate</a>{{end}}</p>
</body>
</html>
`

const simulateHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Water Heater Simulation</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
input[type=range] { width: 100%; }
.err { color: red; }
</style>
</head>
<body>
<h1>Simulated Temperature</h1>
<p><span id="slider-value">{{printf "%.1f" .Value}}</span> °C</p>
<input type="range" id="temp-slider" min="{{.Min}}" max="{{.Max}}" step="0.5" value="{{.Value}}">
<p id="error" class="err"></p>
<p><a href="/">status</a></p>
<script>
(function() {
  var slider = document.getElementById("temp-slider");
  var label = document.getElementById("slider-value");
  var errEl = document.getElementById("error");

  slider.addEventListener("input", function(e) {
    var t = parseFloat(e.target.value);
    label.textContent = t.toFixed(1);
    fetch("/api/reading", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ temp_c: t })
    }).then(function(resp) {
      errEl.textContent = resp.ok ? "" : "rejected: " + resp.status;
    }).catch(function(err) {
      errEl.textContent = err;
    });
  });
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}

func renderSimulate(w io.Writer, slider *sensor.Slider) {
	min, max := slider.Range()
	data := struct {
		Value, Min, Max float64
	}{slider.Value(), min, max}
	simulateTmpl.Execute(w, data)
}
