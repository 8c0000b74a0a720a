package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/water-heater/internal/logic"
	"github.com/sweeney/water-heater/internal/metrics"
	"github.com/sweeney/water-heater/internal/sensor"
	"github.com/sweeney/water-heater/internal/status"
)

var testStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testTracker() *status.Tracker {
	cfg := status.Config{
		OnTemp:        130,
		OffTemp:       150,
		WindowSize:    7,
		Prefill:       true,
		PollMs:        500,
		HeartbeatMs:   900000,
		DetachDelayMs: 5000,
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":80",
	}
	return status.NewTracker(testStart, "sess-1", cfg)
}

func newTestServer(t *testing.T, slider *sensor.Slider) (*httptest.Server, *status.Tracker, *metrics.Metrics) {
	t.Helper()
	tr := testTracker()
	m := metrics.New()
	srv := New(":0", tr, m.Handler(), slider)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, m
}

func feed(t *testing.T, tr *status.Tracker, readings ...float64) {
	t.Helper()
	c, err := logic.NewController(logic.DefaultConfig(), testStart)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	for _, r := range readings {
		c.SubmitReading(r, testStart)
		tr.SetReading(r, "")
	}
	tr.Update(c)
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t, nil)
	feed(t, tr, 120)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Heater != "ON" {
		t.Errorf("Heater: got %q, want ON", sj.Status.Heater)
	}
	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.HeaterOn != 1 {
		t.Errorf("Counts.HeaterOn: got %d, want 1", sj.Status.Counts.HeaterOn)
	}
	if sj.Status.Temperature.SmoothedC == nil || *sj.Status.Temperature.SmoothedC != 120 {
		t.Errorf("SmoothedC: got %v, want 120", sj.Status.Temperature.SmoothedC)
	}
	if sj.Status.Config.PollMs != 500 {
		t.Errorf("Config.PollMs: got %d, want 500", sj.Status.Config.PollMs)
	}
}

func TestJSONUnknownStateBeforeFirstReading(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Heater != "UNKNOWN" {
		t.Errorf("Heater before first reading: got %q, want UNKNOWN", sj.Status.Heater)
	}
	if sj.Status.Ready {
		t.Error("expected Ready=false")
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t, nil)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t, nil)
	feed(t, tr, 155)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `class="off">OFF`) {
		t.Error("expected heater OFF in page")
	}
	if !strings.Contains(string(body), "155.0 °C") {
		t.Error("expected current temperature in page")
	}
}

func TestHTMLShowsFault(t *testing.T) {
	ts, tr, _ := newTestServer(t, nil)
	tr.SetReading(0, "OPEN_CIRCUIT")

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Sensor Fault! (OPEN_CIRCUIT)") {
		t.Error("expected fault notice in page")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, m := newTestServer(t, nil)
	m.ObserveReading(142, logic.Result{})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "water_heater_raw_celsius 142") {
		t.Errorf("metrics body missing raw gauge:\n%s", body)
	}
}

func TestSimulationDisabled(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/reading", "application/json", strings.NewReader(`{"temp_c": 120}`))
	if err != nil {
		t.Fatalf("POST /api/reading: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("POST /api/reading: got %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/simulate")
	if err != nil {
		t.Fatalf("GET /simulate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("GET /simulate: got %d, want 404", resp.StatusCode)
	}
}

func newSlider(t *testing.T) *sensor.Slider {
	t.Helper()
	s, err := sensor.NewSlider(sensor.SliderMin, sensor.SliderMax, sensor.SliderInitial)
	if err != nil {
		t.Fatalf("NewSlider: %v", err)
	}
	return s
}

func TestPostReading(t *testing.T) {
	slider := newSlider(t)
	ts, _, _ := newTestServer(t, slider)

	resp, err := http.Post(ts.URL+"/api/reading", "application/json", strings.NewReader(`{"temp_c": 121.5}`))
	if err != nil {
		t.Fatalf("POST /api/reading: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != 204 {
		t.Errorf("status: got %d, want 204", resp.StatusCode)
	}
	if slider.Value() != 121.5 {
		t.Errorf("slider: got %v, want 121.5", slider.Value())
	}
}

func TestPostReadingRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"temp_c": `},
		{"not a number", `{"temp_c": "hot"}`},
		{"missing field", `{}`},
		{"unknown field", `{"temp_c": 120, "unit": "F"}`},
		{"above range", `{"temp_c": 301}`},
		{"below range", `{"temp_c": -1}`},
		{"overflow", `{"temp_c": 1e999}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slider := newSlider(t)
			ts, _, _ := newTestServer(t, slider)

			resp, err := http.Post(ts.URL+"/api/reading", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST /api/reading: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != 400 {
				t.Errorf("status: got %d, want 400", resp.StatusCode)
			}
			if slider.Value() != sensor.SliderInitial {
				t.Errorf("slider changed to %v", slider.Value())
			}
		})
	}
}

func TestSimulatePage(t *testing.T) {
	ts, _, _ := newTestServer(t, newSlider(t))

	resp, err := http.Get(ts.URL + "/simulate")
	if err != nil {
		t.Fatalf("GET /simulate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `id="temp-slider"`) {
		t.Error("expected slider input in page")
	}
	if !strings.Contains(string(body), `max="300"`) {
		t.Error("expected slider max of 300")
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t, nil)

	if getJSON(t, ts.URL+"/index.json").Status.Ready {
		t.Error("expected Ready=false initially")
	}

	feed(t, tr, 160)
	tr.SetServoAttached(true)

	sj := getJSON(t, ts.URL+"/index.json")
	if !sj.Status.Ready {
		t.Error("expected Ready=true after update")
	}
	if sj.Status.Heater != "OFF" {
		t.Errorf("Heater: got %q, want OFF", sj.Status.Heater)
	}
	if !sj.Status.ServoAttached {
		t.Error("expected servo attached after update")
	}
}
