package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Heater        string          `json:"heater"`
	Ready         bool            `json:"ready"`
	Temperature   TemperatureJSON `json:"temperature"`
	Fault         string          `json:"fault,omitempty"`
	Window        WindowJSON      `json:"window"`
	ServoAttached bool            `json:"servo_attached"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	SessionID     string          `json:"session_id"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Counts        CountsJSON      `json:"event_counts"`
	Rejected      int             `json:"rejected_readings"`
	Network       *NetworkJSON    `json:"network,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// TemperatureJSON holds readings; unknown values are null.
type TemperatureJSON struct {
	RawC      *float64 `json:"raw_c"`
	SmoothedC *float64 `json:"smoothed_c"`
	MaxC      *float64 `json:"max_c"`
}

// WindowJSON reports median window fill.
type WindowJSON struct {
	Size   int `json:"size"`
	Filled int `json:"filled"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	HeaterOn  int `json:"heater_on"`
	HeaterOff int `json:"heater_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	OnTempC       float64 `json:"on_temp_c"`
	OffTempC      float64 `json:"off_temp_c"`
	WindowSize    int     `json:"window_size"`
	Prefill       bool    `json:"prefill"`
	PollMs        int64   `json:"poll_ms"`
	HeartbeatMs   int64   `json:"heartbeat_ms"`
	DetachDelayMs int64   `json:"detach_delay_ms"`
	Broker        string  `json:"broker"`
	HTTPAddr      string  `json:"http_addr"`
	KafkaBrokers  string  `json:"kafka_brokers,omitempty"`
	Simulate      bool    `json:"simulate"`
}

// HeaterString returns the heater state, or UNKNOWN before the first decision.
func (s Snapshot) HeaterString() string {
	if s.Heater == "" {
		return "UNKNOWN"
	}
	return string(s.Heater)
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Heater: snap.HeaterString(),
		Ready:  snap.Ready(),
		Temperature: TemperatureJSON{
			RawC:      optional(snap.Raw, snap.RawOK),
			SmoothedC: optional(snap.Smoothed, snap.SmoothedOK),
			MaxC:      optional(snap.MaxTemp, snap.MaxTempOK),
		},
		Fault:         snap.Fault,
		Window:        WindowJSON{Size: snap.Config.WindowSize, Filled: snap.HistoryLen},
		ServoAttached: snap.ServoAttached,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		SessionID:     snap.SessionID,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			HeaterOn:  snap.Counts.HeaterOn,
			HeaterOff: snap.Counts.HeaterOff,
		},
		Rejected: snap.Rejected,
		Config: ConfigJSON{
			OnTempC:       snap.Config.OnTemp,
			OffTempC:      snap.Config.OffTemp,
			WindowSize:    snap.Config.WindowSize,
			Prefill:       snap.Config.Prefill,
			PollMs:        snap.Config.PollMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			DetachDelayMs: snap.Config.DetachDelayMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			KafkaBrokers:  snap.Config.KafkaBrokers,
			Simulate:      snap.Config.Simulate,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
