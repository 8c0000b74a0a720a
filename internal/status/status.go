// Package status provides a thread-safe status tracker for the water-heater daemon.
// It is read by HTTP handlers, the metrics endpoint and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/water-heater/internal/logic"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	OnTemp        float64
	OffTemp       float64
	WindowSize    int
	Prefill       bool
	PollMs        int64
	HeartbeatMs   int64
	DetachDelayMs int64
	Broker        string
	HTTPAddr      string
	KafkaBrokers  string // empty = mirror disabled
	Simulate      bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	// Heater is empty until the controller has made its first decision.
	Heater        logic.State
	Smoothed      float64
	SmoothedOK    bool
	Raw           float64
	RawOK         bool
	MaxTemp       float64
	MaxTempOK     bool
	Fault         string // empty when the sensor is healthy
	HistoryLen    int
	Counts        logic.EventCounts
	Rejected      int
	ServoAttached bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	SessionID     string
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether the controller has a full window to decide on.
func (s Snapshot) Ready() bool {
	return s.SmoothedOK
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, session and config.
func NewTracker(startTime time.Time, sessionID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			SessionID: sessionID,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update copies the controller state. Called from the run loop, which owns
// the controller, after every reading.
func (t *Tracker) Update(c *logic.Controller) {
	smoothed, smoothedOK := c.Smoothed()
	maxTemp, maxOK := c.MaxTemp()

	var heater logic.State
	if smoothedOK {
		heater = c.State()
	}

	t.mu.Lock()
	t.snap.Heater = heater
	t.snap.Smoothed = smoothed
	t.snap.SmoothedOK = smoothedOK
	t.snap.MaxTemp = maxTemp
	t.snap.MaxTempOK = maxOK
	t.snap.HistoryLen = c.HistoryLen()
	t.snap.Counts = c.EventCountsSnapshot()
	t.snap.Rejected = c.Rejected()
	t.mu.Unlock()
}

// SetReading records the latest sample: a raw temperature, or a fault name.
func (t *Tracker) SetReading(raw float64, fault string) {
	t.mu.Lock()
	t.snap.Fault = fault
	if fault == "" {
		t.snap.Raw = raw
		t.snap.RawOK = true
	}
	t.mu.Unlock()
}

// SetServoAttached sets whether the servo is being driven.
func (t *Tracker) SetServoAttached(attached bool) {
	t.mu.Lock()
	t.snap.ServoAttached = attached
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
