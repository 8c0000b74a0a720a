// Package logic contains the pure thermostat control logic.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"time"
)

// State represents the commanded state of the heater.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// EventType represents a heater state transition.
type EventType string

const (
	EventHeaterOn  EventType = "HEATER_ON"
	EventHeaterOff EventType = "HEATER_OFF"
)

// Default control parameters.
const (
	DefaultOnTemp     = 130.0
	DefaultOffTemp    = 150.0
	DefaultWindowSize = 7
)

var (
	// ErrNonFinite is returned when a reading is NaN or infinite.
	ErrNonFinite = errors.New("reading is not a finite number")

	// ErrInvalidConfig is returned by NewController for unusable settings.
	ErrInvalidConfig = errors.New("invalid controller config")
)

// Event represents a heater transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Smoothed  float64
	Raw       float64
}

// Result is what the controller reports back for every accepted reading.
type Result struct {
	HeaterOn bool
	// Smoothed is the median of the history. Only meaningful when Available.
	Smoothed float64
	// Available is false while the history holds fewer than WindowSize readings.
	Available bool
	// Event is set when this reading flipped the heater state.
	Event *Event
}

// State returns the heater state carried by the result.
func (r Result) State() State {
	return boolToState(r.HeaterOn)
}

// EventCounts tracks the number of each transition since startup.
type EventCounts struct {
	HeaterOn  int
	HeaterOff int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

func boolToState(b bool) State {
	if b {
		return StateOn
	}
	return StateOff
}
