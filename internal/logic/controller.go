package logic

import (
	"fmt"
	"time"
)

// Config holds the immutable controller settings.
type Config struct {
	Thresholds Thresholds
	WindowSize int
	// Prefill floods the history with WindowSize copies of the first
	// accepted reading so the first call already has a full window.
	Prefill bool
}

// DefaultConfig returns 130/150 thresholds, a window of 7 and prefill on.
func DefaultConfig() Config {
	return Config{
		Thresholds: DefaultThresholds(),
		WindowSize: DefaultWindowSize,
		Prefill:    true,
	}
}

// Validate checks thresholds and window size.
func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window size %d must be at least 1", ErrInvalidConfig, c.WindowSize)
	}
	return nil
}

// Controller is a median-filtered hysteresis controller.
// It is owned by a single caller and is not safe for concurrent use.
type Controller struct {
	cfg           Config
	history       *History
	heaterOn      bool
	decided       bool
	started       bool
	smoothed      float64
	maxTemp       float64
	rejected      int
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewController creates a controller with the heater OFF and an empty history.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(cfg Config, startTime time.Time) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:           cfg,
		history:       NewHistory(cfg.WindowSize),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}, nil
}

// SubmitReading records a raw reading and returns the resulting heater state.
// Non-finite readings are rejected with ErrNonFinite and leave the controller
// unchanged apart from the rejection count.
func (c *Controller) SubmitReading(raw float64, now time.Time) (Result, error) {
	if !isFinite(raw) {
		c.rejected++
		return Result{HeaterOn: c.heaterOn}, fmt.Errorf("%w: %v", ErrNonFinite, raw)
	}

	if !c.started && c.cfg.Prefill {
		for i := 0; i < c.cfg.WindowSize; i++ {
			c.history.Record(raw)
		}
	} else {
		c.history.Record(raw)
	}
	if !c.started || raw > c.maxTemp {
		c.maxTemp = raw
	}
	c.started = true

	// Not enough data for a decision yet
	if !c.history.Full() {
		return Result{HeaterOn: c.heaterOn}, nil
	}

	smoothed, _ := c.history.Median()
	c.smoothed = smoothed
	c.decided = true

	res := Result{
		HeaterOn:  c.heaterOn,
		Smoothed:  smoothed,
		Available: true,
	}

	next := Decide(smoothed, c.heaterOn, c.cfg.Thresholds)
	if next == c.heaterOn {
		return res, nil
	}

	c.heaterOn = next
	res.HeaterOn = next
	res.Event = &Event{
		Timestamp: now,
		Type:      eventTypeForTransition(next),
		State:     boolToState(next),
		Smoothed:  smoothed,
		Raw:       raw,
	}

	switch res.Event.Type {
	case EventHeaterOn:
		c.eventCounts.HeaterOn++
	case EventHeaterOff:
		c.eventCounts.HeaterOff++
	}

	return res, nil
}

func eventTypeForTransition(on bool) EventType {
	if on {
		return EventHeaterOn
	}
	return EventHeaterOff
}

// HeaterOn returns the current commanded heater state.
func (c *Controller) HeaterOn() bool {
	return c.heaterOn
}

// State returns the current commanded heater state as a State.
func (c *Controller) State() State {
	return boolToState(c.heaterOn)
}

// Smoothed returns the last computed median and whether one exists.
func (c *Controller) Smoothed() (float64, bool) {
	return c.smoothed, c.decided
}

// MaxTemp returns the highest accepted raw reading since startup.
func (c *Controller) MaxTemp() (float64, bool) {
	return c.maxTemp, c.started
}

// History returns a copy of the readings window, oldest first.
func (c *Controller) History() []float64 {
	return c.history.Values()
}

// HistoryLen returns the number of readings currently in the window.
func (c *Controller) HistoryLen() int {
	return c.history.Len()
}

// Rejected returns the number of non-finite readings refused so far.
func (c *Controller) Rejected() int {
	return c.rejected
}

// Config returns the controller settings.
func (c *Controller) Config() Config {
	return c.cfg
}

// EventCountsSnapshot returns a copy of the transition counters.
func (c *Controller) EventCountsSnapshot() EventCounts {
	return c.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.eventCounts,
	}
}
