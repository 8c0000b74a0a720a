// Package actuator drives the heater servo with hardware abstraction.
// The real servo is driven by software PWM on a Linux GPIO line.
package actuator

import (
	"fmt"
	"time"
)

// Servo moves the heater valve.
type Servo interface {
	// Write moves the servo to an angle in degrees (0..180).
	Write(pos int) error
	// Attach starts driving the servo.
	Attach() error
	// Detach stops driving the servo so it does not hold or jitter.
	Detach() error
	// Attached reports whether the servo is being driven.
	Attached() bool
	// Close releases hardware resources.
	Close() error
}

// Servo positions and timing.
const (
	PosOff             = 0
	PosOn              = 180
	DefaultDetachDelay = 5 * time.Second
	DefaultPinServo    = 18
)

// Heater turns the heater on and off through a Servo and releases the servo
// once it has had time to settle.
// Not safe for concurrent use.
type Heater struct {
	servo       Servo
	detachDelay time.Duration
	lastMove    time.Time
	on          bool
}

// NewHeater wraps servo. A detachDelay <= 0 uses DefaultDetachDelay.
func NewHeater(servo Servo, detachDelay time.Duration) *Heater {
	if detachDelay <= 0 {
		detachDelay = DefaultDetachDelay
	}
	return &Heater{servo: servo, detachDelay: detachDelay}
}

// Init moves the servo to the OFF position.
func (h *Heater) Init(now time.Time) error {
	return h.move(false, now)
}

// Apply moves the servo to the position for on.
func (h *Heater) Apply(on bool, now time.Time) error {
	return h.move(on, now)
}

func (h *Heater) move(on bool, now time.Time) error {
	if !h.servo.Attached() {
		if err := h.servo.Attach(); err != nil {
			return fmt.Errorf("attach servo: %w", err)
		}
	}
	pos := PosOff
	if on {
		pos = PosOn
	}
	if err := h.servo.Write(pos); err != nil {
		return fmt.Errorf("write servo %d: %w", pos, err)
	}
	h.on = on
	h.lastMove = now
	return nil
}

// Tick detaches the servo once more than the detach delay has passed since
// the last move. Returns true if the servo was detached by this call.
func (h *Heater) Tick(now time.Time) (bool, error) {
	if !h.servo.Attached() {
		return false, nil
	}
	if now.Sub(h.lastMove) <= h.detachDelay {
		return false, nil
	}
	if err := h.servo.Detach(); err != nil {
		return false, fmt.Errorf("detach servo: %w", err)
	}
	return true, nil
}

// On returns the last commanded state.
func (h *Heater) On() bool {
	return h.on
}

// Attached reports whether the servo is currently driven.
func (h *Heater) Attached() bool {
	return h.servo.Attached()
}

// LastMove returns the time of the last servo move.
func (h *Heater) LastMove() time.Time {
	return h.lastMove
}

// Close releases the servo.
func (h *Heater) Close() error {
	return h.servo.Close()
}
