package sensor

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrOutOfRange is returned when a slider value is outside its range.
var ErrOutOfRange = errors.New("value out of range")

// Slider defaults, matching the simulation page.
const (
	SliderMin     = 0.0
	SliderMax     = 300.0
	SliderInitial = 140.0
)

// Slider is a Reader whose temperature is set from outside, for running
// without a thermocouple. Set is called from HTTP handlers while the run
// loop calls Read, so access is guarded.
type Slider struct {
	mu       sync.RWMutex
	value    float64
	min, max float64
}

// NewSlider creates a Slider over [min, max] starting at initial.
func NewSlider(min, max, initial float64) (*Slider, error) {
	s := &Slider{min: min, max: max}
	if err := s.Set(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// Set changes the simulated temperature.
func (s *Slider) Set(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("slider: %w: %v is not finite", ErrOutOfRange, v)
	}
	if v < s.min || v > s.max {
		return fmt.Errorf("slider: %w: %v not in [%v, %v]", ErrOutOfRange, v, s.min, s.max)
	}
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	return nil
}

// Value returns the current simulated temperature.
func (s *Slider) Value() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Range returns the accepted bounds.
func (s *Slider) Range() (min, max float64) {
	return s.min, s.max
}

// Read returns the current value as a fault-free sample.
func (s *Slider) Read() (Sample, error) {
	return Sample{TempC: s.Value()}, nil
}

// Close is a no-op.
func (s *Slider) Close() error {
	return nil
}
