package logic

import (
	"fmt"
	"math"
)

// Thresholds holds the turn-on and turn-off temperatures.
// The band between them is the deadband where the heater keeps its state.
type Thresholds struct {
	On  float64
	Off float64
}

// DefaultThresholds returns the stock 130/150 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{On: DefaultOnTemp, Off: DefaultOffTemp}
}

// Validate checks that both thresholds are finite and On < Off.
func (t Thresholds) Validate() error {
	if !isFinite(t.On) || !isFinite(t.Off) {
		return fmt.Errorf("%w: thresholds must be finite (on=%v off=%v)", ErrInvalidConfig, t.On, t.Off)
	}
	if t.On >= t.Off {
		return fmt.Errorf("%w: on temp %v must be below off temp %v", ErrInvalidConfig, t.On, t.Off)
	}
	return nil
}

// Decide returns the next heater state for a smoothed temperature.
// Comparisons are strict: a reading equal to either threshold never
// causes a transition.
func Decide(smoothed float64, heaterOn bool, th Thresholds) bool {
	if smoothed < th.On && !heaterOn {
		return true
	}
	if smoothed > th.Off && heaterOn {
		return false
	}
	return heaterOn
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
