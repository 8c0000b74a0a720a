package actuator

import "time"

// Hobby servo timing.
const (
	pwmPeriod     = 20 * time.Millisecond // 50 Hz
	minPulseWidth = 500 * time.Microsecond
	maxPulseWidth = 2400 * time.Microsecond
)

// pulseWidth maps an angle to a pulse width, clamping to 0..180.
func pulseWidth(pos int) time.Duration {
	if pos < 0 {
		pos = 0
	}
	if pos > 180 {
		pos = 180
	}
	span := maxPulseWidth - minPulseWidth
	return minPulseWidth + span*time.Duration(pos)/180
}
