//go:build linux

package actuator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// RealServo drives a hobby servo with software PWM on one GPIO line.
// Timing jitter is acceptable because the servo is detached shortly after
// every move.
type RealServo struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	pulse atomic.Int64 // current pulse width in ns

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewRealServo requests the servo line on gpiochip0, driven low.
func NewRealServo(pin int) (*RealServo, error) {
	chip, err := gpiocdev.NewChip("gpiochip0", gpiocdev.WithConsumer("water-heater"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request servo pin %d: %w", pin, err)
	}

	s := &RealServo{chip: chip, line: line}
	s.pulse.Store(int64(pulseWidth(PosOff)))
	return s, nil
}

// Write sets the pulse width for pos. It takes effect on the next period.
func (s *RealServo) Write(pos int) error {
	s.pulse.Store(int64(pulseWidth(pos)))
	return nil
}

// Attach starts the PWM goroutine.
func (s *RealServo) Attach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

func (s *RealServo) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		width := time.Duration(s.pulse.Load())
		if err := s.line.SetValue(1); err != nil {
			logrus.WithError(err).Warn("servo: pwm high failed")
			return
		}
		time.Sleep(width)
		if err := s.line.SetValue(0); err != nil {
			logrus.WithError(err).Warn("servo: pwm low failed")
			return
		}
		time.Sleep(pwmPeriod - width)
	}
}

// Detach stops the PWM goroutine and leaves the line low.
func (s *RealServo) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	s.done = nil
	return s.line.SetValue(0)
}

// Attached reports whether the PWM goroutine is running.
func (s *RealServo) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Close detaches the servo and releases the line, leaving it as an input
// with pull-down to match Pi boot defaults.
func (s *RealServo) Close() error {
	var errs []error
	if err := s.Detach(); err != nil {
		errs = append(errs, fmt.Errorf("detach: %w", err))
	}
	if s.line != nil {
		if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure servo pin: %w", err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close servo pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
