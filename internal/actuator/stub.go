//go:build !linux

package actuator

import "errors"

// RealServo is not available on non-Linux platforms.
type RealServo struct{}

// NewRealServo returns an error on non-Linux platforms.
func NewRealServo(pin int) (*RealServo, error) {
	return nil, errors.New("actuator: not supported on this platform (requires Linux)")
}

func (s *RealServo) Write(pos int) error { return errors.New("actuator: not supported") }
func (s *RealServo) Attach() error       { return errors.New("actuator: not supported") }
func (s *RealServo) Detach() error       { return nil }
func (s *RealServo) Attached() bool      { return false }
func (s *RealServo) Close() error        { return nil }
