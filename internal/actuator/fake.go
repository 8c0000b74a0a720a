package actuator

// FakeServo records servo calls for test assertions.
type FakeServo struct {
	// Writes contains every position written.
	Writes []int

	AttachCalls int
	DetachCalls int

	// WriteError, if set, will be returned by Write.
	WriteError error

	// AttachError, if set, will be returned by Attach.
	AttachError error

	Closed bool

	attached bool
}

// NewFakeServo creates a detached FakeServo.
func NewFakeServo() *FakeServo {
	return &FakeServo{}
}

// Write records the position.
func (f *FakeServo) Write(pos int) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, pos)
	return nil
}

// Attach marks the servo attached.
func (f *FakeServo) Attach() error {
	if f.AttachError != nil {
		return f.AttachError
	}
	f.AttachCalls++
	f.attached = true
	return nil
}

// Detach marks the servo detached.
func (f *FakeServo) Detach() error {
	f.DetachCalls++
	f.attached = false
	return nil
}

// Attached reports the attach state.
func (f *FakeServo) Attached() bool {
	return f.attached
}

// Close marks the servo closed.
func (f *FakeServo) Close() error {
	f.Closed = true
	f.attached = false
	return nil
}

// LastWrite returns the most recent position, or -1 if none.
func (f *FakeServo) LastWrite() int {
	if len(f.Writes) == 0 {
		return -1
	}
	return f.Writes[len(f.Writes)-1]
}
