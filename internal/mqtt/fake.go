package mqtt

import "github.com/sweeney/water-heater/internal/logic"

// FakePublisher is an in-memory Publisher. It formats every message the
// way RealPublisher would, so tests can assert on the wire payloads.
type FakePublisher struct {
	Events   []logic.Event
	Payloads [][]byte

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Injected failures. A failed publish records nothing.
	PublishError       error
	PublishSystemError error

	Connected bool
	Closed    bool
}

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records a heater transition.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records a lifecycle event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Transitions lists the recorded heater event types in publish order.
func (f *FakePublisher) Transitions() []logic.EventType {
	types := make([]logic.EventType, len(f.Events))
	for i, e := range f.Events {
		types[i] = e.Type
	}
	return types
}

// LastSystem returns the most recent lifecycle event, if any.
func (f *FakePublisher) LastSystem() (SystemEvent, bool) {
	if len(f.SystemEvents) == 0 {
		return SystemEvent{}, false
	}
	return f.SystemEvents[len(f.SystemEvents)-1], true
}

func (f *FakePublisher) IsConnected() bool { return f.Connected }

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// Reset returns the fake to its freshly constructed state.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
