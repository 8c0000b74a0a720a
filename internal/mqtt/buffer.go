package mqtt

import "github.com/sirupsen/logrus"

// DefaultBufferSize is how many messages are held while the broker is away.
const DefaultBufferSize = 100

type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while disconnected. Once full, the
// oldest message is discarded to make room. The caller synchronizes.
type outbox struct {
	pending []message
	limit   int
	dropped int
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{limit: limit}
}

func (o *outbox) add(msg message) {
	if len(o.pending) == o.limit {
		if o.dropped == 0 {
			logrus.WithField("limit", o.limit).Warn("mqtt: outbox full, discarding oldest heater messages")
		}
		o.dropped++
		copy(o.pending, o.pending[1:])
		o.pending[len(o.pending)-1] = msg
		return
	}
	o.pending = append(o.pending, msg)
}

// take empties the outbox, returning its messages oldest first and how
// many were discarded since the last take.
func (o *outbox) take() ([]message, int) {
	msgs, dropped := o.pending, o.dropped
	o.pending = nil
	o.dropped = 0
	return msgs, dropped
}

func (o *outbox) len() int {
	return len(o.pending)
}
