package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/water-heater/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
// Messages published while the connection is down are buffered and
// replayed, oldest first, when it comes back.
type RealPublisher struct {
	client paho.Client
	now    func() time.Time

	mu            sync.Mutex
	box           *outbox
	connectedOnce bool
}

// NewRealPublisher creates a publisher for the given broker. The client
// keeps retrying in the background, so an unreachable broker at startup is
// logged rather than returned as an error.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	p := newPublisher(nil, DefaultBufferSize, time.Now)

	will, err := FormatSystemPayload(WillEvent(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logrus.WithError(err).Warn("mqtt: connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logrus.WithField("broker", broker).Warn("mqtt: broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(client paho.Client, bufferSize int, now func() time.Time) *RealPublisher {
	return &RealPublisher{
		client: client,
		now:    now,
		box:    newOutbox(bufferSize),
	}
}

// Publish sends a heater event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: transitions are rare and matter
	return p.publish(message{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	return p.publish(message{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg message) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.box.add(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays buffered messages and announces reconnections.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending, dropped := p.box.take()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	p.mu.Unlock()

	if len(pending) > 0 {
		logrus.WithFields(logrus.Fields{
			"count":   len(pending),
			"dropped": dropped,
		}).Info("mqtt: replaying buffered messages")
	}
	sent := make([]pendingAck, 0, len(pending)+1)
	for _, msg := range pending {
		sent = append(sent, pendingAck{msg.topic, c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)})
	}

	if !reconnect {
		logrus.Info("mqtt: connected")
	} else if payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}); err != nil {
		logrus.WithError(err).Warn("mqtt: format reconnect payload")
	} else {
		sent = append(sent, pendingAck{TopicSystem, c.Publish(TopicSystem, 1, false, payload)})
		logrus.Info("mqtt: reconnected")
	}

	// Acks arrive on paho's own goroutines; waiting here would deadlock it.
	if len(sent) > 0 {
		go awaitAcks(sent)
	}
}

type pendingAck struct {
	topic string
	token paho.Token
}

// awaitAcks logs every replayed publish that fails or is never acknowledged.
func awaitAcks(sent []pendingAck) {
	for _, s := range sent {
		entry := logrus.WithField("topic", s.topic)
		if !s.token.WaitTimeout(publishTimeout) {
			entry.Warn("mqtt: replay not acknowledged")
			continue
		}
		if err := s.token.Error(); err != nil {
			entry.WithError(err).Warn("mqtt: replay failed")
		}
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.box.len()
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
