// Package kafkabus mirrors thermostat readings and transitions to a Kafka topic.
package kafkabus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sweeney/water-heater/internal/logic"
)

// DefaultTopic is the topic readings are mirrored to.
const DefaultTopic = "water-heater.readings"

const writeTimeout = 2 * time.Second

// Record kinds.
const (
	KindReading    = "reading"
	KindTransition = "transition"
)

// Record is the JSON value written for every message.
type Record struct {
	SessionID string   `json:"sessionId"`
	Kind      string   `json:"kind"`
	Timestamp string   `json:"timestamp"`
	RawC      float64  `json:"rawC"`
	SmoothedC *float64 `json:"smoothedC,omitempty"`
	Heater    string   `json:"heater"`
	Event     string   `json:"event,omitempty"`
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Mirror writes records keyed by session so one run stays on one partition.
type Mirror struct {
	w         messageWriter
	sessionID string
}

// NewMirror creates a Mirror writing to topic on the given brokers.
func NewMirror(brokers []string, topic, sessionID string) *Mirror {
	if topic == "" {
		topic = DefaultTopic
	}
	return newMirror(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		// Readings arrive one per poll; don't wait for a batch to fill.
		BatchTimeout: 10 * time.Millisecond,
	}, sessionID)
}

func newMirror(w messageWriter, sessionID string) *Mirror {
	return &Mirror{w: w, sessionID: sessionID}
}

// PublishReading writes one accepted reading and the resulting state.
func (m *Mirror) PublishReading(ctx context.Context, ts time.Time, raw float64, res logic.Result) error {
	rec := Record{
		SessionID: m.sessionID,
		Kind:      KindReading,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		RawC:      raw,
		Heater:    string(res.State()),
	}
	if res.Available {
		s := res.Smoothed
		rec.SmoothedC = &s
	}
	return m.write(ctx, ts, rec)
}

// PublishTransition writes a heater transition.
func (m *Mirror) PublishTransition(ctx context.Context, e logic.Event) error {
	s := e.Smoothed
	rec := Record{
		SessionID: m.sessionID,
		Kind:      KindTransition,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		RawC:      e.Raw,
		SmoothedC: &s,
		Heater:    string(e.State),
		Event:     string(e.Type),
	}
	return m.write(ctx, e.Timestamp, rec)
}

func (m *Mirror) write(ctx context.Context, ts time.Time, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", rec.Kind, err)
	}
	msg := kafka.Message{Key: []byte(m.sessionID), Value: b, Time: ts}
	if err := m.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", rec.Kind, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (m *Mirror) Close() error {
	return m.w.Close()
}
