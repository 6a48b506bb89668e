// Package events ships engine events to observers outside the process.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/movewallet/wallet-core/internal/flow"
	"github.com/segmentio/kafka-go"
)

var ErrInvalidConfig = errors.New("events: invalid config")

// KafkaSink publishes engine events as JSON records to a topic.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: at least one broker required", ErrInvalidConfig)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: missing topic", ErrInvalidConfig)
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		topic: topic,
	}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, e flow.Event) error {
	if s == nil || s.writer == nil {
		return fmt.Errorf("%w: nil sink", ErrInvalidConfig)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	msg := kafka.Message{Topic: s.topic, Value: payload}
	if e.AttemptID != "" {
		msg.Key = []byte(e.AttemptID)
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

// Recorder collects events in-process, for tests and local observers.
type Recorder struct {
	mu     sync.Mutex
	events []flow.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, e flow.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of all recorded events in publish order.
func (r *Recorder) Events() []flow.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]flow.Event(nil), r.events...)
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(t flow.EventType) []flow.Event {
	var out []flow.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
