// Package cacheinval is the key-based invalidation signal fired after a
// confirmed transfer so balance and history views refetch.
package cacheinval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrInvalidConfig = errors.New("cacheinval: invalid config")

// KeyKind names a logical cached view.
type KeyKind string

const (
	KindBalance      KeyKind = "balance"
	KindTransactions KeyKind = "transactions"
)

// Key identifies one cached view scoped to an on-chain address.
type Key struct {
	Kind    KeyKind `json:"kind"`
	Address string  `json:"address"`
}

func (k Key) Validate() error {
	switch k.Kind {
	case KindBalance, KindTransactions:
	default:
		return fmt.Errorf("%w: unknown key kind %q", ErrInvalidConfig, k.Kind)
	}
	if strings.TrimSpace(k.Address) == "" {
		return fmt.Errorf("%w: missing address", ErrInvalidConfig)
	}
	return nil
}

// Invalidator signals that the given keys are stale. Invalidation is
// idempotent; implementations must tolerate repeats.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...Key) error
}

// Memory records invalidations in-process.
type Memory struct {
	mu   sync.Mutex
	keys []Key
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Invalidate(_ context.Context, keys ...Key) error {
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.keys = append(m.keys, keys...)
	m.mu.Unlock()
	return nil
}

// Keys returns a copy of all recorded invalidations in order.
func (m *Memory) Keys() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Key(nil), m.keys...)
}

type invalidationRecordV1 struct {
	Version string    `json:"version"`
	At      time.Time `json:"at"`
	Keys    []Key     `json:"keys"`
}

const invalidationRecordVersion = "cache.invalidate.v1"

// Kafka publishes invalidation records to a topic consumed by cache-holding
// services.
type Kafka struct {
	writer *kafka.Writer
	topic  string
	now    func() time.Time
}

func NewKafka(brokers []string, topic string, now func() time.Time) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: at least one broker required", ErrInvalidConfig)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: missing topic", ErrInvalidConfig)
	}
	if now == nil {
		now = time.Now
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		topic: topic,
		now:   now,
	}, nil
}

func (k *Kafka) Invalidate(ctx context.Context, keys ...Key) error {
	if k == nil || k.writer == nil {
		return fmt.Errorf("%w: nil invalidator", ErrInvalidConfig)
	}
	if len(keys) == 0 {
		return nil
	}
	for _, key := range keys {
		if err := key.Validate(); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(invalidationRecordV1{
		Version: invalidationRecordVersion,
		At:      k.now().UTC(),
		Keys:    keys,
	})
	if err != nil {
		return fmt.Errorf("cacheinval: marshal record: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Topic: k.topic, Value: payload}); err != nil {
		return fmt.Errorf("cacheinval: publish record: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
