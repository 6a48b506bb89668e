package events

import (
	"context"
	"errors"
	"testing"

	"github.com/movewallet/wallet-core/internal/flow"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	ctx := context.Background()

	published := []flow.Event{
		{Type: flow.EventTransferRequested, AttemptID: "a1"},
		{Type: flow.EventStageChanged, AttemptID: "a1"},
		{Type: flow.EventStageChanged, AttemptID: "a1"},
		{Type: flow.EventTransferSucceeded, AttemptID: "a1"},
	}
	for _, e := range published {
		if err := r.Publish(ctx, e); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	all := r.Events()
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	if all[0].Type != flow.EventTransferRequested || all[3].Type != flow.EventTransferSucceeded {
		t.Fatalf("events out of order: %+v", all)
	}

	stages := r.OfType(flow.EventStageChanged)
	if len(stages) != 2 {
		t.Fatalf("expected 2 stage events, got %d", len(stages))
	}
	if got := r.OfType(flow.EventTransferFailed); len(got) != 0 {
		t.Fatalf("expected no failure events, got %+v", got)
	}
}

func TestNewKafkaSinkValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaSink(nil, "wallet.events"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for no brokers, got %v", err)
	}
	if _, err := NewKafkaSink([]string{"localhost:9092"}, " "); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for blank topic, got %v", err)
	}
	sink, err := NewKafkaSink([]string{"localhost:9092"}, "wallet.events")
	if err != nil {
		t.Fatalf("NewKafkaSink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
