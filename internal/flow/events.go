package flow

import (
	"context"
	"time"

	"github.com/movewallet/wallet-core/internal/biometric"
	"github.com/movewallet/wallet-core/internal/transfer"
)

// EventType tags an engine event.
type EventType string

const (
	EventTransferRequested EventType = "transfer_requested"
	EventStageChanged      EventType = "stage_changed"
	EventTransferSucceeded EventType = "transfer_succeeded"
	EventTransferFailed    EventType = "transfer_failed"
	EventTransferRejected  EventType = "transfer_rejected"
	EventBiometricDenied   EventType = "biometric_denied"
)

// Event is a tagged record of something the engine did. Events replace the
// fixed onSuccess/onReject/onBiometricError callback shape: any observer
// (UI, logger, message bus) subscribes through a Sink.
type Event struct {
	Type      EventType         `json:"type"`
	At        time.Time         `json:"at"`
	AttemptID string            `json:"attemptId,omitempty"`
	Stage     transfer.Stage    `json:"stage,omitempty"`
	Outcome   biometric.Outcome `json:"outcome,omitempty"`
	Intent    *transfer.Intent  `json:"intent,omitempty"`
	Result    *transfer.Result  `json:"result,omitempty"`
}

// Sink receives engine events. Publish errors are logged by the engine and
// never fail the flow.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}
