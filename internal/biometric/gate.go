// Package biometric is the strong-factor user-presence gate required before
// any fund-moving action.
package biometric

import (
	"context"
	"errors"
)

var ErrInvalidConfig = errors.New("biometric: invalid config")

// Outcome is the result of a single user-presence check.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeNotAvailable Outcome = "not_available"
	OutcomeCancelled    Outcome = "cancelled"
	OutcomeFailed       Outcome = "failed"
)

// Message returns the fixed human-readable message for a non-success
// outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeNotAvailable:
		return "Biometric authentication is not available on this device"
	case OutcomeCancelled:
		return "Authentication was cancelled"
	case OutcomeFailed:
		return "Authentication failed"
	default:
		return ""
	}
}

// Gate asks the platform for a user-presence check. Implementations are
// stateless; a transport-level error counts as a failed check.
type Gate interface {
	Confirm(ctx context.Context) (Outcome, error)
}

// StaticGate always returns a fixed outcome. For dev wiring and tests.
type StaticGate struct {
	Outcome Outcome
}

func (g StaticGate) Confirm(_ context.Context) (Outcome, error) {
	if g.Outcome == "" {
		return OutcomeSuccess, nil
	}
	return g.Outcome, nil
}
