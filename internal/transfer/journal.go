package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Entry is one recorded transition of a transfer attempt.
type Entry struct {
	AttemptID [32]byte
	At        time.Time

	UIState UIState
	Stage   Stage

	FailureKind   FailureKind
	ErrorMessage  string
	TransactionID string
}

func (e Entry) Validate() error {
	if e.AttemptID == ([32]byte{}) {
		return fmt.Errorf("%w: missing attempt id", ErrInvalidEntry)
	}
	if e.UIState == "" {
		return fmt.Errorf("%w: missing ui state", ErrInvalidEntry)
	}
	if e.At.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEntry)
	}
	return nil
}

// Journal is an append-only audit trail of attempt transitions.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	ListAttempt(ctx context.Context, attemptID [32]byte) ([]Entry, error)
}

type MemoryJournal struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Record(_ context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
	return nil
}

func (j *MemoryJournal) ListAttempt(_ context.Context, attemptID [32]byte) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, 0, 8)
	for _, e := range j.entries {
		if e.AttemptID == attemptID {
			out = append(out, e)
		}
	}
	return out, nil
}
