package transfer

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

var (
	ErrInvalidIntent = errors.New("transfer: invalid intent")
	ErrInvalidEntry  = errors.New("transfer: invalid journal entry")
)

// Kind classifies the direction of a transfer intent.
type Kind string

const (
	KindSend    Kind = "send"
	KindReceive Kind = "receive"
	KindSwap    Kind = "swap"
)

// UIState is the coarse screen-level phase of the flow.
type UIState string

const (
	UIStateIdle       UIState = "idle"
	UIStateApproval   UIState = "approval"
	UIStateProcessing UIState = "processing"
	UIStateResult     UIState = "result"
)

// Stage is the fine-grained processing phase. It is meaningful while the
// flow is processing and is retained as StageFailed into the result phase.
type Stage string

const (
	StageSubmitting Stage = "submitting"
	StageSigning    Stage = "signing"
	StageConfirming Stage = "confirming"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// FailureKind tags the failing step of an attempt so observers can branch
// on cause without parsing the human message.
type FailureKind string

const (
	FailureBiometric     FailureKind = "biometric"
	FailureBuild         FailureKind = "build"
	FailureWalletMissing FailureKind = "wallet_missing"
	FailureSign          FailureKind = "sign"
	FailureSubmit        FailureKind = "submit"
	FailureTimeout       FailureKind = "timeout"
)

// Intent is a user-approved description of a transfer, immutable once
// handed to the flow engine for a given attempt.
type Intent struct {
	Amount        string `json:"amount"`
	Recipient     string `json:"recipient,omitempty"`
	RecipientName string `json:"recipientName,omitempty"`
	Network       string `json:"network,omitempty"`
	Fee           string `json:"fee,omitempty"`
	Total         string `json:"total,omitempty"`
	Kind          Kind   `json:"kind"`
}

func (i Intent) Validate() error {
	amt := strings.TrimSpace(i.Amount)
	if amt == "" {
		return fmt.Errorf("%w: missing amount", ErrInvalidIntent)
	}
	r, ok := new(big.Rat).SetString(amt)
	if !ok {
		return fmt.Errorf("%w: amount %q is not a decimal", ErrInvalidIntent, i.Amount)
	}
	if r.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidIntent)
	}
	switch i.Kind {
	case KindSend, KindReceive, KindSwap:
	case "":
		return fmt.Errorf("%w: missing kind", ErrInvalidIntent)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, i.Kind)
	}
	return nil
}

// Result is the terminal outcome of a single attempt.
type Result struct {
	Success       bool        `json:"success"`
	TransactionID string      `json:"transactionId,omitempty"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
	FailureKind   FailureKind `json:"failureKind,omitempty"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	ErrorCode     string      `json:"errorCode,omitempty"`
}

// UnsignedPayload is the ledger gateway's build-transfer product.
type UnsignedPayload struct {
	RawTransaction      string
	SigningMessage      string
	ExpirationTimestamp string
}

func (p UnsignedPayload) Validate() error {
	if strings.TrimSpace(p.RawTransaction) == "" {
		return errors.New("transfer: unsigned payload missing raw transaction")
	}
	if strings.TrimSpace(p.SigningMessage) == "" {
		return errors.New("transfer: unsigned payload missing signing message")
	}
	return nil
}

const executedVerdict = "executed successfully"

// Submission is the ledger's post-submit verdict.
type Submission struct {
	Success  bool
	Hash     string
	VMStatus string
}

// Executed reports whether the ledger executed the transaction. The verdict
// string comparison is case-insensitive and exact: any other status is a
// logical failure even when the transport-level call succeeded.
func (s Submission) Executed() bool {
	return s.Success && strings.EqualFold(strings.TrimSpace(s.VMStatus), executedVerdict)
}
