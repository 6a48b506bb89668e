// Package flow owns the approval→processing→result lifecycle for exactly
// one in-flight transfer at a time. It coordinates the biometric gate, the
// wallet signing provider, and the ledger gateway, and reconciles the
// outcome with local caches.
package flow

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/movewallet/wallet-core/internal/biometric"
	"github.com/movewallet/wallet-core/internal/cacheinval"
	"github.com/movewallet/wallet-core/internal/idempotency"
	"github.com/movewallet/wallet-core/internal/ledger"
	"github.com/movewallet/wallet-core/internal/receipts"
	"github.com/movewallet/wallet-core/internal/session"
	"github.com/movewallet/wallet-core/internal/transfer"
)

var (
	ErrInvalidConfig     = errors.New("flow: invalid config")
	ErrTransferPending   = errors.New("flow: a transfer is already pending")
	ErrNoPendingTransfer = errors.New("flow: no pending transfer")
	ErrApprovalInFlight  = errors.New("flow: approval already in flight")
	ErrNoFailedResult    = errors.New("flow: no failed result to retry")
	ErrNoResult          = errors.New("flow: no terminal result")
)

const (
	msgWalletNotFound  = "wallet not found"
	msgSignFailed      = "failed to sign transaction"
	msgSubmitFailed    = "transaction failed to complete"
	msgBuildFailed     = "failed to prepare transaction"
	msgRequestTimedOut = "request timed out"
)

// Builder constructs an unsigned, signable payload from an intent.
type Builder interface {
	BuildTransfer(ctx context.Context, recipient, amount string) (transfer.UnsignedPayload, error)
}

// Submitter sends the signed transaction to the ledger and returns its
// verdict.
type Submitter interface {
	SubmitTransaction(ctx context.Context, rawTx, signature, publicKey string) (transfer.Submission, error)
}

// Signer signs the build step's signing message. Biometric confirmation
// precedes every Sign call by pipeline order, not by enforcement here.
type Signer interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

type Config struct {
	Now func() time.Time
}

// Snapshot is a copy of the engine's externally visible state.
type Snapshot struct {
	UIState            transfer.UIState `json:"uiState"`
	ProcessingStage    transfer.Stage   `json:"processingStage,omitempty"`
	PendingTransaction *transfer.Intent `json:"pendingTransaction,omitempty"`
	Result             *transfer.Result `json:"result,omitempty"`
	AttemptID          string           `json:"attemptId,omitempty"`
}

// Engine is the transaction flow state machine. One engine instance serves
// one active transfer context; all methods are safe for concurrent use.
type Engine struct {
	cfg Config

	gate        biometric.Gate
	builder     Builder
	submitter   Submitter
	signer      Signer
	resolver    session.Resolver
	invalidator cacheinval.Invalidator

	journal  transfer.Journal
	receipts receipts.Store
	sinks    []Sink

	log *slog.Logger

	mu        sync.Mutex
	uiState   transfer.UIState
	stage     transfer.Stage
	pending   *transfer.Intent
	result    *transfer.Result
	approving bool

	// generation fences attempts: a pipeline captures it at entry and any
	// later state write from a stale generation is discarded.
	generation   uint64
	attemptNonce uint64
	attemptID    [32]byte
}

func New(cfg Config, gate biometric.Gate, builder Builder, submitter Submitter, signer Signer, resolver session.Resolver, invalidator cacheinval.Invalidator, log *slog.Logger) (*Engine, error) {
	if gate == nil || builder == nil || submitter == nil || signer == nil || resolver == nil || invalidator == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrInvalidConfig)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Engine{
		cfg:         cfg,
		gate:        gate,
		builder:     builder,
		submitter:   submitter,
		signer:      signer,
		resolver:    resolver,
		invalidator: invalidator,
		log:         log,
		uiState:     transfer.UIStateIdle,
	}, nil
}

// WithJournal attaches an optional durable attempt journal.
func (e *Engine) WithJournal(j transfer.Journal) *Engine {
	e.journal = j
	return e
}

// WithReceipts attaches an optional receipt archive for confirmed
// transfers.
func (e *Engine) WithReceipts(store receipts.Store) *Engine {
	e.receipts = store
	return e
}

// WithSinks attaches event sinks, notified in order.
func (e *Engine) WithSinks(sinks ...Sink) *Engine {
	e.sinks = append(e.sinks, sinks...)
	return e
}

// SetTransaction hands a new intent to the engine. It is rejected while any
// other attempt is pending: silently replacing an in-review transfer would
// discard user context.
func (e *Engine) SetTransaction(ctx context.Context, intent transfer.Intent) error {
	if err := intent.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.uiState != transfer.UIStateIdle {
		e.mu.Unlock()
		return ErrTransferPending
	}
	e.generation++
	e.attemptNonce++
	e.attemptID = idempotency.AttemptIDV1(intent.Network, intent.Recipient, intent.Amount, e.attemptNonce)
	cp := intent
	e.pending = &cp
	e.result = nil
	e.uiState = transfer.UIStateApproval
	e.stage = transfer.StageSubmitting
	attemptID := e.attemptID
	e.mu.Unlock()

	e.record(ctx, attemptID, transfer.UIStateApproval, "", "", "", "")
	e.publish(ctx, Event{Type: EventTransferRequested, AttemptID: hexID(attemptID), Intent: &cp})
	return nil
}

// Approve drives the full biometric→build→sign→submit pipeline. It returns
// an error only for precondition violations; every pipeline failure lands
// in state as a terminal result, never in the returned error.
func (e *Engine) Approve(ctx context.Context) error {
	e.mu.Lock()
	if e.pending == nil || e.uiState != transfer.UIStateApproval {
		e.mu.Unlock()
		return ErrNoPendingTransfer
	}
	if e.approving {
		e.mu.Unlock()
		return ErrApprovalInFlight
	}
	e.approving = true
	gen := e.generation
	intent := *e.pending
	attemptID := e.attemptID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.approving = false
		e.mu.Unlock()
	}()

	e.runPipeline(ctx, gen, attemptID, intent)
	return nil
}

func (e *Engine) runPipeline(ctx context.Context, gen uint64, attemptID [32]byte, intent transfer.Intent) {
	// Hard gate: no network call happens without a successful user-presence
	// check.
	outcome, err := e.gate.Confirm(ctx)
	if err != nil {
		e.log.Error("biometric gate", "err", err)
		outcome = biometric.OutcomeFailed
	}
	if outcome != biometric.OutcomeSuccess {
		e.record(ctx, attemptID, transfer.UIStateIdle, "", transfer.FailureBiometric, outcome.Message(), "")
		e.publish(ctx, Event{Type: EventBiometricDenied, AttemptID: hexID(attemptID), Outcome: outcome, Intent: &intent})
		e.resetIfCurrent(gen)
		return
	}

	if !e.transition(ctx, gen, attemptID, transfer.StageSubmitting) {
		return
	}
	payload, err := e.builder.BuildTransfer(ctx, intent.Recipient, intent.Amount)
	if err != nil {
		e.fail(ctx, gen, attemptID, intent, classify(err, transfer.FailureBuild), buildFailureMessage(err), "")
		return
	}

	if !e.transition(ctx, gen, attemptID, transfer.StageSigning) {
		return
	}
	account, err := e.resolver.Resolve(ctx, intent.Network)
	if err != nil {
		e.fail(ctx, gen, attemptID, intent, transfer.FailureWalletMissing, msgWalletNotFound, "")
		return
	}
	message, err := hexutil.Decode(payload.SigningMessage)
	if err != nil {
		e.fail(ctx, gen, attemptID, intent, transfer.FailureSign, msgSignFailed, "")
		return
	}
	signature, err := e.signer.Sign(ctx, message)
	if err != nil || len(signature) == 0 {
		if err != nil {
			e.log.Error("sign transfer", "err", err)
		}
		e.fail(ctx, gen, attemptID, intent, classify(err, transfer.FailureSign), msgSignFailed, "")
		return
	}

	if !e.transition(ctx, gen, attemptID, transfer.StageConfirming) {
		return
	}
	submission, err := e.submitter.SubmitTransaction(ctx, payload.RawTransaction, "0x"+hex.EncodeToString(signature), account.PublicKey)
	if err != nil {
		e.fail(ctx, gen, attemptID, intent, classify(err, transfer.FailureSubmit), msgSubmitFailed, "")
		return
	}
	if !submission.Executed() {
		e.fail(ctx, gen, attemptID, intent, transfer.FailureSubmit, msgSubmitFailed, submission.VMStatus)
		return
	}

	if !e.transition(ctx, gen, attemptID, transfer.StageCompleted) {
		return
	}
	completedAt := e.cfg.Now().UTC()
	result := transfer.Result{
		Success:       true,
		TransactionID: submission.Hash,
		CompletedAt:   &completedAt,
	}

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return
	}
	e.uiState = transfer.UIStateResult
	e.result = &result
	e.mu.Unlock()

	e.record(ctx, attemptID, transfer.UIStateResult, transfer.StageCompleted, "", "", submission.Hash)

	// Invalidation is idempotent and fired from this single success path
	// only.
	keys := []cacheinval.Key{
		{Kind: cacheinval.KindBalance, Address: account.Address},
		{Kind: cacheinval.KindTransactions, Address: account.Address},
	}
	if err := e.invalidator.Invalidate(ctx, keys...); err != nil {
		e.log.Error("invalidate caches", "err", err, "address", account.Address)
	}

	e.archiveReceipt(ctx, attemptID, intent, submission, completedAt, payload.RawTransaction)
	e.publish(ctx, Event{Type: EventTransferSucceeded, AttemptID: hexID(attemptID), Intent: &intent, Result: &result})
}

// Reject discards the pending intent without any network call.
func (e *Engine) Reject(ctx context.Context) error {
	e.mu.Lock()
	if e.pending == nil || e.uiState != transfer.UIStateApproval {
		e.mu.Unlock()
		return ErrNoPendingTransfer
	}
	if e.approving {
		e.mu.Unlock()
		return ErrApprovalInFlight
	}
	intent := *e.pending
	attemptID := e.attemptID
	e.toIdleLocked()
	e.mu.Unlock()

	e.record(ctx, attemptID, transfer.UIStateIdle, "", "", "", "")
	e.publish(ctx, Event{Type: EventTransferRejected, AttemptID: hexID(attemptID), Intent: &intent})
	return nil
}

// TryAgain returns a failed attempt to approval with the same intent, so a
// fresh Approve needs no re-collected intent.
func (e *Engine) TryAgain() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.uiState != transfer.UIStateResult || e.result == nil || e.result.Success || e.pending == nil {
		return ErrNoFailedResult
	}
	e.generation++
	e.attemptNonce++
	e.attemptID = idempotency.AttemptIDV1(e.pending.Network, e.pending.Recipient, e.pending.Amount, e.attemptNonce)
	e.result = nil
	e.uiState = transfer.UIStateApproval
	e.stage = transfer.StageSubmitting
	return nil
}

// ViewDetails hands the terminal result and its intent to the caller and
// resets the engine to idle.
func (e *Engine) ViewDetails() (transfer.Intent, transfer.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.result == nil || e.pending == nil {
		return transfer.Intent{}, transfer.Result{}, ErrNoResult
	}
	intent := *e.pending
	result := *e.result
	e.toIdleLocked()
	return intent, result, nil
}

// Reset unconditionally forces idle. There is no mid-pipeline abort: an
// in-flight approval still runs to completion, but its terminal write is
// fenced off by the generation bump.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.generation++
	e.approving = false
	e.toIdleLocked()
	e.mu.Unlock()
}

func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		UIState: e.uiState,
	}
	if e.uiState != transfer.UIStateIdle {
		snap.ProcessingStage = e.stage
		snap.AttemptID = hexID(e.attemptID)
	}
	if e.pending != nil {
		cp := *e.pending
		snap.PendingTransaction = &cp
	}
	if e.result != nil {
		cp := *e.result
		snap.Result = &cp
	}
	return snap
}

func (e *Engine) toIdleLocked() {
	e.uiState = transfer.UIStateIdle
	e.stage = ""
	e.pending = nil
	e.result = nil
}

// transition advances the processing stage, unless the attempt has been
// fenced off by a reset.
func (e *Engine) transition(ctx context.Context, gen uint64, attemptID [32]byte, stage transfer.Stage) bool {
	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return false
	}
	e.uiState = transfer.UIStateProcessing
	e.stage = stage
	e.mu.Unlock()

	e.record(ctx, attemptID, transfer.UIStateProcessing, stage, "", "", "")
	e.publish(ctx, Event{Type: EventStageChanged, AttemptID: hexID(attemptID), Stage: stage})
	return true
}

func (e *Engine) fail(ctx context.Context, gen uint64, attemptID [32]byte, intent transfer.Intent, kind transfer.FailureKind, message, code string) {
	result := transfer.Result{
		Success:      false,
		FailureKind:  kind,
		ErrorMessage: message,
		ErrorCode:    code,
	}

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return
	}
	e.uiState = transfer.UIStateResult
	e.stage = transfer.StageFailed
	e.result = &result
	e.mu.Unlock()

	e.record(ctx, attemptID, transfer.UIStateResult, transfer.StageFailed, kind, message, "")
	e.publish(ctx, Event{Type: EventTransferFailed, AttemptID: hexID(attemptID), Stage: transfer.StageFailed, Intent: &intent, Result: &result})
}

func (e *Engine) resetIfCurrent(gen uint64) {
	e.mu.Lock()
	if e.generation == gen {
		e.toIdleLocked()
	}
	e.mu.Unlock()
}

func (e *Engine) record(ctx context.Context, attemptID [32]byte, ui transfer.UIState, stage transfer.Stage, kind transfer.FailureKind, message, txID string) {
	if e.journal == nil {
		return
	}
	entry := transfer.Entry{
		AttemptID:     attemptID,
		At:            e.cfg.Now().UTC(),
		UIState:       ui,
		Stage:         stage,
		FailureKind:   kind,
		ErrorMessage:  message,
		TransactionID: txID,
	}
	if err := e.journal.Record(ctx, entry); err != nil {
		e.log.Error("journal record", "err", err)
	}
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	ev.At = e.cfg.Now().UTC()
	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			e.log.Error("publish event", "type", ev.Type, "err", err)
		}
	}
}

func (e *Engine) archiveReceipt(ctx context.Context, attemptID [32]byte, intent transfer.Intent, sub transfer.Submission, completedAt time.Time, rawTx string) {
	if e.receipts == nil {
		return
	}
	r := receipts.Receipt{
		TransactionID: sub.Hash,
		Amount:        intent.Amount,
		Recipient:     intent.Recipient,
		Network:       intent.Network,
		VMStatus:      sub.VMStatus,
		SignedPayload: rawTx,
		CompletedAt:   completedAt,
	}
	if err := e.receipts.Put(ctx, attemptID, r); err != nil {
		e.log.Error("archive receipt", "err", err, "txId", sub.Hash)
	}
}

func buildFailureMessage(err error) string {
	var buildErr *ledger.BuildError
	if errors.As(err, &buildErr) && buildErr.Message != "" {
		return buildErr.Message
	}
	if isTimeout(err) {
		return msgRequestTimedOut
	}
	return msgBuildFailed
}

func classify(err error, fallback transfer.FailureKind) transfer.FailureKind {
	if isTimeout(err) {
		return transfer.FailureTimeout
	}
	return fallback
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func hexID(id [32]byte) string {
	return hex.EncodeToString(id[:])
}
