// Package walletapi is the HTTP surface the wallet UI drives the transfer
// flow through. It is a loopback companion API: the device session
// authenticates upstream calls, not this surface.
package walletapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/movewallet/wallet-core/internal/flow"
	"github.com/movewallet/wallet-core/internal/transfer"
)

var ErrInvalidConfig = errors.New("walletapi: invalid config")

// Engine is the slice of the flow engine this surface needs.
type Engine interface {
	SetTransaction(ctx context.Context, intent transfer.Intent) error
	Approve(ctx context.Context) error
	Reject(ctx context.Context) error
	TryAgain() error
	ViewDetails() (transfer.Intent, transfer.Result, error)
	Reset()
	State() flow.Snapshot
}

type Config struct {
	// ApproveTimeout bounds the detached approval pipeline. Defaults to 3
	// minutes.
	ApproveTimeout time.Duration
}

type handler struct {
	cfg    Config
	engine Engine
}

func NewHandler(cfg Config, engine Engine) (http.Handler, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: nil engine", ErrInvalidConfig)
	}
	if cfg.ApproveTimeout <= 0 {
		cfg.ApproveTimeout = 3 * time.Minute
	}

	h := &handler{cfg: cfg, engine: engine}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /v1/transfer/state", h.handleState)
	mux.HandleFunc("POST /v1/transfer", h.handleSet)
	mux.HandleFunc("POST /v1/transfer/approve", h.handleApprove)
	mux.HandleFunc("POST /v1/transfer/reject", h.handleReject)
	mux.HandleFunc("POST /v1/transfer/retry", h.handleRetry)
	mux.HandleFunc("POST /v1/transfer/reset", h.handleReset)
	mux.HandleFunc("POST /v1/transfer/details", h.handleDetails)
	return mux, nil
}

func (h *handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.State())
}

func (h *handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var intent transfer.Intent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		writeError(w, http.StatusBadRequest, "malformed intent body")
		return
	}
	if err := h.engine.SetTransaction(r.Context(), intent); err != nil {
		switch {
		case errors.Is(err, flow.ErrTransferPending):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, transfer.ErrInvalidIntent):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, h.engine.State())
}

// handleApprove starts the pipeline detached from the request context:
// approval runs to completion regardless of the client connection, and the
// client observes completion through the state endpoint.
func (h *handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.State()
	if snap.UIState != transfer.UIStateApproval {
		writeError(w, http.StatusConflict, flow.ErrNoPendingTransfer.Error())
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.cfg.ApproveTimeout)
		defer cancel()
		// Precondition races surface as state, which the poller sees.
		_ = h.engine.Approve(ctx)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "approving"})
}

func (h *handler) handleReject(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Reject(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.State())
}

func (h *handler) handleRetry(w http.ResponseWriter, _ *http.Request) {
	if err := h.engine.TryAgain(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.State())
}

func (h *handler) handleReset(w http.ResponseWriter, _ *http.Request) {
	h.engine.Reset()
	writeJSON(w, http.StatusOK, h.engine.State())
}

func (h *handler) handleDetails(w http.ResponseWriter, _ *http.Request) {
	intent, result, err := h.engine.ViewDetails()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intent": intent,
		"result": result,
	})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flow.ErrNoPendingTransfer),
		errors.Is(err, flow.ErrApprovalInFlight),
		errors.Is(err, flow.ErrNoFailedResult),
		errors.Is(err, flow.ErrNoResult):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
