package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/movewallet/wallet-core/internal/authclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := authclient.New(srv.URL, func(_ context.Context) (string, error) { return "tok-1", nil })
	if err != nil {
		t.Fatalf("authclient.New: %v", err)
	}
	c, err := New(api)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestBuildTransfer(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotReq BuildRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":             true,
			"rawTransaction":      "RT",
			"signingMessage":      "0xdead",
			"expirationTimestamp": "1770000000",
		})
	})

	p, err := c.BuildTransfer(context.Background(), BuildRequest{Recipient: "0xabc", Amount: "10"})
	if err != nil {
		t.Fatalf("BuildTransfer: %v", err)
	}
	if gotPath != "/v1/transactions/build" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotReq.Recipient != "0xabc" || gotReq.Amount != "10" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if p.RawTransaction != "RT" || p.SigningMessage != "0xdead" || p.ExpirationTimestamp != "1770000000" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestBuildTransferServerRejection(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "insufficient funds",
		})
	})

	_, err := c.BuildTransfer(context.Background(), BuildRequest{Recipient: "0xabc", Amount: "10"})
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if buildErr.Message != "insufficient funds" {
		t.Fatalf("expected server message verbatim, got %q", buildErr.Message)
	}
}

func TestBuildTransferIncompletePayload(t *testing.T) {
	t.Parallel()

	// success flag set but the signable fields are missing.
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"rawTransaction": "RT",
		})
	})

	_, err := c.BuildTransfer(context.Background(), BuildRequest{Recipient: "0xabc", Amount: "10"})
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
}

func TestBuildTransferValidatesRequest(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach the server")
	})

	if _, err := c.BuildTransfer(context.Background(), BuildRequest{Amount: "10"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := c.BuildTransfer(context.Background(), BuildRequest{Recipient: "0xabc"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSubmitTransaction(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotReq SubmitRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"hash":     "0xhash",
			"vmStatus": "Executed successfully",
		})
	})

	sub, err := c.SubmitTransaction(context.Background(), SubmitRequest{
		RawTransaction: "RT",
		Signature:      "0x5167",
		PublicKey:      "0xpub",
	})
	if err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if gotPath != "/v1/transactions/submit" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotReq.Signature != "0x5167" || gotReq.PublicKey != "0xpub" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if !sub.Executed() || sub.Hash != "0xhash" {
		t.Fatalf("unexpected submission: %+v", sub)
	}
}

func TestSubmitTransactionReturnsVerdictVerbatim(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"hash":     "0xhash",
			"vmStatus": "Move abort in 0x1::coin",
		})
	})

	sub, err := c.SubmitTransaction(context.Background(), SubmitRequest{
		RawTransaction: "RT",
		Signature:      "0x5167",
		PublicKey:      "0xpub",
	})
	if err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	// The transport call succeeded; the verdict decision is the caller's.
	if sub.Executed() {
		t.Fatalf("aborted execution must not count as executed: %+v", sub)
	}
	if sub.VMStatus != "Move abort in 0x1::coin" {
		t.Fatalf("verdict must be verbatim, got %q", sub.VMStatus)
	}
}

func TestSubmitTransactionValidatesRequest(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach the server")
	})

	if _, err := c.SubmitTransaction(context.Background(), SubmitRequest{Signature: "0x", PublicKey: "0x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestBuildErrorMessage(t *testing.T) {
	t.Parallel()

	if got := (&BuildError{}).Error(); got != "ledger: failed to prepare transaction" {
		t.Fatalf("unexpected default message %q", got)
	}
	if got := (&BuildError{Message: "insufficient funds"}).Error(); got != "ledger: insufficient funds" {
		t.Fatalf("unexpected message %q", got)
	}
}
