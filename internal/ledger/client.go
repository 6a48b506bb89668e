// Package ledger is the client for the remote ledger gateway: building
// unsigned transfer payloads and submitting signed transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/movewallet/wallet-core/internal/authclient"
	"github.com/movewallet/wallet-core/internal/transfer"
)

var (
	ErrInvalidConfig  = errors.New("ledger: invalid config")
	ErrInvalidRequest = errors.New("ledger: invalid request")
)

// BuildError carries the gateway-reported reason a build was rejected.
type BuildError struct {
	Message string
}

func (e *BuildError) Error() string {
	if e == nil || strings.TrimSpace(e.Message) == "" {
		return "ledger: failed to prepare transaction"
	}
	return "ledger: " + e.Message
}

type BuildRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type SubmitRequest struct {
	RawTransaction string `json:"rawTransaction"`
	Signature      string `json:"signature"`
	PublicKey      string `json:"publicKey"`
}

type Client struct {
	api *authclient.Client
}

func New(api *authclient.Client) (*Client, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: nil api client", ErrInvalidConfig)
	}
	return &Client{api: api}, nil
}

// BuildTransfer asks the gateway to construct an unsigned, signable payload
// for the intent. A well-formed response without the success flag or the
// payload fields is a build failure carrying the server message when one is
// present.
func (c *Client) BuildTransfer(ctx context.Context, req BuildRequest) (transfer.UnsignedPayload, error) {
	if strings.TrimSpace(req.Recipient) == "" {
		return transfer.UnsignedPayload{}, fmt.Errorf("%w: missing recipient", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Amount) == "" {
		return transfer.UnsignedPayload{}, fmt.Errorf("%w: missing amount", ErrInvalidRequest)
	}

	var resp struct {
		Success             bool   `json:"success"`
		RawTransaction      string `json:"rawTransaction"`
		SigningMessage      string `json:"signingMessage"`
		ExpirationTimestamp string `json:"expirationTimestamp"`
		Message             string `json:"message"`
	}
	if err := c.api.PostJSON(ctx, "/v1/transactions/build", req, &resp); err != nil {
		return transfer.UnsignedPayload{}, fmt.Errorf("ledger: build transfer: %w", err)
	}
	if !resp.Success {
		return transfer.UnsignedPayload{}, &BuildError{Message: strings.TrimSpace(resp.Message)}
	}

	p := transfer.UnsignedPayload{
		RawTransaction:      resp.RawTransaction,
		SigningMessage:      resp.SigningMessage,
		ExpirationTimestamp: resp.ExpirationTimestamp,
	}
	if err := p.Validate(); err != nil {
		return transfer.UnsignedPayload{}, &BuildError{Message: strings.TrimSpace(resp.Message)}
	}
	return p, nil
}

// SubmitTransaction submits the signed transaction and returns the ledger
// verdict verbatim. Deciding whether the verdict counts as success belongs
// to the caller via transfer.Submission.Executed.
func (c *Client) SubmitTransaction(ctx context.Context, req SubmitRequest) (transfer.Submission, error) {
	if strings.TrimSpace(req.RawTransaction) == "" {
		return transfer.Submission{}, fmt.Errorf("%w: missing raw transaction", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Signature) == "" {
		return transfer.Submission{}, fmt.Errorf("%w: missing signature", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.PublicKey) == "" {
		return transfer.Submission{}, fmt.Errorf("%w: missing public key", ErrInvalidRequest)
	}

	var resp struct {
		Success  bool   `json:"success"`
		Hash     string `json:"hash"`
		VMStatus string `json:"vmStatus"`
	}
	if err := c.api.PostJSON(ctx, "/v1/transactions/submit", req, &resp); err != nil {
		return transfer.Submission{}, fmt.Errorf("ledger: submit transaction: %w", err)
	}
	return transfer.Submission{
		Success:  resp.Success,
		Hash:     resp.Hash,
		VMStatus: resp.VMStatus,
	}, nil
}
