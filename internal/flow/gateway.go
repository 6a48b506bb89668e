package flow

import (
	"context"
	"fmt"

	"github.com/movewallet/wallet-core/internal/ledger"
	"github.com/movewallet/wallet-core/internal/transfer"
)

// LedgerGateway adapts the ledger client to the engine's Builder and
// Submitter ports.
type LedgerGateway struct {
	client *ledger.Client
}

func NewLedgerGateway(client *ledger.Client) (*LedgerGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil ledger client", ErrInvalidConfig)
	}
	return &LedgerGateway{client: client}, nil
}

func (g *LedgerGateway) BuildTransfer(ctx context.Context, recipient, amount string) (transfer.UnsignedPayload, error) {
	return g.client.BuildTransfer(ctx, ledger.BuildRequest{
		Recipient: recipient,
		Amount:    amount,
	})
}

func (g *LedgerGateway) SubmitTransaction(ctx context.Context, rawTx, signature, publicKey string) (transfer.Submission, error) {
	return g.client.SubmitTransaction(ctx, ledger.SubmitRequest{
		RawTransaction: rawTx,
		Signature:      signature,
		PublicKey:      publicKey,
	})
}
