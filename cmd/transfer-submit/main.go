// transfer-submit drives a single transfer through the flow engine and
// prints the terminal snapshot as JSON. Intended for gateway integration
// checks, not end users: the biometric gate is replaced by a static
// success.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/movewallet/wallet-core/internal/authclient"
	"github.com/movewallet/wallet-core/internal/biometric"
	"github.com/movewallet/wallet-core/internal/cacheinval"
	"github.com/movewallet/wallet-core/internal/flow"
	"github.com/movewallet/wallet-core/internal/ledger"
	"github.com/movewallet/wallet-core/internal/session"
	"github.com/movewallet/wallet-core/internal/signer"
	"github.com/movewallet/wallet-core/internal/transfer"
)

func main() {
	var (
		gatewayURL     = flag.String("gateway-url", "", "ledger gateway base URL (required)")
		gatewayTimeout = flag.Duration("gateway-timeout", 15*time.Second, "fixed request timeout for gateway calls")

		amount    = flag.String("amount", "", "transfer amount, decimal string (required)")
		recipient = flag.String("recipient", "", "recipient address (required)")
		network   = flag.String("network", "Move", "network to sign for")

		tokenEnv = flag.String("token-env", "WALLET_SESSION_TOKEN", "env var holding the session bearer token")
		seedEnv  = flag.String("seed-env", "WALLET_SIGNING_SEED", "env var holding the ed25519 seed hex")

		timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline for the attempt")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *gatewayURL == "" || *amount == "" || *recipient == "" {
		fmt.Fprintln(os.Stderr, "error: --gateway-url, --amount, and --recipient are required")
		os.Exit(2)
	}
	token := os.Getenv(*tokenEnv)
	seed := os.Getenv(*seedEnv)
	if token == "" || seed == "" {
		fmt.Fprintf(os.Stderr, "error: %s and %s must be set\n", *tokenEnv, *seedEnv)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	sign, err := signer.NewEd25519SignerFromSeedHex(seed)
	if err != nil {
		log.Error("init signer", "err", err)
		os.Exit(2)
	}

	sessions := session.NewMemoryStore()
	if err := sessions.SetSession(session.Session{
		Token: token,
		Accounts: []session.Account{{
			Network:   *network,
			Address:   sign.Address(),
			PublicKey: fmt.Sprintf("0x%x", sign.PublicKey()),
		}},
	}); err != nil {
		log.Error("seed session", "err", err)
		os.Exit(2)
	}

	api, err := authclient.New(*gatewayURL, sessions.Token, authclient.WithTimeout(*gatewayTimeout))
	if err != nil {
		log.Error("init gateway client", "err", err)
		os.Exit(2)
	}
	ledgerClient, err := ledger.New(api)
	if err != nil {
		log.Error("init ledger client", "err", err)
		os.Exit(2)
	}
	gateway, err := flow.NewLedgerGateway(ledgerClient)
	if err != nil {
		log.Error("init gateway adapter", "err", err)
		os.Exit(2)
	}

	invalidator := cacheinval.NewMemory()
	engine, err := flow.New(flow.Config{}, biometric.StaticGate{}, gateway, gateway, sign, sessions, invalidator, log)
	if err != nil {
		log.Error("init flow engine", "err", err)
		os.Exit(2)
	}

	intent := transfer.Intent{
		Amount:    *amount,
		Recipient: *recipient,
		Network:   *network,
		Kind:      transfer.KindSend,
	}
	if err := engine.SetTransaction(ctx, intent); err != nil {
		log.Error("set transaction", "err", err)
		os.Exit(2)
	}
	if err := engine.Approve(ctx); err != nil {
		log.Error("approve", "err", err)
		os.Exit(2)
	}

	snap := engine.State()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		log.Error("encode snapshot", "err", err)
		os.Exit(2)
	}
	if snap.Result == nil || !snap.Result.Success {
		os.Exit(1)
	}
}
