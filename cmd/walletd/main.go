package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/movewallet/wallet-core/internal/authclient"
	"github.com/movewallet/wallet-core/internal/biometric"
	"github.com/movewallet/wallet-core/internal/cacheinval"
	"github.com/movewallet/wallet-core/internal/events"
	"github.com/movewallet/wallet-core/internal/flow"
	"github.com/movewallet/wallet-core/internal/ledger"
	"github.com/movewallet/wallet-core/internal/receipts"
	"github.com/movewallet/wallet-core/internal/session"
	"github.com/movewallet/wallet-core/internal/signer"
	"github.com/movewallet/wallet-core/internal/transfer"
	transferpg "github.com/movewallet/wallet-core/internal/transfer/postgres"
	"github.com/movewallet/wallet-core/internal/vault"
	"github.com/movewallet/wallet-core/internal/walletapi"
)

func main() {
	var (
		listenAddr = flag.String("listen", "127.0.0.1:8090", "HTTP listen address")

		gatewayURL     = flag.String("gateway-url", "", "ledger gateway base URL (required)")
		gatewayTimeout = flag.Duration("gateway-timeout", 15*time.Second, "fixed request timeout for gateway calls")
		gatewayMaxResp = flag.Int64("gateway-max-response-bytes", 1<<20, "max bytes in a gateway response")
		network        = flag.String("network", "Move", "network the wallet signs for")

		vaultDriver     = flag.String("vault-driver", "env", "secure token store driver (env|aws)")
		sessionTokenKey = flag.String("session-token-key", "WALLET_SESSION_TOKEN", "vault key holding the session bearer token")
		signingSeedKey  = flag.String("signing-seed-key", "WALLET_SIGNING_SEED", "vault key holding the signing key material")

		signerScheme  = flag.String("signer-scheme", "ed25519", "signing scheme (ed25519|evm|exec)")
		signerBin     = flag.String("signer-bin", "", "external signer helper binary (signer-scheme=exec)")
		signerPubKey  = flag.String("signer-public-key", "", "hex public key of the external signer (signer-scheme=exec)")
		signerMaxResp = flag.Int("signer-max-response-bytes", 1<<20, "max external signer response size (bytes)")

		deviceAuthBin     = flag.String("device-auth-bin", "", "device auth helper binary for the biometric gate")
		deviceAuthMaxResp = flag.Int("device-auth-max-response-bytes", 1<<20, "max device auth response size (bytes)")
		insecureNoGate    = flag.Bool("insecure-static-gate", false, "bypass the biometric gate with a static success (DANGEROUS; dev only)")

		postgresDSN = flag.String("postgres-dsn", "", "Postgres DSN for the attempt journal (optional)")

		kafkaBrokers    = flag.String("kafka-brokers", "", "kafka brokers (comma-separated; empty keeps events and invalidation in-process)")
		eventTopic      = flag.String("event-topic", "wallet.transfer.events.v1", "kafka topic for engine events")
		invalidateTopic = flag.String("invalidate-topic", "wallet.cache.invalidate.v1", "kafka topic for cache invalidation records")

		receiptsBucket = flag.String("receipts-bucket", "", "S3 bucket for transfer receipts (optional)")
		receiptsPrefix = flag.String("receipts-prefix", "", "key prefix for receipt objects")

		approveTimeout = flag.Duration("approve-timeout", 3*time.Minute, "bound on a detached approval pipeline")

		readHeaderTimeout = flag.Duration("read-header-timeout", 5*time.Second, "http.Server ReadHeaderTimeout")
		readTimeout       = flag.Duration("read-timeout", 10*time.Second, "http.Server ReadTimeout")
		writeTimeout      = flag.Duration("write-timeout", 10*time.Second, "http.Server WriteTimeout")
		idleTimeout       = flag.Duration("idle-timeout", 60*time.Second, "http.Server IdleTimeout")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *gatewayURL == "" {
		fmt.Fprintln(os.Stderr, "error: --gateway-url is required")
		os.Exit(2)
	}
	if *listenAddr == "" {
		fmt.Fprintln(os.Stderr, "error: --listen must be non-empty")
		os.Exit(2)
	}
	if *deviceAuthBin == "" && !*insecureNoGate {
		fmt.Fprintln(os.Stderr, "error: --device-auth-bin is required (or --insecure-static-gate for dev)")
		os.Exit(2)
	}
	if *readHeaderTimeout <= 0 || *readTimeout <= 0 || *writeTimeout <= 0 || *idleTimeout <= 0 {
		fmt.Fprintln(os.Stderr, "error: timeouts must be > 0")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokenStore, err := newVault(ctx, *vaultDriver)
	if err != nil {
		log.Error("init vault", "err", err)
		os.Exit(2)
	}

	token, err := tokenStore.Get(ctx, *sessionTokenKey)
	if err != nil {
		log.Error("load session token", "key", *sessionTokenKey, "err", err)
		os.Exit(2)
	}

	sign, account, err := newSigner(ctx, tokenStore, *signerScheme, *signingSeedKey, *signerBin, *signerPubKey, *signerMaxResp, *network)
	if err != nil {
		log.Error("init signer", "err", err)
		os.Exit(2)
	}

	sessions := session.NewMemoryStore()
	if err := sessions.SetSession(session.Session{Token: token, Accounts: []session.Account{account}}); err != nil {
		log.Error("seed session", "err", err)
		os.Exit(2)
	}

	api, err := authclient.New(*gatewayURL, sessions.Token,
		authclient.WithTimeout(*gatewayTimeout),
		authclient.WithMaxResponseBytes(*gatewayMaxResp),
	)
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

	var gate biometric.Gate
	if *deviceAuthBin != "" {
		gate, err = biometric.NewExecGate(*deviceAuthBin, *deviceAuthMaxResp)
		if err != nil {
			log.Error("init biometric gate", "err", err)
			os.Exit(2)
		}
	} else {
		log.Warn("biometric gate bypassed with static success; never use outside dev")
		gate = biometric.StaticGate{Outcome: biometric.OutcomeSuccess}
	}

	brokers := splitCommaList(*kafkaBrokers)

	var invalidator cacheinval.Invalidator
	if len(brokers) > 0 {
		kinv, err := cacheinval.NewKafka(brokers, *invalidateTopic, nil)
		if err != nil {
			log.Error("init kafka invalidator", "err", err)
			os.Exit(2)
		}
		defer func() { _ = kinv.Close() }()
		invalidator = kinv
	} else {
		invalidator = cacheinval.NewMemory()
	}

	engine, err := flow.New(flow.Config{}, gate, gateway, gateway, sign, sessions, invalidator, log)
	if err != nil {
		log.Error("init flow engine", "err", err)
		os.Exit(2)
	}

	if len(brokers) > 0 {
		sink, err := events.NewKafkaSink(brokers, *eventTopic)
		if err != nil {
			log.Error("init kafka event sink", "err", err)
			os.Exit(2)
		}
		defer func() { _ = sink.Close() }()
		engine.WithSinks(sink)
	}

	if *postgresDSN != "" {
		pool, err := pgxpool.New(ctx, *postgresDSN)
		if err != nil {
			log.Error("init pgx pool", "err", err)
			os.Exit(2)
		}
		defer pool.Close()

		journal, err := transferpg.New(pool)
		if err != nil {
			log.Error("init attempt journal", "err", err)
			os.Exit(2)
		}
		if err := journal.EnsureSchema(ctx); err != nil {
			log.Error("ensure journal schema", "err", err)
			os.Exit(2)
		}
		engine.WithJournal(journal)
	} else {
		engine.WithJournal(transfer.NewMemoryJournal())
	}

	if *receiptsBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Error("load aws config", "err", err)
			os.Exit(2)
		}
		store, err := receipts.New(receipts.Config{
			Driver:   receipts.DriverS3,
			Bucket:   *receiptsBucket,
			Prefix:   *receiptsPrefix,
			S3Client: s3.NewFromConfig(awsCfg),
		})
		if err != nil {
			log.Error("init receipt store", "err", err)
			os.Exit(2)
		}
		engine.WithReceipts(store)
	}

	apiHandler, err := walletapi.NewHandler(walletapi.Config{ApproveTimeout: *approveTimeout}, engine)
	if err != nil {
		log.Error("init wallet api", "err", err)
		os.Exit(2)
	}

	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           apiHandler,
		ReadHeaderTimeout: *readHeaderTimeout,
		ReadTimeout:       *readTimeout,
		WriteTimeout:      *writeTimeout,
		IdleTimeout:       *idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("walletd listening", "addr", *listenAddr, "network", *network, "address", account.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
}

func newVault(ctx context.Context, driver string) (vault.Store, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "env", "":
		return vault.NewEnv(), nil
	case "aws":
		return vault.NewAWS(ctx)
	default:
		return nil, fmt.Errorf("unsupported vault driver %q", driver)
	}
}

func newSigner(ctx context.Context, store vault.Store, scheme, seedKey, bin, pubKeyHex string, maxResp int, network string) (flow.Signer, session.Account, error) {
	switch strings.TrimSpace(strings.ToLower(scheme)) {
	case "ed25519", "":
		seed, err := store.Get(ctx, seedKey)
		if err != nil {
			return nil, session.Account{}, fmt.Errorf("load signing seed: %w", err)
		}
		s, err := signer.NewEd25519SignerFromSeedHex(seed)
		if err != nil {
			return nil, session.Account{}, err
		}
		return s, session.Account{
			Network:   network,
			Address:   s.Address(),
			PublicKey: "0x" + fmt.Sprintf("%x", s.PublicKey()),
		}, nil
	case "evm":
		keyHex, err := store.Get(ctx, seedKey)
		if err != nil {
			return nil, session.Account{}, fmt.Errorf("load signing key: %w", err)
		}
		s, err := signer.NewEVMSignerFromHex(keyHex)
		if err != nil {
			return nil, session.Account{}, err
		}
		return s, session.Account{
			Network:   network,
			Address:   s.Address(),
			PublicKey: "0x" + fmt.Sprintf("%x", s.PublicKey()),
		}, nil
	case "exec":
		s, err := signer.NewExecSigner(bin, pubKeyHex, maxResp)
		if err != nil {
			return nil, session.Account{}, err
		}
		addr, err := store.Get(ctx, "WALLET_ACCOUNT_ADDRESS")
		if err != nil {
			return nil, session.Account{}, fmt.Errorf("load account address: %w", err)
		}
		return s, session.Account{
			Network:   network,
			Address:   addr,
			PublicKey: pubKeyHex,
		}, nil
	default:
		return nil, session.Account{}, fmt.Errorf("unsupported signer scheme %q", scheme)
	}
}

func splitCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
