package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/movewallet/wallet-core/internal/transfer"
)

var ErrInvalidConfig = errors.New("transfer/postgres: invalid config")

// Journal is a durable, append-only transfer.Journal backed by Postgres.
type Journal struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) (*Journal, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: nil pool", ErrInvalidConfig)
	}
	return &Journal{pool: pool}, nil
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	if j == nil || j.pool == nil {
		return fmt.Errorf("%w: nil journal", ErrInvalidConfig)
	}
	if _, err := j.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("transfer/postgres: ensure schema: %w", err)
	}
	return nil
}

func (j *Journal) Record(ctx context.Context, e transfer.Entry) error {
	if j == nil || j.pool == nil {
		return fmt.Errorf("%w: nil journal", ErrInvalidConfig)
	}
	if err := e.Validate(); err != nil {
		return err
	}

	_, err := j.pool.Exec(ctx, `
		INSERT INTO transfer_attempts (
			attempt_id,
			recorded_at,
			ui_state,
			stage,
			failure_kind,
			error_message,
			transaction_id
		) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
	`,
		e.AttemptID[:],
		e.At.UTC(),
		string(e.UIState),
		string(e.Stage),
		string(e.FailureKind),
		e.ErrorMessage,
		e.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("transfer/postgres: record entry: %w", err)
	}
	return nil
}

func (j *Journal) ListAttempt(ctx context.Context, attemptID [32]byte) ([]transfer.Entry, error) {
	if j == nil || j.pool == nil {
		return nil, fmt.Errorf("%w: nil journal", ErrInvalidConfig)
	}

	rows, err := j.pool.Query(ctx, `
		SELECT attempt_id, recorded_at, ui_state,
		       COALESCE(stage, ''), COALESCE(failure_kind, ''),
		       COALESCE(error_message, ''), COALESCE(transaction_id, '')
		FROM transfer_attempts
		WHERE attempt_id = $1
		ORDER BY seq
	`, attemptID[:])
	if err != nil {
		return nil, fmt.Errorf("transfer/postgres: list attempt: %w", err)
	}
	defer rows.Close()

	var out []transfer.Entry
	for rows.Next() {
		var (
			id []byte
			e  transfer.Entry

			uiState, stage, kind string
		)
		if err := rows.Scan(&id, &e.At, &uiState, &stage, &kind, &e.ErrorMessage, &e.TransactionID); err != nil {
			return nil, fmt.Errorf("transfer/postgres: scan entry: %w", err)
		}
		if len(id) != 32 {
			return nil, fmt.Errorf("transfer/postgres: unexpected attempt id length %d", len(id))
		}
		copy(e.AttemptID[:], id)
		e.UIState = transfer.UIState(uiState)
		e.Stage = transfer.Stage(stage)
		e.FailureKind = transfer.FailureKind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("transfer/postgres: iterate entries: %w", err)
	}
	return out, nil
}
