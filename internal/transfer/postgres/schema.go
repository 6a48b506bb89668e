package postgres

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transfer_attempts (
	seq BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	attempt_id BYTEA NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,

	ui_state TEXT NOT NULL,
	stage TEXT,

	failure_kind TEXT,
	error_message TEXT,
	transaction_id TEXT,

	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

	CONSTRAINT attempt_id_len CHECK (octet_length(attempt_id) = 32),
	CONSTRAINT ui_state_nonempty CHECK (ui_state <> ''),
	CONSTRAINT transaction_id_nonempty CHECK (transaction_id IS NULL OR transaction_id <> '')
);

CREATE INDEX IF NOT EXISTS transfer_attempts_attempt_idx ON transfer_attempts (attempt_id, seq);
CREATE INDEX IF NOT EXISTS transfer_attempts_recorded_idx ON transfer_attempts (recorded_at);
`
