package postgres

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS journal_logs (
	chain_id   BIGINT NOT NULL,
	sequence   BIGINT NOT NULL,
	log_index  BIGINT NOT NULL,
	op_id      TEXT NOT NULL,
	address    TEXT NOT NULL,
	topics     TEXT[] NOT NULL,
	data       TEXT NOT NULL,
	ts         BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, sequence, log_index)
);

CREATE TABLE IF NOT EXISTS op_results (
	sequence   BIGINT PRIMARY KEY,
	op_id      TEXT NOT NULL,
	op         TEXT NOT NULL,
	caller     TEXT NOT NULL,
	ok         BOOLEAN NOT NULL,
	error      TEXT NOT NULL,
	error_kind TEXT NOT NULL,
	outputs    JSONB,
	ts         BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pools (
	chain_id       BIGINT NOT NULL,
	pool_address   TEXT NOT NULL,
	token_a        TEXT NOT NULL,
	token_b        TEXT NOT NULL,
	first_seen_seq BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pool_address)
);

CREATE TABLE IF NOT EXISTS pool_window_stats (
	chain_id            BIGINT NOT NULL,
	pool_address        TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	volume_a            NUMERIC NOT NULL,
	volume_b            NUMERIC NOT NULL,
	deposit_count       BIGINT NOT NULL,
	withdraw_count      BIGINT NOT NULL,
	liquidity_minted    NUMERIC NOT NULL,
	liquidity_burned    NUMERIC NOT NULL,
	reserve_a           NUMERIC,
	reserve_b           NUMERIC,
	price_ab            NUMERIC,
	first_sequence      BIGINT NOT NULL,
	last_sequence       BIGINT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pool_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS aggregate_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the tables this store writes to when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
