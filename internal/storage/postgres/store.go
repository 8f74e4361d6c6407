package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"soulsdex/internal/model"
)

// Store provides Postgres persistence for the journal, results and
// aggregated pool statistics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutLogBatch upserts journal records keyed by (chain_id, sequence, log_index).
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, lr := range logs {
		batch.Queue(`
			INSERT INTO journal_logs (
				chain_id, sequence, log_index, op_id, address, topics, data, ts, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (chain_id, sequence, log_index)
			DO UPDATE SET
				op_id = EXCLUDED.op_id,
				address = EXCLUDED.address,
				topics = EXCLUDED.topics,
				data = EXCLUDED.data,
				ts = EXCLUDED.ts
		`,
			int64(lr.ChainID),
			int64(lr.Sequence),
			int64(lr.LogIndex),
			lr.OpID,
			lr.Address,
			lr.Topics,
			lr.Data,
			int64(lr.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutResultBatch upserts operation results keyed by sequence.
func (s *Store) PutResultBatch(ctx context.Context, results []model.OpResult) error {
	if len(results) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, res := range results {
		outputs, err := json.Marshal(res.Outputs)
		if err != nil {
			return fmt.Errorf("marshal outputs: %w", err)
		}
		batch.Queue(`
			INSERT INTO op_results (
				sequence, op_id, op, caller, ok, error, error_kind, outputs, ts, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (sequence)
			DO UPDATE SET
				op_id = EXCLUDED.op_id,
				op = EXCLUDED.op,
				caller = EXCLUDED.caller,
				ok = EXCLUDED.ok,
				error = EXCLUDED.error,
				error_kind = EXCLUDED.error_kind,
				outputs = EXCLUDED.outputs,
				ts = EXCLUDED.ts
		`,
			int64(res.Sequence),
			res.OpID,
			res.Op,
			res.Caller,
			res.OK,
			res.Error,
			res.ErrorKind,
			outputs,
			int64(res.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, token_a, token_b, first_seen_seq, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token_a = EXCLUDED.token_a,
				token_b = EXCLUDED.token_b,
				first_seen_seq = LEAST(pools.first_seen_seq, EXCLUDED.first_seen_seq),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.TokenA,
			pool.TokenB,
			int64(pool.FirstSeenSeq),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_stats (
				chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume_a, volume_b, deposit_count, withdraw_count,
				liquidity_minted, liquidity_burned, reserve_a, reserve_b, price_ab,
				first_sequence, last_sequence, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				liquidity_minted = EXCLUDED.liquidity_minted,
				liquidity_burned = EXCLUDED.liquidity_burned,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				price_ab = EXCLUDED.price_ab,
				first_sequence = EXCLUDED.first_sequence,
				last_sequence = EXCLUDED.last_sequence,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.VolumeA,
			m.VolumeB,
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.LiquidityMinted,
			m.LiquidityBurned,
			m.ReserveA,
			m.ReserveB,
			m.PriceAB,
			int64(m.FirstSequence),
			int64(m.LastSequence),
		)
	}
	return s.sendBatch(ctx, batch)
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregate_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregate_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
