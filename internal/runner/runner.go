package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"soulsdex/internal/metrics"
	"soulsdex/internal/model"
	"soulsdex/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	OpsPath           string
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	StopOnError       bool
	ResetCheckpoint   bool
}

// Applier applies one operation and returns its result and journal.
type Applier interface {
	Apply(ctx context.Context, op model.Operation) (model.OpResult, []model.LogRecord)
	Sequence() uint64
}

// Summary counts what a run did.
type Summary struct {
	Replayed  uint64
	Applied   uint64
	Failed    uint64
	Malformed int
	Logs      int
}

// Runner replays an operations file through an engine and writes the
// journal and results to storage in batches.
type Runner struct {
	cfg        RunConfig
	engine     Applier
	storage    storage.Storage
	metrics    *metrics.Metrics
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. m may be nil.
func NewRunner(cfg RunConfig, engine Applier, storageSink storage.Storage, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		engine:     engine,
		storage:    storageSink,
		metrics:    m,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run replays every operation. When a checkpoint exists the operations it
// covers are re-applied to rebuild state but not written again.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if r.engine == nil {
		return sum, fmt.Errorf("engine is nil")
	}
	if r.storage == nil {
		return sum, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return sum, fmt.Errorf("batch size must be greater than zero")
	}
	if r.engine.Sequence() != 0 {
		return sum, fmt.Errorf("engine already applied %d operations", r.engine.Sequence())
	}

	ops, bad, err := ReadOperationsFile(r.cfg.OpsPath)
	if err != nil {
		return sum, err
	}
	sum.Malformed = len(bad)
	for _, lineErr := range bad {
		r.logger.Warn("skip malformed operation", zap.Int("line", lineErr.Line), zap.Error(lineErr.Err))
	}
	if len(bad) > 0 && r.cfg.StopOnError {
		return sum, fmt.Errorf("malformed operation: %w", bad[0])
	}

	total := uint64(len(ops))
	var done uint64
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return sum, err
	}
	if ok && r.cfg.ResetCheckpoint {
		r.logger.Info("ignore checkpoint", zap.Uint64("last_sequence", cp.LastSequence), zap.String("checkpoint_ops", cp.OpsPath))
		ok = false
	}
	if ok {
		if cp.OpsPath != "" && filepath.Clean(cp.OpsPath) != filepath.Clean(r.cfg.OpsPath) {
			return sum, fmt.Errorf("checkpoint written for %s, not %s (reset the checkpoint to start over)", cp.OpsPath, r.cfg.OpsPath)
		}
		if cp.LastSequence > total {
			return sum, fmt.Errorf("checkpoint at %d but only %d operations", cp.LastSequence, total)
		}
		done = cp.LastSequence
		for _, op := range ops[:done] {
			r.engine.Apply(ctx, op)
		}
		sum.Replayed = done
		r.logger.Info("resume from checkpoint", zap.Uint64("last_sequence", done))
	}

	if done >= total {
		r.logger.Info("nothing to apply", zap.Uint64("applied", done), zap.Uint64("ops", total))
		return sum, nil
	}

	ranges, err := SplitRange(done+1, total, r.cfg.BatchSize)
	if err != nil {
		return sum, err
	}

	for _, opRange := range ranges {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		results := make([]model.OpResult, 0, opRange.To-opRange.From+1)
		var logs []model.LogRecord
		var failure *model.OpResult
		for _, op := range ops[opRange.From-1 : opRange.To] {
			res, records := r.engine.Apply(ctx, op)
			results = append(results, res)
			logs = append(logs, records...)
			sum.Applied++
			if !res.OK {
				sum.Failed++
				if r.cfg.StopOnError {
					failure = &res
					break
				}
			}
		}

		if err := r.write(ctx, logs, results); err != nil {
			return sum, err
		}
		sum.Logs += len(logs)

		last := results[len(results)-1].Sequence
		if err := r.checkpoint.Save(last, r.cfg.OpsPath); err != nil {
			return sum, err
		}

		r.logger.Info("batch complete",
			zap.Uint64("from", opRange.From),
			zap.Uint64("to", last),
			zap.Int("results", len(results)),
			zap.Int("logs", len(logs)),
		)

		if failure != nil {
			return sum, fmt.Errorf("operation %d (%s) failed: %s", failure.Sequence, failure.Op, failure.Error)
		}
	}

	return sum, nil
}

func (r *Runner) write(ctx context.Context, logs []model.LogRecord, results []model.OpResult) error {
	onRetry := func(attempt int, err error) {
		r.metrics.SinkRetry()
		r.logger.Warn("sink write failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	if len(logs) > 0 {
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			return r.storage.PutLogBatch(ctx, logs)
		}, onRetry)
		if err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
	}
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		return r.storage.PutResultBatch(ctx, results)
	}, onRetry)
	if err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	return nil
}
