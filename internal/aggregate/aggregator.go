package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"soulsdex/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Store receives aggregated pools and windows.
type Store interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator folds typed pool events into per-window statistics.
type Aggregator struct {
	cfg          Config
	store        Store
	logger       *zap.Logger
	decimals     *TokenDecimalsCache
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.Pool
}

func NewAggregator(cfg Config, store Store, decimals *TokenDecimalsCache, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decimals == nil {
		decimals = NewTokenDecimalsCache()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		decimals:     decimals,
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]model.Pool),
	}
}

// Run executes aggregation over a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.Pool, 0, 16)
	maxTs := startTs
	var total, windows, skipped, failed int

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			continue
		}

		// token events carry no pool meta
		if record.PoolMeta == nil || record.Timestamp <= startTs {
			skipped++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(record.Address)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			metrics, pool := a.flushAccumulator(acc)
			if metrics != nil {
				batch = append(batch, *metrics)
				windows++
			}
			if pool != nil {
				pools = append(pools, *pool)
			}
			next := NewAccumulator(record, windowStart, windowEnd)
			// reserves carry over until the next Sync
			next.ReserveA, next.ReserveB = acc.ReserveA, acc.ReserveB
			acc = next
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Address), zap.String("event", record.EventName))
			continue
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		metrics, pool := a.flushAccumulator(acc)
		if metrics != nil {
			batch = append(batch, *metrics)
			windows++
		}
		if pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	// open windows are recomputed on the next run
	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.Pool) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return err
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) (*model.PoolWindowMetrics, *model.Pool) {
	if acc == nil {
		return nil, nil
	}

	poolMeta := acc.PoolMeta
	if poolMeta.TokenA == "" || poolMeta.TokenB == "" {
		a.logger.Warn("missing pool meta", zap.String("pool", acc.PoolAddress))
		return nil, nil
	}

	poolRecord := a.registerPool(acc)

	decimalsA := a.tokenDecimals(poolMeta.TokenA)
	decimalsB := a.tokenDecimals(poolMeta.TokenB)

	metrics := &model.PoolWindowMetrics{
		ChainID:         acc.ChainID,
		PoolAddress:     acc.PoolAddress,
		WindowSizeSecs:  int64(a.cfg.WindowSeconds),
		WindowStart:     time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:       time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:       acc.SwapCount,
		VolumeA:         formatTokenAmount(acc.VolumeA, decimalsA),
		VolumeB:         formatTokenAmount(acc.VolumeB, decimalsB),
		DepositCount:    acc.DepositCount,
		WithdrawCount:   acc.WithdrawCount,
		LiquidityMinted: acc.LiquidityMinted.String(),
		LiquidityBurned: acc.LiquidityBurned.String(),
		FirstSequence:   acc.FirstSeq,
		LastSequence:    acc.LastSeq,
	}
	if acc.ReserveA != nil && acc.ReserveB != nil {
		reserveA := formatTokenAmount(acc.ReserveA, decimalsA)
		reserveB := formatTokenAmount(acc.ReserveB, decimalsB)
		metrics.ReserveA = &reserveA
		metrics.ReserveB = &reserveB
		if price := computeSpotPrice(acc.ReserveA, acc.ReserveB, decimalsA, decimalsB); price != "" {
			metrics.PriceAB = &price
		}
	}

	return metrics, poolRecord
}

func (a *Aggregator) registerPool(acc *Accumulator) *model.Pool {
	key := poolKey(acc.PoolAddress)
	pool := model.Pool{
		ChainID:      acc.ChainID,
		Address:      acc.PoolAddress,
		TokenA:       acc.PoolMeta.TokenA,
		TokenB:       acc.PoolMeta.TokenB,
		FirstSeenSeq: acc.FirstSeq,
	}

	existing, ok := a.poolSeen[key]
	if ok {
		if existing.FirstSeenSeq <= pool.FirstSeenSeq {
			return nil
		}
	}

	a.poolSeen[key] = pool
	return &pool
}

func (a *Aggregator) tokenDecimals(token string) uint8 {
	if !common.IsHexAddress(token) {
		a.logger.Warn("invalid token address", zap.String("token", token))
		return 0
	}
	decimals, ok := a.decimals.Get(common.HexToAddress(token))
	if !ok {
		a.logger.Warn("unknown token decimals", zap.String("token", token))
	}
	return decimals
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var earliest uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if earliest == 0 || entry.WindowStart < earliest {
			earliest = entry.WindowStart
		}
	}
	return earliest
}
