package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"soulsdex/internal/config"
	"soulsdex/internal/dex"
	"soulsdex/internal/journal"
	"soulsdex/internal/metrics"
	"soulsdex/internal/model"
	"soulsdex/internal/token"
)

// Engine owns one deployment (two ledgers and their pool) and applies
// operations to it one at a time, journaling the events each one emits.
type Engine struct {
	mu       sync.Mutex
	sequence uint64

	chainID  uint64
	deployer common.Address
	tokenA   *token.Ledger
	tokenB   *token.Ledger
	pool     *dex.Pool
	recorder *journal.Recorder
	aliases  map[string]common.Address

	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// FromGenesis deploys the tokens and pool described by g and performs its
// genesis mints. m may be nil.
func FromGenesis(ctx context.Context, g config.Genesis, m *metrics.Metrics, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	deployer := common.HexToAddress(g.Deployer)
	tokenA, err := newLedger(g.TokenA, deployer, logger)
	if err != nil {
		return nil, fmt.Errorf("token a: %w", err)
	}
	tokenB, err := newLedger(g.TokenB, deployer, logger)
	if err != nil {
		return nil, fmt.Errorf("token b: %w", err)
	}
	pool, err := dex.NewPool(dex.Config{
		Address: common.HexToAddress(g.Pool),
		TokenA:  tokenA,
		TokenB:  tokenB,
	}, logger)
	if err != nil {
		return nil, err
	}
	recorder, err := journal.NewRecorder(g.ChainID, logger)
	if err != nil {
		return nil, err
	}
	tokenA.Subscribe(recorder.TokenListener())
	tokenB.Subscribe(recorder.TokenListener())
	pool.Subscribe(recorder.PoolListener())

	e := &Engine{
		chainID:  g.ChainID,
		deployer: deployer,
		tokenA:   tokenA,
		tokenB:   tokenB,
		pool:     pool,
		recorder: recorder,
		aliases:  make(map[string]common.Address),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
	e.addAlias("A", tokenA.Address())
	e.addAlias("B", tokenB.Address())
	e.addAlias(tokenA.Symbol(), tokenA.Address())
	e.addAlias(tokenB.Symbol(), tokenB.Address())
	e.addAlias("pool", pool.Address())
	e.addAlias("deployer", deployer)
	for name, value := range g.Aliases {
		addr, err := e.address("alias "+name, value)
		if err != nil {
			return nil, err
		}
		e.addAlias(name, addr)
	}

	for i, mint := range g.Mints {
		ledger, err := e.ledger(mint.Token)
		if err != nil {
			return nil, fmt.Errorf("genesis mint %d: %w", i, err)
		}
		to, err := e.address("to", mint.To)
		if err != nil {
			return nil, fmt.Errorf("genesis mint %d: %w", i, err)
		}
		amt, err := amount("amount", mint.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis mint %d: %w", i, err)
		}
		if err := ledger.Mint(ctx, deployer, to, amt); err != nil {
			return nil, fmt.Errorf("genesis mint %d: %w", i, err)
		}
	}

	e.publishPool()
	return e, nil
}

func newLedger(g config.TokenGenesis, owner common.Address, logger *zap.Logger) (*token.Ledger, error) {
	supply, err := config.ParseAmount(g.InitialSupply)
	if err != nil {
		return nil, err
	}
	return token.New(token.Config{
		Address:       common.HexToAddress(g.Address),
		Name:          g.Name,
		Symbol:        g.Symbol,
		Decimals:      g.Decimals,
		Owner:         owner,
		InitialSupply: supply,
	}, logger)
}

// Apply runs one operation. Failures are reported in the result, never
// returned: a failed operation leaves no state change and no records.
func (e *Engine) Apply(ctx context.Context, op model.Operation) (model.OpResult, []model.LogRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sequence++
	ts := op.Timestamp
	if ts == 0 {
		ts = uint64(e.now().Unix())
	}
	res := model.OpResult{
		Sequence:  e.sequence,
		OpID:      uuid.NewString(),
		Op:        op.Op,
		Caller:    op.Caller,
		Timestamp: ts,
	}

	start := time.Now()
	scoped := e.recorder.Begin(ctx, res.Sequence, res.OpID, ts)
	outputs, mutated, err := e.dispatch(scoped, op)
	logs, recErr := e.recorder.End(scoped, err == nil)
	if err == nil && recErr != nil {
		// the state change stands; only its journal is incomplete
		e.logger.Error("journal operation", zap.Uint64("sequence", res.Sequence), zap.Error(recErr))
	}

	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = ErrorKind(err)
		e.logger.Debug("operation failed",
			zap.Uint64("sequence", res.Sequence),
			zap.String("op", op.Op),
			zap.String("kind", res.ErrorKind),
			zap.Error(err),
		)
	} else {
		res.OK = true
		res.Outputs = outputs
	}

	result := res.ErrorKind
	if res.OK {
		result = "ok"
	}
	e.metrics.ObserveOp(op.Op, result, res.Sequence, time.Since(start))
	if mutated && res.OK {
		e.publishPool()
	}
	return res, logs
}

// Sequence returns the sequence number of the last applied operation.
func (e *Engine) Sequence() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

func (e *Engine) ChainID() uint64          { return e.chainID }
func (e *Engine) Pool() *dex.Pool          { return e.pool }
func (e *Engine) TokenA() *token.Ledger    { return e.tokenA }
func (e *Engine) TokenB() *token.Ledger    { return e.tokenB }
func (e *Engine) Deployer() common.Address { return e.deployer }

// Resolve maps an alias or hex string to an address.
func (e *Engine) Resolve(value string) (common.Address, error) {
	return e.address("address", value)
}

// SubscribeToken registers fn on both ledgers.
func (e *Engine) SubscribeToken(fn token.Listener) {
	e.tokenA.Subscribe(fn)
	e.tokenB.Subscribe(fn)
}

func (e *Engine) SubscribePool(fn dex.Listener) {
	e.pool.Subscribe(fn)
}

// CheckInvariants verifies pool and ledger consistency.
func (e *Engine) CheckInvariants() error {
	return e.pool.CheckInvariants()
}

// PoolMeta describes the pool's token pair for decoders and aggregators.
func (e *Engine) PoolMeta() model.PoolMeta {
	return model.PoolMeta{
		TokenA:  e.tokenA.Address().Hex(),
		TokenB:  e.tokenB.Address().Hex(),
		SymbolA: e.tokenA.Symbol(),
		SymbolB: e.tokenB.Symbol(),
	}
}

func (e *Engine) publishPool() {
	reserveA, reserveB := e.pool.GetReserves()
	e.metrics.SetPool(e.pool.Address().Hex(), e.tokenA.Symbol(), e.tokenB.Symbol(), reserveA, reserveB, e.pool.TotalLiquidity(), e.pool.ProviderCount())
}

func normalizeOp(op string) string {
	return strings.ToLower(strings.TrimSpace(op))
}
