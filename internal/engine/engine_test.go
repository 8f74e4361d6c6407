package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulsdex/internal/config"
	"soulsdex/internal/metrics"
	"soulsdex/internal/model"
)

const (
	alice = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	bob   = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

func newEngine(t *testing.T) (*Engine, *metrics.Metrics) {
	t.Helper()
	g := config.DefaultGenesis()
	g.Aliases = map[string]string{"alice": alice, "bob": bob}
	g.Mints = []config.GenesisMint{
		{Token: "A", To: "alice", Amount: "10000"},
		{Token: "B", To: "alice", Amount: "10000"},
		{Token: "INT", To: bob, Amount: "500"},
	}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	e, err := FromGenesis(context.Background(), g, m, nil)
	require.NoError(t, err)
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	return e, m
}

func apply(t *testing.T, e *Engine, op model.Operation) (model.OpResult, []model.LogRecord) {
	t.Helper()
	return e.Apply(context.Background(), op)
}

func mustOK(t *testing.T, e *Engine, op model.Operation) model.OpResult {
	t.Helper()
	res, _ := apply(t, e, op)
	require.Truef(t, res.OK, "%s failed: %s (%s)", op.Op, res.Error, res.ErrorKind)
	return res
}

func seedPool(t *testing.T, e *Engine) {
	t.Helper()
	mustOK(t, e, model.Operation{Op: "approve", Caller: "alice", Token: "A", Spender: "pool", Amount: "100000"})
	mustOK(t, e, model.Operation{Op: "approve", Caller: "alice", Token: "B", Spender: "pool", Amount: "100000"})
	mustOK(t, e, model.Operation{Op: "addLiquidity", Caller: "alice", AmountA: "5000", AmountB: "5000"})
}

// =============================================================================
// Genesis
// =============================================================================

func TestFromGenesis(t *testing.T) {
	e, _ := newEngine(t)

	res := mustOK(t, e, model.Operation{Op: "balanceOf", Token: "INT", Account: "alice"})
	assert.Equal(t, "10000", res.Outputs["balance"])

	res = mustOK(t, e, model.Operation{Op: "balanceOf", Token: "FTH", Account: "deployer"})
	assert.Equal(t, "1000000000000000000000", res.Outputs["balance"])

	res = mustOK(t, e, model.Operation{Op: "totalSupply", Token: "a"})
	assert.Equal(t, "1000000000000000010500", res.Outputs["total_supply"])

	assert.Equal(t, "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", e.Pool().Address().Hex())
	assert.Equal(t, "INT", e.PoolMeta().SymbolA)
	require.NoError(t, e.CheckInvariants())
}

func TestFromGenesisRejectsBadMint(t *testing.T) {
	g := config.DefaultGenesis()
	g.Mints = []config.GenesisMint{{Token: "ZZZ", To: alice, Amount: "1"}}
	_, err := FromGenesis(context.Background(), g, nil, nil)
	require.ErrorIs(t, err, ErrBadRequest)
}

// =============================================================================
// Pool operations
// =============================================================================

func TestApplyPoolScenario(t *testing.T) {
	e, m := newEngine(t)
	seedPool(t, e)

	res := mustOK(t, e, model.Operation{Op: "getLiquidity", Provider: "alice"})
	assert.Equal(t, "10000", res.Outputs["liquidity"])

	res = mustOK(t, e, model.Operation{Op: "quote", TokenIn: "A", AmountIn: "100"})
	assert.Equal(t, "98", res.Outputs["amount_out"])

	res, logs := apply(t, e, model.Operation{Op: "swap", Caller: "alice", TokenIn: "A", AmountIn: "100", Timestamp: 42})
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "98", res.Outputs["amount_out"])
	assert.Equal(t, uint64(42), res.Timestamp)
	require.Len(t, logs, 4) // transfer in, transfer out, swap, sync
	for i, lr := range logs {
		assert.Equal(t, res.Sequence, lr.Sequence)
		assert.Equal(t, res.OpID, lr.OpID)
		assert.Equal(t, uint64(i), lr.LogIndex)
		assert.Equal(t, uint64(config.DefaultChainID), lr.ChainID)
	}

	res = mustOK(t, e, model.Operation{Op: "getReserves"})
	assert.Equal(t, "5100", res.Outputs["reserve_a"])
	assert.Equal(t, "4902", res.Outputs["reserve_b"])

	res = mustOK(t, e, model.Operation{Op: "removeLiquidity", Caller: "alice", Liquidity: "10000"})
	assert.Equal(t, "5100", res.Outputs["amount_a"])
	assert.Equal(t, "4902", res.Outputs["amount_b"])
	require.NoError(t, e.CheckInvariants())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsCounter("swap", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpsCounter("approve", "ok")))
}

func TestPoolAccountCannotSign(t *testing.T) {
	e, _ := newEngine(t)
	seedPool(t, e)

	ops := []model.Operation{
		{Op: "transfer", Caller: "pool", Token: "A", To: bob, Amount: "5000"},
		{Op: "approve", Caller: "pool", Token: "A", Spender: bob, Amount: "5000"},
		{Op: "transferFrom", Caller: "bob", Token: "A", From: "pool", To: bob, Amount: "1"},
		{Op: "mintTo", Caller: "pool", Token: "A", To: bob, Amount: "1"},
		{Op: "transferOwnership", Caller: "pool", Token: "A", To: bob},
		{Op: "addLiquidity", Caller: "pool", AmountA: "100", AmountB: "100"},
		{Op: "removeLiquidity", Caller: "pool", Liquidity: "1"},
		{Op: "swap", Caller: "pool", TokenIn: "A", AmountIn: "100"},
	}
	for _, op := range ops {
		t.Run(op.Op, func(t *testing.T) {
			res, logs := apply(t, e, op)
			assert.False(t, res.OK)
			assert.Equal(t, "BadRequest", res.ErrorKind)
			assert.Empty(t, logs)
		})
	}

	res := mustOK(t, e, model.Operation{Op: "balanceOf", Token: "A", Account: "pool"})
	assert.Equal(t, "5000", res.Outputs["balance"])
	mustOK(t, e, model.Operation{Op: "removeLiquidity", Caller: "alice", Liquidity: "10000"})
	require.NoError(t, e.CheckInvariants())
}

func TestApplyTransferFrom(t *testing.T) {
	e, _ := newEngine(t)
	mustOK(t, e, model.Operation{Op: "approve", Caller: "alice", Token: "A", Spender: "bob", Amount: "300"})

	res := mustOK(t, e, model.Operation{Op: "allowance", Token: "A", Owner: "alice", Spender: "bob"})
	assert.Equal(t, "300", res.Outputs["allowance"])

	mustOK(t, e, model.Operation{Op: "transferFrom", Caller: "bob", Token: "A", From: "alice", To: "bob", Amount: "200"})
	res = mustOK(t, e, model.Operation{Op: "balanceOf", Token: "A", Account: "bob"})
	assert.Equal(t, "700", res.Outputs["balance"])

	res, _ = apply(t, e, model.Operation{Op: "transferFrom", Caller: "bob", Token: "A", From: "alice", To: "bob", Amount: "200"})
	assert.Equal(t, "InsufficientAllowance", res.ErrorKind)
}

func TestApplyOwnership(t *testing.T) {
	e, _ := newEngine(t)

	res, _ := apply(t, e, model.Operation{Op: "mintTo", Caller: "alice", Token: "A", To: "alice", Amount: "1"})
	assert.Equal(t, "Unauthorized", res.ErrorKind)

	res = mustOK(t, e, model.Operation{Op: "transferOwnership", Caller: "deployer", Token: "A", To: "alice"})
	assert.Equal(t, alice, res.Outputs["owner"])

	mustOK(t, e, model.Operation{Op: "mintTo", Caller: "alice", Token: "A", To: "bob", Amount: "1"})
	res, _ = apply(t, e, model.Operation{Op: "mintTo", Caller: "deployer", Token: "A", To: "bob", Amount: "1"})
	assert.Equal(t, "Unauthorized", res.ErrorKind)
}

// =============================================================================
// Failures
// =============================================================================

func TestApplyErrorKinds(t *testing.T) {
	e, _ := newEngine(t)

	cases := []struct {
		name string
		op   model.Operation
		kind string
	}{
		{"unknown op", model.Operation{Op: "flashLoan"}, "BadRequest"},
		{"missing caller", model.Operation{Op: "swap", TokenIn: "A", AmountIn: "1"}, "BadRequest"},
		{"bad amount", model.Operation{Op: "transfer", Caller: "alice", Token: "A", To: "bob", Amount: "1e3"}, "BadRequest"},
		{"unknown ledger", model.Operation{Op: "balanceOf", Token: "0x0000000000000000000000000000000000000001", Account: "alice"}, "BadRequest"},
		{"zero transfer", model.Operation{Op: "transfer", Caller: "alice", Token: "A", To: "bob", Amount: "0"}, "InvalidAmount"},
		{"overdraw", model.Operation{Op: "transfer", Caller: "bob", Token: "B", To: "alice", Amount: "1"}, "InsufficientBalance"},
		{"foreign token", model.Operation{Op: "swap", Caller: "alice", TokenIn: "0x0000000000000000000000000000000000000001", AmountIn: "1"}, "InvalidToken"},
		{"empty pool", model.Operation{Op: "swap", Caller: "alice", TokenIn: "A", AmountIn: "1"}, "PoolEmpty"},
		{"no liquidity", model.Operation{Op: "removeLiquidity", Caller: "alice", Liquidity: "1"}, "InsufficientLiquidity"},
		{"no allowance", model.Operation{Op: "addLiquidity", Caller: "alice", AmountA: "10", AmountB: "10"}, "InsufficientAllowance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, logs := apply(t, e, tc.op)
			assert.False(t, res.OK)
			assert.Equal(t, tc.kind, res.ErrorKind, res.Error)
			assert.NotEmpty(t, res.Error)
			assert.Empty(t, logs)
		})
	}
	require.NoError(t, e.CheckInvariants())
}

func TestApplyAssignsSequences(t *testing.T) {
	e, _ := newEngine(t)
	first, _ := apply(t, e, model.Operation{Op: "getReserves"})
	second, _ := apply(t, e, model.Operation{Op: "nope"})
	third, _ := apply(t, e, model.Operation{Op: "getReserves"})

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, uint64(3), third.Sequence)
	assert.Equal(t, uint64(3), e.Sequence())
	assert.NotEqual(t, first.OpID, third.OpID)
	assert.Equal(t, uint64(1700000000), first.Timestamp)
}

func TestRatioMismatchKind(t *testing.T) {
	e, _ := newEngine(t)
	seedPool(t, e)
	res, _ := apply(t, e, model.Operation{Op: "addLiquidity", Caller: "alice", AmountA: "100", AmountB: "50"})
	assert.Equal(t, "RatioMismatch", res.ErrorKind)
}

func TestErrorKindFallback(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "Internal", ErrorKind(assert.AnError))
}

func TestResolve(t *testing.T) {
	e, _ := newEngine(t)
	addr, err := e.Resolve("Alice")
	require.NoError(t, err)
	assert.Equal(t, alice, addr.Hex())

	addr, err = e.Resolve("fth")
	require.NoError(t, err)
	assert.Equal(t, e.TokenB().Address(), addr)

	_, err = e.Resolve("carol")
	require.ErrorIs(t, err, ErrBadRequest)
}
