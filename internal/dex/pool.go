package dex

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Token is the ledger surface the pool moves balances through.
type Token interface {
	Address() common.Address
	BalanceOf(account common.Address) *uint256.Int
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, owner, to common.Address, amount *uint256.Int) error
	CheckTransferFrom(spender, owner common.Address, amount *uint256.Int) error
	UndoTransferFrom(ctx context.Context, spender, owner, from common.Address, amount *uint256.Int) error
}

// Config wires a pool to its account and its two ledgers.
type Config struct {
	Address common.Address
	TokenA  Token
	TokenB  Token
}

// Pool is a two-asset constant-product market.
type Pool struct {
	address common.Address
	tokenA  Token
	tokenB  Token

	guard Guard

	mu             sync.RWMutex
	reserveA       uint256.Int
	reserveB       uint256.Int
	totalLiquidity uint256.Int
	liquidity      map[common.Address]uint256.Int
	listeners      []Listener

	logger *zap.Logger
}

// NewPool builds an empty pool.
func NewPool(cfg Config, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TokenA == nil || cfg.TokenB == nil {
		return nil, fmt.Errorf("both tokens are required")
	}
	if cfg.TokenA.Address() == cfg.TokenB.Address() {
		return nil, fmt.Errorf("tokens must differ: %s", cfg.TokenA.Address().Hex())
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("pool address is required")
	}
	if cfg.Address == cfg.TokenA.Address() || cfg.Address == cfg.TokenB.Address() {
		return nil, fmt.Errorf("pool address collides with a token: %s", cfg.Address.Hex())
	}
	return &Pool{
		address:   cfg.Address,
		tokenA:    cfg.TokenA,
		tokenB:    cfg.TokenB,
		liquidity: make(map[common.Address]uint256.Int),
		logger:    logger.With(zap.String("pool", cfg.Address.Hex())),
	}, nil
}

// AddLiquidity deposits both tokens from provider and mints liquidity units.
// The provider must have approved the pool for both amounts.
func (p *Pool) AddLiquidity(ctx context.Context, provider common.Address, amountA, amountB *uint256.Int) (*uint256.Int, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if isZero(amountA) || isZero(amountB) {
		return nil, fmt.Errorf("add liquidity %s/%s: %w", dec(amountA), dec(amountB), ErrInvalidAmount)
	}
	if provider == (common.Address{}) {
		return nil, fmt.Errorf("add liquidity from zero address: %w", ErrInvalidAmount)
	}
	if provider == p.address {
		return nil, fmt.Errorf("add liquidity from pool account: %w", ErrInvalidAmount)
	}

	before := p.capture(provider)
	minted, err := mintedLiquidity(amountA, amountB, &before.reserveA, &before.reserveB, &before.total)
	if err != nil {
		return nil, err
	}
	if err := p.tokenA.CheckTransferFrom(p.address, provider, amountA); err != nil {
		return nil, fmt.Errorf("deposit token A: %w", err)
	}
	if err := p.tokenB.CheckTransferFrom(p.address, provider, amountB); err != nil {
		return nil, fmt.Errorf("deposit token B: %w", err)
	}

	next := before
	if _, overflow := next.reserveA.AddOverflow(&before.reserveA, amountA); overflow {
		return nil, fmt.Errorf("reserve A overflows: %w", ErrInvalidAmount)
	}
	if _, overflow := next.reserveB.AddOverflow(&before.reserveB, amountB); overflow {
		return nil, fmt.Errorf("reserve B overflows: %w", ErrInvalidAmount)
	}
	if _, overflow := next.total.AddOverflow(&before.total, minted); overflow {
		return nil, fmt.Errorf("total liquidity overflows: %w", ErrInvalidAmount)
	}
	next.held.Add(&before.held, minted)
	p.commit(next)

	if err := p.tokenA.TransferFrom(ctx, p.address, provider, p.address, amountA); err != nil {
		p.commit(before)
		return nil, fmt.Errorf("deposit token A: %w", err)
	}
	if err := p.tokenB.TransferFrom(ctx, p.address, provider, p.address, amountB); err != nil {
		if undoErr := p.tokenA.UndoTransferFrom(ctx, p.address, provider, p.address, amountA); undoErr != nil {
			p.logger.Error("undo token A deposit failed", zap.String("provider", provider.Hex()), zap.Error(undoErr))
		}
		p.commit(before)
		return nil, fmt.Errorf("deposit token B: %w", err)
	}

	p.logger.Debug("liquidity added",
		zap.String("provider", provider.Hex()),
		zap.String("amount_a", amountA.Dec()),
		zap.String("amount_b", amountB.Dec()),
		zap.String("minted", minted.Dec()),
	)
	p.emit(ctx, Event{
		Kind:      EventLiquidityAdded,
		Account:   provider,
		AmountA:   amountA.Clone(),
		AmountB:   amountB.Clone(),
		Liquidity: minted.Clone(),
	})
	p.emitSync(ctx)
	return minted, nil
}

// RemoveLiquidity burns liquidity units and pays out the provider's share of
// both reserves.
func (p *Pool) RemoveLiquidity(ctx context.Context, provider common.Address, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if isZero(liquidity) {
		return nil, nil, fmt.Errorf("remove zero liquidity: %w", ErrInvalidAmount)
	}
	if provider == p.address {
		return nil, nil, fmt.Errorf("remove liquidity to pool account: %w", ErrInvalidAmount)
	}

	before := p.capture(provider)
	if before.held.Lt(liquidity) {
		return nil, nil, fmt.Errorf("held %s < %s: %w", before.held.Dec(), liquidity.Dec(), ErrInsufficientLiquidity)
	}
	amountA := shareOf(&before.reserveA, liquidity, &before.total)
	amountB := shareOf(&before.reserveB, liquidity, &before.total)

	next := before
	next.reserveA.Sub(&before.reserveA, amountA)
	next.reserveB.Sub(&before.reserveB, amountB)
	next.total.Sub(&before.total, liquidity)
	next.held.Sub(&before.held, liquidity)
	p.commit(next)

	if !amountA.IsZero() {
		if err := p.tokenA.Transfer(ctx, p.address, provider, amountA); err != nil {
			p.commit(before)
			return nil, nil, fmt.Errorf("withdraw token A: %w", err)
		}
	}
	if !amountB.IsZero() {
		if err := p.tokenB.Transfer(ctx, p.address, provider, amountB); err != nil {
			if !amountA.IsZero() {
				if undoErr := p.tokenA.Transfer(ctx, provider, p.address, amountA); undoErr != nil {
					p.logger.Error("undo token A withdrawal failed", zap.String("provider", provider.Hex()), zap.Error(undoErr))
				}
			}
			p.commit(before)
			return nil, nil, fmt.Errorf("withdraw token B: %w", err)
		}
	}

	p.logger.Debug("liquidity removed",
		zap.String("provider", provider.Hex()),
		zap.String("liquidity", liquidity.Dec()),
		zap.String("amount_a", amountA.Dec()),
		zap.String("amount_b", amountB.Dec()),
	)
	p.emit(ctx, Event{
		Kind:      EventLiquidityRemoved,
		Account:   provider,
		AmountA:   amountA.Clone(),
		AmountB:   amountB.Clone(),
		Liquidity: liquidity.Clone(),
	})
	p.emitSync(ctx)
	return amountA, amountB, nil
}

// Swap sells amountIn of tokenIn for the other token at the constant-product
// price. The trader must have approved the pool for amountIn.
func (p *Pool) Swap(ctx context.Context, trader, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	in, out, aToB, err := p.route(tokenIn)
	if err != nil {
		return nil, err
	}
	if isZero(amountIn) {
		return nil, fmt.Errorf("zero swap input: %w", ErrInvalidAmount)
	}
	if trader == (common.Address{}) {
		return nil, fmt.Errorf("swap from zero address: %w", ErrInvalidAmount)
	}
	if trader == p.address {
		return nil, fmt.Errorf("swap from pool account: %w", ErrInvalidAmount)
	}

	before := p.capture(trader)
	if before.total.IsZero() {
		return nil, ErrPoolEmpty
	}
	reserveIn, reserveOut := before.reserveA, before.reserveB
	if !aToB {
		reserveIn, reserveOut = before.reserveB, before.reserveA
	}
	amountOut, err := GetAmountOut(amountIn, &reserveIn, &reserveOut)
	if err != nil {
		return nil, err
	}
	if err := in.CheckTransferFrom(p.address, trader, amountIn); err != nil {
		return nil, fmt.Errorf("swap input: %w", err)
	}

	var newIn, newOut uint256.Int
	if _, overflow := newIn.AddOverflow(&reserveIn, amountIn); overflow {
		return nil, fmt.Errorf("reserve overflows: %w", ErrInvalidAmount)
	}
	newOut.Sub(&reserveOut, amountOut)
	if !productNotDecreased(&reserveIn, &reserveOut, &newIn, &newOut) {
		return nil, fmt.Errorf("product decreased on swap: %w", ErrInvariantViolation)
	}

	next := before
	if aToB {
		next.reserveA, next.reserveB = newIn, newOut
	} else {
		next.reserveA, next.reserveB = newOut, newIn
	}
	p.commit(next)

	if err := in.TransferFrom(ctx, p.address, trader, p.address, amountIn); err != nil {
		p.commit(before)
		return nil, fmt.Errorf("swap input: %w", err)
	}
	if err := out.Transfer(ctx, p.address, trader, amountOut); err != nil {
		if undoErr := in.UndoTransferFrom(ctx, p.address, trader, p.address, amountIn); undoErr != nil {
			p.logger.Error("undo swap input failed", zap.String("trader", trader.Hex()), zap.Error(undoErr))
		}
		p.commit(before)
		return nil, fmt.Errorf("swap output: %w", err)
	}

	p.logger.Debug("swap",
		zap.String("trader", trader.Hex()),
		zap.String("token_in", tokenIn.Hex()),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", amountOut.Dec()),
	)
	p.emit(ctx, Event{
		Kind:      EventSwap,
		Account:   trader,
		TokenIn:   in.Address(),
		TokenOut:  out.Address(),
		AmountIn:  amountIn.Clone(),
		AmountOut: amountOut.Clone(),
	})
	p.emitSync(ctx)
	return amountOut, nil
}

// route resolves tokenIn to the (in, out) ledgers.
func (p *Pool) route(tokenIn common.Address) (Token, Token, bool, error) {
	switch tokenIn {
	case p.tokenA.Address():
		return p.tokenA, p.tokenB, true, nil
	case p.tokenB.Address():
		return p.tokenB, p.tokenA, false, nil
	default:
		return nil, nil, false, fmt.Errorf("%s is not in pool: %w", tokenIn.Hex(), ErrInvalidToken)
	}
}

// snapshot is the slice of pool state a single operation may touch.
type snapshot struct {
	reserveA uint256.Int
	reserveB uint256.Int
	total    uint256.Int
	account  common.Address
	held     uint256.Int
}

func (p *Pool) capture(account common.Address) snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return snapshot{
		reserveA: p.reserveA,
		reserveB: p.reserveB,
		total:    p.totalLiquidity,
		account:  account,
		held:     p.liquidity[account],
	}
}

// commit writes s back. Only valid while the guard is held, so no other
// mutation can interleave between capture and commit.
func (p *Pool) commit(s snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserveA = s.reserveA
	p.reserveB = s.reserveB
	p.totalLiquidity = s.total
	if s.held.IsZero() {
		delete(p.liquidity, s.account)
	} else {
		p.liquidity[s.account] = s.held
	}
}
