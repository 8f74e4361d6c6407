package dex

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type EventKind uint8

const (
	EventLiquidityAdded EventKind = iota + 1
	EventLiquidityRemoved
	EventSwap
	EventSync
)

func (k EventKind) String() string {
	switch k {
	case EventLiquidityAdded:
		return "LiquidityAdded"
	case EventLiquidityRemoved:
		return "LiquidityRemoved"
	case EventSwap:
		return "Swap"
	case EventSync:
		return "Sync"
	default:
		return "Unknown"
	}
}

// Event is emitted after a pool mutation commits. Account is the provider
// or trader; Sync carries only the new reserves.
type Event struct {
	Kind      EventKind
	Pool      common.Address
	Account   common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountA   *uint256.Int
	AmountB   *uint256.Int
	Liquidity *uint256.Int
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	ReserveA  *uint256.Int
	ReserveB  *uint256.Int
}

// Listener runs while the pool guard is still held. Any call back into the
// pool's mutating operations fails with ErrReentrant.
type Listener func(ctx context.Context, ev Event)

func (p *Pool) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

func (p *Pool) emit(ctx context.Context, ev Event) {
	ev.Pool = p.address
	p.mu.RLock()
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

func (p *Pool) emitSync(ctx context.Context) {
	reserveA, reserveB := p.GetReserves()
	p.emit(ctx, Event{Kind: EventSync, ReserveA: reserveA, ReserveB: reserveB})
}
