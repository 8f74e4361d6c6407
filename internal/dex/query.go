package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) TokenA() common.Address  { return p.tokenA.Address() }
func (p *Pool) TokenB() common.Address  { return p.tokenB.Address() }

// GetReserves returns copies of both reserves. It does not wait for an
// in-flight mutation, which commits before its ledger transfers and restores
// the previous state if one fails.
func (p *Pool) GetReserves() (*uint256.Int, *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reserveA.Clone(), p.reserveB.Clone()
}

// GetLiquidity returns the units held by provider.
func (p *Pool) GetLiquidity(provider common.Address) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	held := p.liquidity[provider]
	return held.Clone()
}

func (p *Pool) TotalLiquidity() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalLiquidity.Clone()
}

// Quote previews Swap against the current reserves.
func (p *Pool) Quote(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	_, _, aToB, err := p.route(tokenIn)
	if err != nil {
		return nil, err
	}
	if isZero(amountIn) {
		return nil, fmt.Errorf("zero swap input: %w", ErrInvalidAmount)
	}
	p.mu.RLock()
	reserveIn, reserveOut, total := p.reserveA, p.reserveB, p.totalLiquidity
	p.mu.RUnlock()
	if total.IsZero() {
		return nil, ErrPoolEmpty
	}
	if !aToB {
		reserveIn, reserveOut = reserveOut, reserveIn
	}
	return GetAmountOut(amountIn, &reserveIn, &reserveOut)
}

// ProviderCount returns the number of accounts holding liquidity.
func (p *Pool) ProviderCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.liquidity)
}
