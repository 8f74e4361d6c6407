package dex

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

type supplyChecker interface {
	CheckSupply() error
}

// CheckInvariants verifies liquidity conservation, solvency and that the
// ledgers hold at least the recorded reserves in the pool account. It holds
// the guard, so it fails with ErrReentrant while a mutation is in flight
// instead of reporting that mutation's intermediate state.
func (p *Pool) CheckInvariants() error {
	_, release, err := p.guard.Enter(context.Background())
	if err != nil {
		return fmt.Errorf("check invariants: %w", err)
	}
	defer release()

	p.mu.RLock()
	reserveA, reserveB, total := p.reserveA, p.reserveB, p.totalLiquidity
	var sum uint256.Int
	overflow := false
	for _, held := range p.liquidity {
		if _, of := sum.AddOverflow(&sum, &held); of {
			overflow = true
		}
	}
	p.mu.RUnlock()

	var errs []error
	if overflow || !sum.Eq(&total) {
		errs = append(errs, fmt.Errorf("provider liquidity %s != total %s: %w", sum.Dec(), total.Dec(), ErrInvariantViolation))
	}
	if reserveA.IsZero() != reserveB.IsZero() || reserveA.IsZero() != total.IsZero() {
		errs = append(errs, fmt.Errorf("reserves %s/%s with total %s: %w", reserveA.Dec(), reserveB.Dec(), total.Dec(), ErrInvariantViolation))
	}
	if bal := p.tokenA.BalanceOf(p.address); bal.Lt(&reserveA) {
		errs = append(errs, fmt.Errorf("token A balance %s < reserve %s: %w", bal.Dec(), reserveA.Dec(), ErrInvariantViolation))
	}
	if bal := p.tokenB.BalanceOf(p.address); bal.Lt(&reserveB) {
		errs = append(errs, fmt.Errorf("token B balance %s < reserve %s: %w", bal.Dec(), reserveB.Dec(), ErrInvariantViolation))
	}
	for _, tok := range []Token{p.tokenA, p.tokenB} {
		if sc, ok := tok.(supplyChecker); ok {
			if err := sc.CheckSupply(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
