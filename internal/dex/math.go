package dex

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// GetAmountOut prices a swap against the constant product:
// floor(reserveOut * amountIn / (reserveIn + amountIn)).
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if isZero(amountIn) {
		return nil, fmt.Errorf("zero swap input: %w", ErrInvalidAmount)
	}
	if isZero(reserveIn) || isZero(reserveOut) {
		return nil, ErrPoolEmpty
	}
	denom, overflow := new(uint256.Int).AddOverflow(reserveIn, amountIn)
	if overflow {
		return nil, fmt.Errorf("swap input %s overflows reserve: %w", amountIn.Dec(), ErrInvalidAmount)
	}
	out, _ := new(uint256.Int).MulDivOverflow(reserveOut, amountIn, denom)
	if out.IsZero() {
		return nil, fmt.Errorf("swap input %s yields nothing: %w", amountIn.Dec(), ErrInsufficientOutput)
	}
	return out, nil
}

// mintedLiquidity returns the units a deposit earns. An empty pool mints
// amountA + amountB; otherwise the deposit must match the reserve ratio
// exactly and earns floor(total * amountA / reserveA).
func mintedLiquidity(amountA, amountB, reserveA, reserveB, total *uint256.Int) (*uint256.Int, error) {
	if total.IsZero() {
		minted, overflow := new(uint256.Int).AddOverflow(amountA, amountB)
		if overflow {
			return nil, fmt.Errorf("initial liquidity overflows: %w", ErrInvalidAmount)
		}
		return minted, nil
	}
	if !ratioMatches(amountA, amountB, reserveA, reserveB) {
		return nil, fmt.Errorf("deposit %s/%s against reserves %s/%s: %w",
			amountA.Dec(), amountB.Dec(), reserveA.Dec(), reserveB.Dec(), ErrRatioMismatch)
	}
	minted, overflow := new(uint256.Int).MulDivOverflow(total, amountA, reserveA)
	if overflow {
		return nil, fmt.Errorf("minted liquidity overflows: %w", ErrInvalidAmount)
	}
	if minted.IsZero() {
		return nil, fmt.Errorf("deposit %s/%s mints no liquidity: %w", amountA.Dec(), amountB.Dec(), ErrInvalidAmount)
	}
	return minted, nil
}

// shareOf returns floor(reserve * liquidity / total). liquidity <= total.
func shareOf(reserve, liquidity, total *uint256.Int) *uint256.Int {
	out, _ := new(uint256.Int).MulDivOverflow(reserve, liquidity, total)
	return out
}

func ratioMatches(amountA, amountB, reserveA, reserveB *uint256.Int) bool {
	lhs := new(big.Int).Mul(amountA.ToBig(), reserveB.ToBig())
	rhs := new(big.Int).Mul(amountB.ToBig(), reserveA.ToBig())
	return lhs.Cmp(rhs) == 0
}

func productNotDecreased(inBefore, outBefore, inAfter, outAfter *uint256.Int) bool {
	before := new(big.Int).Mul(inBefore.ToBig(), outBefore.ToBig())
	after := new(big.Int).Mul(inAfter.ToBig(), outAfter.ToBig())
	return after.Cmp(before) >= 0
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
