package dex

import (
	"errors"

	"soulsdex/internal/token"
)

// Ledger failures surface unchanged through pool operations.
var (
	ErrInvalidAmount         = token.ErrInvalidAmount
	ErrInsufficientBalance   = token.ErrInsufficientBalance
	ErrInsufficientAllowance = token.ErrInsufficientAllowance
	ErrUnauthorized          = token.ErrUnauthorized
)

var (
	ErrInvalidToken          = errors.New("dex: invalid token")
	ErrInsufficientLiquidity = errors.New("dex: insufficient liquidity")
	ErrRatioMismatch         = errors.New("dex: ratio mismatch")
	ErrPoolEmpty             = errors.New("dex: pool empty")
	ErrInsufficientOutput    = errors.New("dex: insufficient output")
	ErrReentrant             = errors.New("dex: reentrant call")
	ErrInvariantViolation    = errors.New("dex: invariant violation")
)
