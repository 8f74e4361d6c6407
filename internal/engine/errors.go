package engine

import (
	"errors"

	"soulsdex/internal/dex"
	"soulsdex/internal/token"
)

// ErrBadRequest marks operations the engine could not interpret: unknown op
// names, missing fields or unparsable values.
var ErrBadRequest = errors.New("engine: bad request")

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrBadRequest, "BadRequest"},
	{dex.ErrReentrant, "Reentrant"},
	{dex.ErrInvariantViolation, "InvariantViolation"},
	{dex.ErrInvalidToken, "InvalidToken"},
	{dex.ErrInsufficientLiquidity, "InsufficientLiquidity"},
	{dex.ErrRatioMismatch, "RatioMismatch"},
	{dex.ErrPoolEmpty, "PoolEmpty"},
	{dex.ErrInsufficientOutput, "InsufficientOutput"},
	{token.ErrUnauthorized, "Unauthorized"},
	{token.ErrInsufficientAllowance, "InsufficientAllowance"},
	{token.ErrInsufficientBalance, "InsufficientBalance"},
	{token.ErrInvalidAmount, "InvalidAmount"},
	{token.ErrSupplyMismatch, "InvariantViolation"},
}

// ErrorKind names the failure class of err, or "" for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
