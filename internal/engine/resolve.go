package engine

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"soulsdex/internal/token"
)

// addAlias registers name (case-insensitive) for addr.
func (e *Engine) addAlias(name string, addr common.Address) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	e.aliases[name] = addr
}

// address resolves an alias or hex address. field names the operation
// field for error messages.
func (e *Engine) address(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, fmt.Errorf("%s is required: %w", field, ErrBadRequest)
	}
	if addr, ok := e.aliases[strings.ToLower(value)]; ok {
		return addr, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s %q is not an address: %w", field, value, ErrBadRequest)
	}
	return common.HexToAddress(value), nil
}

// signer resolves an account that authorises an operation. The pool account
// is a contract and never signs.
func (e *Engine) signer(field, value string) (common.Address, error) {
	addr, err := e.address(field, value)
	if err != nil {
		return common.Address{}, err
	}
	if addr == e.pool.Address() {
		return common.Address{}, fmt.Errorf("%s cannot be the pool account: %w", field, ErrBadRequest)
	}
	return addr, nil
}

// ledger resolves value to one of the pool's two tokens.
func (e *Engine) ledger(value string) (*token.Ledger, error) {
	addr, err := e.address("token", value)
	if err != nil {
		return nil, err
	}
	switch addr {
	case e.tokenA.Address():
		return e.tokenA, nil
	case e.tokenB.Address():
		return e.tokenB, nil
	default:
		return nil, fmt.Errorf("unknown token %s: %w", addr.Hex(), ErrBadRequest)
	}
}

func amount(field, value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required: %w", field, ErrBadRequest)
	}
	v, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %v: %w", field, value, err, ErrBadRequest)
	}
	return v, nil
}
