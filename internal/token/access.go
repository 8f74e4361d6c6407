package token

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func (l *Ledger) Owner() common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owner
}

// TransferOwnership hands the mint capability to newOwner.
func (l *Ledger) TransferOwnership(_ context.Context, caller, newOwner common.Address) error {
	l.mu.Lock()
	if err := l.requireOwnerLocked(caller); err != nil {
		l.mu.Unlock()
		return err
	}
	if newOwner == (common.Address{}) {
		l.mu.Unlock()
		return fmt.Errorf("new owner is zero address: %w", ErrInvalidAmount)
	}
	l.owner = newOwner
	l.mu.Unlock()

	l.logger.Info("ownership transferred",
		zap.String("from", caller.Hex()),
		zap.String("to", newOwner.Hex()),
	)
	return nil
}

// requireOwnerLocked must be called with l.mu held.
func (l *Ledger) requireOwnerLocked(caller common.Address) error {
	if caller != l.owner {
		return fmt.Errorf("%s is not owner of %s: %w", caller.Hex(), l.symbol, ErrUnauthorized)
	}
	return nil
}
