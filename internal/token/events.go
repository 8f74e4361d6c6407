package token

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type EventKind uint8

const (
	EventTransfer EventKind = iota + 1
	EventApproval
)

func (k EventKind) String() string {
	switch k {
	case EventTransfer:
		return "Transfer"
	case EventApproval:
		return "Approval"
	default:
		return "Unknown"
	}
}

// Event is emitted after a successful ledger mutation.
// For approvals From is the owner and To the spender.
type Event struct {
	Kind   EventKind
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// Listener receives ledger events with the context of the call that produced them.
type Listener func(ctx context.Context, ev Event)

// Subscribe registers a listener for every subsequent event.
func (l *Ledger) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

func (l *Ledger) emit(ctx context.Context, ev Event) {
	l.mu.RLock()
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, ev)
	}
}
