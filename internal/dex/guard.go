package dex

import (
	"context"
	"fmt"
	"sync/atomic"
)

type guardKey struct{}

type guardFrame struct {
	guard  *Guard
	parent *guardFrame
}

// Guard rejects entry while a mutating pool operation is in flight. It never
// waits: a nested call from the operation's own call chain and a call that
// arrives while the guard is held both fail with ErrReentrant. Callers that
// share a pool across goroutines serialise their calls themselves.
type Guard struct {
	locked atomic.Bool
}

// Enter acquires the guard. The returned context marks the call chain and
// must be passed to everything the operation calls; release must run on
// every exit path.
func (g *Guard) Enter(ctx context.Context) (context.Context, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.held(ctx) {
		return ctx, func() {}, ErrReentrant
	}
	if !g.locked.CompareAndSwap(false, true) {
		return ctx, func() {}, fmt.Errorf("pool operation in flight: %w", ErrReentrant)
	}

	var released atomic.Bool
	release := func() {
		if released.CompareAndSwap(false, true) {
			g.locked.Store(false)
		}
	}
	parent, _ := ctx.Value(guardKey{}).(*guardFrame)
	return context.WithValue(ctx, guardKey{}, &guardFrame{guard: g, parent: parent}), release, nil
}

// held reports whether ctx belongs to a call chain inside g.
func (g *Guard) held(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	for f, _ := ctx.Value(guardKey{}).(*guardFrame); f != nil; f = f.parent {
		if f.guard == g {
			return true
		}
	}
	return false
}
