package service

import (
	"context"
	"sync"
)

type afterCommitKey struct{}

// afterCommit копит побочные эффекты транзакции до её фиксации
type afterCommit struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

func withAfterCommit(ctx context.Context) (context.Context, *afterCommit) {
	ac := &afterCommit{}
	return context.WithValue(ctx, afterCommitKey{}, ac), ac
}

// onCommit defers fn until the enclosing transaction commits.
// Outside a transaction the change is already durable and fn runs at once.
func onCommit(ctx context.Context, fn func(context.Context)) {
	if ac, ok := ctx.Value(afterCommitKey{}).(*afterCommit); ok {
		ac.mu.Lock()
		ac.fns = append(ac.fns, fn)
		ac.mu.Unlock()
		return
	}
	fn(ctx)
}

// run executes the collected effects with the caller's context, not the transaction's.
func (ac *afterCommit) run(ctx context.Context) {
	ac.mu.Lock()
	fns := ac.fns
	ac.fns = nil
	ac.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}
