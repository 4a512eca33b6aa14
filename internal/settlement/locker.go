package settlement

import (
	"context"
	"sync"

	id "agegate/pkg/domain"
)

// Locker serializes settlement transitions per buyer. A duplicate start and
// an in-flight webhook for the same buyer must never interleave.
type Locker interface {
	// Acquire blocks until the buyer's lock is held or ctx is done. The
	// returned release must be called exactly once.
	Acquire(ctx context.Context, buyerID id.BuyerID) (release func(), err error)
}

// MemoryLocker keys a one-slot channel per buyer. Single-process only; use
// RedisLocker when more than one instance handles webhooks.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[id.BuyerID]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[id.BuyerID]chan struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, buyerID id.BuyerID) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[buyerID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[buyerID] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
