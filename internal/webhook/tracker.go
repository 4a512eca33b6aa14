package webhook

import (
	"context"
	"sync"
	"time"
)

// RetryTracker counts deliveries per event reference so backoff guidance
// grows across redeliveries of the same event.
type RetryTracker interface {
	// Next returns the 1-based attempt number for the key.
	Next(ctx context.Context, key string) (int, error)
}

// MemoryTracker is the single-process tracker. Entries expire lazily on read.
type MemoryTracker struct {
	mu      sync.Mutex
	counts  map[string]trackerEntry
	ttl     time.Duration
	nowFunc func() time.Time
}

type trackerEntry struct {
	count int
	seen  time.Time
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		counts:  make(map[string]trackerEntry),
		ttl:     time.Hour,
		nowFunc: time.Now,
	}
}

func (t *MemoryTracker) Next(_ context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFunc()
	entry := t.counts[key]
	if entry.count > 0 && now.Sub(entry.seen) > t.ttl {
		entry = trackerEntry{}
	}
	entry.count++
	entry.seen = now
	t.counts[key] = entry
	return entry.count, nil
}
