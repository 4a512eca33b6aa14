package webhook

import (
	"sync"

	id "agegate/pkg/domain"
)

// Notifier wakes bounded-wait callers when a buyer's attempt changes state.
// Waking is best-effort; waiters also poll, so a missed wake only costs one
// poll interval.
type Notifier struct {
	mu      sync.Mutex
	waiters map[id.BuyerID][]chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{waiters: make(map[id.BuyerID][]chan struct{})}
}

// Subscribe registers interest in a buyer's transitions. The returned cancel
// must be called to drop the registration.
func (n *Notifier) Subscribe(buyerID id.BuyerID) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.waiters[buyerID] = append(n.waiters[buyerID], ch)
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.waiters[buyerID]
		for i, sub := range subs {
			if sub == ch {
				n.waiters[buyerID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(n.waiters[buyerID]) == 0 {
			delete(n.waiters, buyerID)
		}
	}
	return ch, cancel
}

// Notify wakes all current waiters for the buyer without blocking.
func (n *Notifier) Notify(buyerID id.BuyerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.waiters[buyerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
