package dealer

import (
	"context"
	"sync"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

// MemoryStore keeps dealer accounts in process memory. The single mutex makes
// check-and-increment atomic without storage-level support.
type MemoryStore struct {
	mu      sync.Mutex
	dealers map[id.DealerID]domain.DealerAccount
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dealers: make(map[id.DealerID]domain.DealerAccount)}
}

func (s *MemoryStore) Save(_ context.Context, dealer *domain.DealerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dealers[dealer.ID] = *dealer
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, dealerID id.DealerID) (*domain.DealerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dealer, ok := s.dealers[dealerID]; ok {
		return &dealer, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) Reserve(_ context.Context, dealerID id.DealerID, cost int) (*domain.DealerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dealer, ok := s.dealers[dealerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if dealer.CreditsUsed+cost > dealer.CreditsPurchased {
		return nil, sentinel.ErrExhausted
	}
	dealer.CreditsUsed += cost
	s.dealers[dealerID] = dealer
	return &dealer, nil
}

func (s *MemoryStore) Refund(_ context.Context, dealerID id.DealerID, cost int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dealer, ok := s.dealers[dealerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	dealer.CreditsUsed -= cost
	if dealer.CreditsUsed < 0 {
		dealer.CreditsUsed = 0
	}
	s.dealers[dealerID] = dealer
	return nil
}

func (s *MemoryStore) AddCredits(_ context.Context, dealerID id.DealerID, credits int) (*domain.DealerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dealer, ok := s.dealers[dealerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	dealer.CreditsPurchased += credits
	s.dealers[dealerID] = dealer
	return &dealer, nil
}
