package account

import (
	"context"
	"strings"
	"sync"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

// MemoryStore keeps buyer accounts in process memory. It favors clarity over
// performance and is the default when no postgres URL is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	buyers map[id.BuyerID]domain.BuyerAccount
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buyers: make(map[id.BuyerID]domain.BuyerAccount)}
}

func (s *MemoryStore) Save(_ context.Context, buyer *domain.BuyerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyers[buyer.ID] = *buyer
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if buyer, ok := s.buyers[buyerID]; ok {
		return &buyer, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*domain.BuyerAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, buyer := range s.buyers {
		if !buyer.Anonymized && strings.EqualFold(buyer.Email, email) {
			b := buyer
			return &b, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) FindByHoldRef(_ context.Context, holdRef id.HoldRef) (*domain.BuyerAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, buyer := range s.buyers {
		if buyer.HoldRef == holdRef && holdRef != "" {
			b := buyer
			return &b, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) FindBySessionID(_ context.Context, sessionID id.KYCSessionID) (*domain.BuyerAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, buyer := range s.buyers {
		if buyer.SessionID == sessionID && sessionID != "" {
			b := buyer
			return &b, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
