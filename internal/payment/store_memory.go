package payment

import (
	"context"
	"sync"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

// MemoryStore keeps payment events in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[id.PaymentEventID]domain.PaymentEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[id.PaymentEventID]domain.PaymentEvent)}
}

func (s *MemoryStore) Save(_ context.Context, event *domain.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = *event
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, eventID id.PaymentEventID) (*domain.PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if event, ok := s.events[eventID]; ok {
		return &event, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) FindByHoldRef(_ context.Context, holdRef id.HoldRef) (*domain.PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.events {
		if event.ProviderHoldRef == holdRef && holdRef != "" {
			e := event
			return &e, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) FindOpenByBuyer(_ context.Context, buyerID id.BuyerID) (*domain.PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.events {
		if event.BuyerID == buyerID && event.Status.Open() {
			e := event
			return &e, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
