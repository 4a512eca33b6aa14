package ledger

import (
	"context"
	"sort"
	"sync"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

const defaultPageSize = 50

// MemoryStore keeps compliance events in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []domain.ComplianceEvent
	byAttempt map[id.AttemptID]int // attempt -> index into events
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byAttempt: make(map[id.AttemptID]int)}
}

func (s *MemoryStore) Append(_ context.Context, event *domain.ComplianceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byAttempt[event.AttemptID]; exists {
		return sentinel.ErrConflict
	}
	s.byAttempt[event.AttemptID] = len(s.events)
	s.events = append(s.events, *event)
	return nil
}

func (s *MemoryStore) FindByAttempt(_ context.Context, attemptID id.AttemptID) (*domain.ComplianceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byAttempt[attemptID]; ok {
		event := s.events[idx]
		return &event, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) Query(_ context.Context, scope Scope, filter domain.LedgerFilter, page domain.Page) ([]domain.ComplianceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.ComplianceEvent
	for _, event := range s.events {
		if !inScope(event, scope) || !matches(event, filter) {
			continue
		}
		matched = append(matched, event)
	}
	// Chronological by id; UUIDv7 ids sort lexically in time order.
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if page.Offset >= len(matched) {
		return nil, nil
	}
	end := page.Offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[page.Offset:end], nil
}

func inScope(event domain.ComplianceEvent, scope Scope) bool {
	if scope.BuyerReferenceID != "" {
		return event.BuyerReferenceID == scope.BuyerReferenceID
	}
	if scope.DealerReferenceID != "" {
		return event.DealerReferenceID == scope.DealerReferenceID
	}
	return false
}

func matches(event domain.ComplianceEvent, filter domain.LedgerFilter) bool {
	if filter.From != nil && event.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && event.CreatedAt.After(*filter.To) {
		return false
	}
	if filter.AgeVerified != nil && event.AgeVerified != *filter.AgeVerified {
		return false
	}
	if filter.AddressVerified != nil && event.AddressVerified != *filter.AddressVerified {
		return false
	}
	return true
}

func (s *MemoryStore) Anonymize(_ context.Context, buyerID id.BuyerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := 0
	for i := range s.events {
		if s.events[i].BuyerID != nil && *s.events[i].BuyerID == buyerID {
			s.events[i].BuyerID = nil
			touched++
		}
	}
	return touched, nil
}

func (s *MemoryStore) AttachAnchor(_ context.Context, eventID string, anchorRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events[i].AnchorRef = anchorRef
			return nil
		}
	}
	return sentinel.ErrNotFound
}
