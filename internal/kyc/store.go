package kyc

import (
	"context"
	"sync"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

// SessionStore tracks the session reference per buyer. Only the id and opaque
// token are held; the provider owns session state.
type SessionStore interface {
	Save(ctx context.Context, session domain.VerificationSession) error
	FindByBuyer(ctx context.Context, buyerID id.BuyerID) (domain.VerificationSession, error)
	// DeleteByBuyer removes stored session secrets. Called before opening a
	// replacement session so old credential data never coexists with new.
	DeleteByBuyer(ctx context.Context, buyerID id.BuyerID) error
}

// MemorySessionStore holds sessions in process memory. Sessions are short
// lived and never the source of truth, so memory is the only implementation.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.BuyerID]domain.VerificationSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[id.BuyerID]domain.VerificationSession)}
}

func (s *MemorySessionStore) Save(_ context.Context, session domain.VerificationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.BuyerID] = session
	return nil
}

func (s *MemorySessionStore) FindByBuyer(_ context.Context, buyerID id.BuyerID) (domain.VerificationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[buyerID]; ok {
		return session, nil
	}
	return domain.VerificationSession{}, sentinel.ErrNotFound
}

func (s *MemorySessionStore) DeleteByBuyer(_ context.Context, buyerID id.BuyerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, buyerID)
	return nil
}
