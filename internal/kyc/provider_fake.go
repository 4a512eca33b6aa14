package kyc

import (
	"context"
	"sync"
	"time"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// FakeProvider is an injected KYC stand-in. Attribute fixtures are scoped to
// the instance so parallel tests do not share state.
type FakeProvider struct {
	mu       sync.Mutex
	sessions map[id.KYCSessionID]id.ReferenceID
	attrs    map[id.KYCSessionID]domain.IdentityAttributes

	// DefaultAttributes is returned for sessions with no explicit fixture.
	DefaultAttributes domain.IdentityAttributes
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		sessions: make(map[id.KYCSessionID]id.ReferenceID),
		attrs:    make(map[id.KYCSessionID]domain.IdentityAttributes),
		DefaultAttributes: domain.IdentityAttributes{
			DateOfBirth: time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC),
			Address: domain.Address{
				Street:     "123 Main St",
				City:       "Los Angeles",
				State:      "CA",
				PostalCode: "90210",
			},
		},
	}
}

func (p *FakeProvider) CreateSession(_ context.Context, referenceID id.ReferenceID) (SessionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sessionID := id.KYCSessionID("kyc_" + uuid.NewString())
	p.sessions[sessionID] = referenceID
	return SessionResult{SessionID: sessionID, Token: "tok_" + uuid.NewString()}, nil
}

func (p *FakeProvider) Attributes(_ context.Context, sessionID id.KYCSessionID) (domain.IdentityAttributes, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[sessionID]; !ok {
		return domain.IdentityAttributes{}, sentinel.ErrNotFound
	}
	if attrs, ok := p.attrs[sessionID]; ok {
		return attrs, nil
	}
	return p.DefaultAttributes, nil
}

// SetAttributes installs an attribute fixture for a session. Test hook.
func (p *FakeProvider) SetAttributes(sessionID id.KYCSessionID, attrs domain.IdentityAttributes) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attrs[sessionID] = attrs
}
