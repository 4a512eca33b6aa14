package kyc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/requestcontext"
)

// sessionTTL bounds how long a provider session token stays usable on our
// side. Expiry is checked by timestamp comparison at use, never by a reaper.
const sessionTTL = 24 * time.Hour

// Service opens one verification session per attempt.
type Service struct {
	provider Provider
	sessions SessionStore
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(provider Provider, sessions SessionStore, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("kyc provider is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("kyc session store is required")
	}
	svc := &Service{provider: provider, sessions: sessions}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateSession opens a verification session for the buyer's current attempt.
// Expired prior session secrets are deleted first so old credential data never
// coexists with new.
func (s *Service) CreateSession(ctx context.Context, buyer *domain.BuyerAccount) (domain.VerificationSession, error) {
	now := requestcontext.Now(ctx)

	prior, err := s.sessions.FindByBuyer(ctx, buyer.ID)
	switch {
	case err == nil:
		if prior.Expired(now) {
			if err := s.sessions.DeleteByBuyer(ctx, buyer.ID); err != nil {
				return domain.VerificationSession{}, dErrors.Wrap(err, dErrors.CodeInternal, "stale session cleanup failed")
			}
		}
	case dErrors.Is(err, sentinel.ErrNotFound):
	default:
		return domain.VerificationSession{}, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}

	result, err := s.provider.CreateSession(ctx, buyer.ReferenceID)
	if err != nil {
		return domain.VerificationSession{}, dErrors.Wrap(err, dErrors.CodeExternal, "kyc session create failed")
	}

	session := domain.VerificationSession{
		ID:        result.SessionID,
		Token:     result.Token,
		BuyerID:   buyer.ID,
		AttemptID: buyer.AttemptID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return domain.VerificationSession{}, dErrors.Wrap(err, dErrors.CodeInternal, "session save failed")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "kyc session opened",
			"buyer_id", buyer.ID,
			"session_id", session.ID,
		)
	}
	return session, nil
}

// Attributes fetches decrypted identity attributes for an approved session.
// The result must not leave the proof engine boundary.
func (s *Service) Attributes(ctx context.Context, sessionID id.KYCSessionID) (domain.IdentityAttributes, error) {
	if sessionID == "" {
		return domain.IdentityAttributes{}, dErrors.New(dErrors.CodeValidation, "session_id is required")
	}
	attrs, err := s.provider.Attributes(ctx, sessionID)
	if err != nil {
		return domain.IdentityAttributes{}, dErrors.Wrap(err, dErrors.CodeExternal, "attribute release failed")
	}
	return attrs, nil
}
