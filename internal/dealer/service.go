package dealer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agegate/internal/dealer/secrets"
	"agegate/internal/domain"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/requestcontext"
)

const apiKeyPrefix = "ag"

// Service manages dealer accounts and their prepaid verification credits.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("dealer store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ProvisionResult carries the one-time plaintext API key. It is returned
// exactly once at provisioning; only the bcrypt hash is stored.
type ProvisionResult struct {
	Dealer *domain.DealerAccount
	APIKey string
}

// Provision creates a dealer account with an initial credit balance and mints
// its API key.
func (s *Service) Provision(ctx context.Context, name string, credits int) (*ProvisionResult, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "dealer name is required")
	}
	if credits < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "credits cannot be negative")
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "api key generation failed")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "api key hashing failed")
	}

	now := requestcontext.Now(ctx)
	dealer := &domain.DealerAccount{
		ID:               id.NewDealerID(),
		ReferenceID:      id.NewReferenceID("dealer"),
		Name:             name,
		CreditsPurchased: credits,
		APIKeyHash:       hash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Save(ctx, dealer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "dealer create failed")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "dealer provisioned",
			"dealer_id", dealer.ID,
			"reference_id", dealer.ReferenceID,
			"credits", credits,
		)
	}
	return &ProvisionResult{
		Dealer: dealer,
		APIKey: fmt.Sprintf("%s_%s_%s", apiKeyPrefix, dealer.ID, secret),
	}, nil
}

// Authenticate resolves a dealer from its API key. The key embeds the dealer
// id so lookup is direct; the secret is then checked against the stored hash.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*domain.DealerAccount, error) {
	parts := strings.SplitN(apiKey, "_", 3)
	if len(parts) != 3 || parts[0] != apiKeyPrefix {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "malformed api key")
	}
	dealerID, err := id.ParseDealerID(parts[1])
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "malformed api key")
	}

	dealer, err := s.store.FindByID(ctx, dealerID)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown dealer")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "dealer lookup failed")
	}
	if err := secrets.Verify(parts[2], dealer.APIKeyHash); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
	}
	return dealer, nil
}

// Get returns a dealer account by id.
func (s *Service) Get(ctx context.Context, dealerID id.DealerID) (*domain.DealerAccount, error) {
	if dealerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "dealer_id is required")
	}
	dealer, err := s.store.FindByID(ctx, dealerID)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "dealer not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "dealer lookup failed")
	}
	return dealer, nil
}

// Reserve debits cost credits ahead of a verification. The check-and-debit is
// atomic in the store; an insufficient balance surfaces as CodeQuotaExceeded
// without mutating the counters.
func (s *Service) Reserve(ctx context.Context, dealerID id.DealerID, cost int) (*domain.DealerAccount, error) {
	if cost <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "cost must be positive")
	}
	dealer, err := s.store.Reserve(ctx, dealerID, cost)
	if dErrors.Is(err, sentinel.ErrExhausted) {
		if s.metrics != nil {
			s.metrics.IncQuotaExhausted()
		}
		return nil, dErrors.New(dErrors.CodeQuotaExceeded, "dealer credit balance exhausted")
	}
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "dealer not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "quota reserve failed")
	}
	if s.metrics != nil {
		s.metrics.AddQuotaReserved(cost)
	}
	return dealer, nil
}

// Refund returns previously reserved credits, used when a failed verification
// is not chargeable under the active policy.
func (s *Service) Refund(ctx context.Context, dealerID id.DealerID, cost int) error {
	if cost <= 0 {
		return dErrors.New(dErrors.CodeValidation, "cost must be positive")
	}
	err := s.store.Refund(ctx, dealerID, cost)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "dealer not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "quota refund failed")
	}
	return nil
}

// AddCredits tops up a dealer's purchased balance.
func (s *Service) AddCredits(ctx context.Context, dealerID id.DealerID, credits int) (*domain.DealerAccount, error) {
	if credits <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "credits must be positive")
	}
	dealer, err := s.store.AddCredits(ctx, dealerID, credits)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "dealer not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credit top-up failed")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "dealer credits added",
			"dealer_id", dealerID,
			"credits", credits,
			"purchased_total", dealer.CreditsPurchased,
		)
	}
	return dealer, nil
}
