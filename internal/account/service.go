package account

import (
	"context"
	"fmt"
	"log/slog"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/requestcontext"
)

// LedgerAnonymizer detaches compliance ledger rows from a buyer without
// touching their reference ids.
type LedgerAnonymizer interface {
	Anonymize(ctx context.Context, buyerID id.BuyerID) (int, error)
}

// Service manages buyer account lifecycle: creation, lookup, and erasure.
type Service struct {
	store  Store
	ledger LedgerAnonymizer
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithLedger(ledger LedgerAnonymizer) Option {
	return func(s *Service) { s.ledger = ledger }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("account store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// FindOrCreate resolves a buyer by email, minting a new account with a fresh
// permanent reference id on first contact.
func (s *Service) FindOrCreate(ctx context.Context, email string) (*domain.BuyerAccount, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}

	existing, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "buyer lookup failed")
	}

	now := requestcontext.Now(ctx)
	buyer := &domain.BuyerAccount{
		ID:                 id.NewBuyerID(),
		ReferenceID:        id.NewReferenceID("buyer"),
		Email:              email,
		PaymentStatus:      id.PaymentPending,
		VerificationStatus: id.VerificationUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Save(ctx, buyer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "buyer create failed")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "buyer account created",
			"buyer_id", buyer.ID,
			"reference_id", buyer.ReferenceID,
		)
	}
	return buyer, nil
}

// Get returns a buyer account by id.
func (s *Service) Get(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error) {
	if buyerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "buyer_id is required")
	}
	buyer, err := s.store.FindByID(ctx, buyerID)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "buyer not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "buyer lookup failed")
	}
	return buyer, nil
}

// Erase soft-anonymizes a buyer: account PII is nulled, the reference id is
// kept, and all compliance ledger rows keep their reference while losing the
// owning foreign key. Deleting an account never removes audit continuity.
func (s *Service) Erase(ctx context.Context, buyerID id.BuyerID) error {
	buyer, err := s.Get(ctx, buyerID)
	if err != nil {
		return err
	}
	if buyer.Anonymized {
		return dErrors.New(dErrors.CodeDuplicate, "buyer already anonymized")
	}

	buyer.Email = ""
	buyer.ShippingAddress = domain.Address{}
	buyer.Anonymized = true
	buyer.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, buyer); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "buyer anonymize failed")
	}

	detached := 0
	if s.ledger != nil {
		detached, err = s.ledger.Anonymize(ctx, buyerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger anonymize failed")
		}
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "buyer account erased",
			"buyer_id", buyerID,
			"reference_id", buyer.ReferenceID,
			"ledger_rows_detached", detached,
		)
	}
	return nil
}
