package payment

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

// Service implements safe-capture over the external processor. Capture and
// release are each applied at most once per hold reference; repeats return the
// prior result flagged as such.
type Service struct {
	provider Provider
	store    Store
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(provider Provider, store Store, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("payment provider is required")
	}
	if store == nil {
		return nil, fmt.Errorf("payment store is required")
	}
	svc := &Service{provider: provider, store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Authorize creates a payment event and requests a manual-capture hold.
// A buyer with an in-flight event gets CodeConflict; a provider failure leaves
// the event in failed so a later start can retry.
func (s *Service) Authorize(ctx context.Context, buyer *domain.BuyerAccount, amountCents int64) (*domain.PaymentEvent, error) {
	if amountCents <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}

	if open, err := s.store.FindOpenByBuyer(ctx, buyer.ID); err == nil {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"buyer already has an open payment event %s", open.ID)
	} else if !dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "open payment lookup failed")
	}

	now := requestcontext.Now(ctx)
	event := &domain.PaymentEvent{
		ID:                  id.NewPaymentEventID(),
		BuyerID:             buyer.ID,
		AttemptID:           buyer.AttemptID,
		Type:                id.PaymentEventVerification,
		AmountCents:         amountCents,
		Status:              id.PaymentPending,
		CustomerReferenceID: buyer.ReferenceID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Save(ctx, event); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payment event create failed")
	}

	hold, err := s.provider.CreateHold(ctx, amountCents, buyer.ReferenceID)
	if err != nil {
		event.Status = id.PaymentFailed
		event.UpdatedAt = now
		if saveErr := s.store.Save(ctx, event); saveErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to mark payment event failed",
				"payment_event_id", event.ID, "error", saveErr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "payment hold failed")
	}

	event.Status = id.PaymentAuthorized
	event.ProviderHoldRef = hold.HoldRef
	event.AuthorizedAt = &now
	event.UpdatedAt = now
	if err := s.store.Save(ctx, event); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payment event update failed")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "payment hold authorized",
			"payment_event_id", event.ID,
			"hold_ref", hold.HoldRef,
			"amount_cents", amountCents,
		)
	}
	return event, nil
}

// CaptureOutcome reports a capture along with whether it was a repeat of an
// already-applied capture.
type CaptureOutcome struct {
	Event  *domain.PaymentEvent
	Repeat bool
}

// Capture charges a previously authorized hold. Idempotent: a hold that is
// already captured returns the prior result unchanged, flagged as a repeat.
func (s *Service) Capture(ctx context.Context, holdRef id.HoldRef) (CaptureOutcome, error) {
	event, err := s.findByHold(ctx, holdRef)
	if err != nil {
		return CaptureOutcome{}, err
	}

	// Re-check persisted state before touching the provider.
	switch event.Status {
	case id.PaymentCompleted:
		if s.metrics != nil {
			s.metrics.IncCaptureRepeats()
		}
		return CaptureOutcome{Event: event, Repeat: true}, nil
	case id.PaymentAuthorized, id.PaymentChecking, id.PaymentPassed:
		// capturable
	default:
		return CaptureOutcome{}, dErrors.Newf(dErrors.CodeInvalidState,
			"hold %s is not capturable from %s", holdRef, event.Status)
	}

	if _, err := s.provider.Capture(ctx, holdRef); err != nil {
		return CaptureOutcome{}, dErrors.Wrap(err, dErrors.CodeExternal, "capture failed")
	}

	now := requestcontext.Now(ctx)
	event.Status = id.PaymentCompleted
	event.CapturedAt = &now
	event.UpdatedAt = now
	if err := s.store.Save(ctx, event); err != nil {
		return CaptureOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "payment event update failed")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "payment captured",
			"payment_event_id", event.ID, "hold_ref", holdRef)
	}
	return CaptureOutcome{Event: event}, nil
}

// ReleaseOutcome reports a release along with the repeat flag.
type ReleaseOutcome struct {
	Event  *domain.PaymentEvent
	Repeat bool
}

// Release frees an authorized hold with no charge. Idempotent: an already
// released hold returns the prior result flagged as a repeat.
func (s *Service) Release(ctx context.Context, holdRef id.HoldRef) (ReleaseOutcome, error) {
	event, err := s.findByHold(ctx, holdRef)
	if err != nil {
		return ReleaseOutcome{}, err
	}

	switch event.Status {
	case id.PaymentRejectedRefunded:
		return ReleaseOutcome{Event: event, Repeat: true}, nil
	case id.PaymentAuthorized, id.PaymentChecking, id.PaymentPassed:
		// releasable
	default:
		return ReleaseOutcome{}, dErrors.Newf(dErrors.CodeInvalidState,
			"hold %s is not releasable from %s", holdRef, event.Status)
	}

	if _, err := s.provider.Release(ctx, holdRef); err != nil {
		return ReleaseOutcome{}, dErrors.Wrap(err, dErrors.CodeExternal, "release failed")
	}

	now := requestcontext.Now(ctx)
	event.Status = id.PaymentRejectedRefunded
	event.RefundedAt = &now
	event.UpdatedAt = now
	if err := s.store.Save(ctx, event); err != nil {
		return ReleaseOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "payment event update failed")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "payment hold released",
			"payment_event_id", event.ID, "hold_ref", holdRef)
	}
	return ReleaseOutcome{Event: event}, nil
}

// MarkCaptureError moves an event to the terminal error state after a capture
// failed post-approval. Requires manual reconciliation; never reverted here.
func (s *Service) MarkCaptureError(ctx context.Context, holdRef id.HoldRef) error {
	event, err := s.findByHold(ctx, holdRef)
	if err != nil {
		return err
	}
	event.Status = id.PaymentError
	event.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "payment event update failed")
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "payment capture moved to manual reconciliation",
			"payment_event_id", event.ID, "hold_ref", holdRef)
	}
	return nil
}

func (s *Service) findByHold(ctx context.Context, holdRef id.HoldRef) (*domain.PaymentEvent, error) {
	if holdRef == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "hold_ref is required")
	}
	event, err := s.store.FindByHoldRef(ctx, holdRef)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no payment event for hold %s", holdRef)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payment lookup failed")
	}
	return event, nil
}
