package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"agegate/internal/account"
	"agegate/internal/domain"
	"agegate/internal/ledger"
	"agegate/internal/payment"
	"agegate/internal/platform/config"
	"agegate/internal/proof"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/requestcontext"
)

// Payments is the hold-manager surface the orchestrator drives.
type Payments interface {
	Authorize(ctx context.Context, buyer *domain.BuyerAccount, amountCents int64) (*domain.PaymentEvent, error)
	Capture(ctx context.Context, holdRef id.HoldRef) (payment.CaptureOutcome, error)
	Release(ctx context.Context, holdRef id.HoldRef) (payment.ReleaseOutcome, error)
	MarkCaptureError(ctx context.Context, holdRef id.HoldRef) error
}

// Sessions is the identity-verification surface the orchestrator drives.
type Sessions interface {
	CreateSession(ctx context.Context, buyer *domain.BuyerAccount) (domain.VerificationSession, error)
	Attributes(ctx context.Context, sessionID id.KYCSessionID) (domain.IdentityAttributes, error)
}

// Ledger records attempt outcomes exactly once.
type Ledger interface {
	Append(ctx context.Context, params ledger.AppendParams) (*domain.ComplianceEvent, error)
}

// Quota meters dealer verify calls.
type Quota interface {
	Reserve(ctx context.Context, dealerID id.DealerID, cost int) (*domain.DealerAccount, error)
	Refund(ctx context.Context, dealerID id.DealerID, cost int) error
}

// Service is the settlement state machine. It owns every mutation of a
// buyer's payment and verification statuses.
type Service struct {
	accounts account.Store
	payments Payments
	sessions Sessions
	engine   *proof.Engine
	ledger   Ledger
	quota    Quota
	locker   Locker

	amountCents     int64
	verificationTTL time.Duration
	policy          config.Policy

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithQuota(quota Quota) Option {
	return func(s *Service) { s.quota = quota }
}

func WithLocker(locker Locker) Option {
	return func(s *Service) { s.locker = locker }
}

// Config carries the settlement tunables out of the process config.
type Config struct {
	AmountCents     int64
	VerificationTTL time.Duration
	Policy          config.Policy
}

func New(accounts account.Store, payments Payments, sessions Sessions, engine *proof.Engine, ledgerSvc Ledger, cfg Config, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment manager is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session coordinator is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("proof engine is required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("compliance ledger is required")
	}
	if cfg.AmountCents <= 0 {
		return nil, fmt.Errorf("verification amount must be positive")
	}
	svc := &Service{
		accounts:        accounts,
		payments:        payments,
		sessions:        sessions,
		engine:          engine,
		ledger:          ledgerSvc,
		locker:          NewMemoryLocker(),
		amountCents:     cfg.AmountCents,
		verificationTTL: cfg.VerificationTTL,
		policy:          cfg.Policy,
		tracer:          otel.Tracer("agegate/settlement"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// StartResult is the synchronous answer to a start call. The decision itself
// always arrives later through the webhook path.
type StartResult struct {
	HoldRef            id.HoldRef            `json:"hold_id"`
	SessionID          id.KYCSessionID       `json:"session_id"`
	SessionToken       string                `json:"session_token"`
	PaymentStatus      id.PaymentStatus      `json:"payment_status"`
	VerificationStatus id.VerificationStatus `json:"verification_status"`
}

// Start opens a new verification attempt: a manual-capture hold and a KYC
// session, requested in parallel. A hold left behind by a failed session open
// is released before returning, so a retry starts clean.
func (s *Service) Start(ctx context.Context, buyerID id.BuyerID, shipping domain.Address) (StartResult, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Start",
		trace.WithAttributes(attribute.String("buyer_id", buyerID.String())))
	defer span.End()

	release, err := s.locker.Acquire(ctx, buyerID)
	if err != nil {
		return StartResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "settlement lock unavailable")
	}
	defer release()

	buyer, err := s.loadBuyer(ctx, buyerID)
	if err != nil {
		return StartResult{}, err
	}
	if _, err := s.next(buyer.PaymentStatus, EventStart); err != nil {
		return StartResult{}, err
	}

	buyer.AttemptID = id.NewAttemptID()
	buyer.ShippingAddress = shipping

	var (
		event   *domain.PaymentEvent
		session domain.VerificationSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		event, err = s.payments.Authorize(gctx, buyer, s.amountCents)
		return err
	})
	g.Go(func() error {
		var err error
		session, err = s.sessions.CreateSession(gctx, buyer)
		return err
	})
	if err := g.Wait(); err != nil {
		if event != nil && event.Status == id.PaymentAuthorized {
			if _, relErr := s.payments.Release(ctx, event.ProviderHoldRef); relErr != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "compensating release failed",
					"buyer_id", buyerID, "hold_ref", event.ProviderHoldRef, "error", relErr)
			}
		}
		return StartResult{}, err
	}

	s.applyTransition(buyer, EventStart, id.PaymentAuthorized)
	buyer.VerificationStatus = id.VerificationChecking
	buyer.HoldRef = event.ProviderHoldRef
	buyer.SessionID = session.ID
	buyer.UpdatedAt = requestcontext.Now(ctx)
	if err := s.accounts.Save(ctx, buyer); err != nil {
		return StartResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "buyer save failed")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "verification attempt started",
			"buyer_id", buyer.ID,
			"attempt_id", buyer.AttemptID,
			"hold_ref", buyer.HoldRef,
			"session_id", buyer.SessionID,
		)
	}
	return StartResult{
		HoldRef:            buyer.HoldRef,
		SessionID:          session.ID,
		SessionToken:       session.Token,
		PaymentStatus:      buyer.PaymentStatus,
		VerificationStatus: buyer.VerificationStatus,
	}, nil
}

// SessionOpened moves an authorized attempt into checking. Replays are
// filtered by the webhook layer; out-of-table states fail here.
func (s *Service) SessionOpened(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error) {
	release, err := s.locker.Acquire(ctx, buyerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "settlement lock unavailable")
	}
	defer release()

	buyer, err := s.loadBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	next, err := s.next(buyer.PaymentStatus, EventSessionOpened)
	if err != nil {
		return nil, err
	}
	s.applyTransition(buyer, EventSessionOpened, next)
	buyer.UpdatedAt = requestcontext.Now(ctx)
	if err := s.accounts.Save(ctx, buyer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "buyer save failed")
	}
	return buyer, nil
}

// HandleDecision applies the KYC provider's verdict. Approval releases the
// identity attributes, runs the proof checks, and only captures when both
// checks pass; anything else frees the hold. Exactly one compliance event is
// appended per attempt regardless of how many times the decision is replayed.
func (s *Service) HandleDecision(ctx context.Context, buyerID id.BuyerID, approved bool) (*domain.BuyerAccount, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.HandleDecision",
		trace.WithAttributes(
			attribute.String("buyer_id", buyerID.String()),
			attribute.Bool("approved", approved),
		))
	defer span.End()

	release, err := s.locker.Acquire(ctx, buyerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "settlement lock unavailable")
	}
	defer release()

	buyer, err := s.loadBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	if !approved {
		if _, err := s.next(buyer.PaymentStatus, EventDecisionDeclined); err != nil {
			return nil, err
		}
		return s.reject(ctx, buyer, declinedArtifacts(buyer.AttemptID))
	}

	if _, err := s.next(buyer.PaymentStatus, EventDecisionApproved); err != nil {
		return nil, err
	}

	// Attributes are fetched before any state moves: a provider failure here
	// leaves the attempt in its last good state for the webhook retry path.
	attrs, err := s.sessions.Attributes(ctx, buyer.SessionID)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.engine.Evaluate(attrs, buyer.ShippingAddress, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "proof evaluation failed")
	}

	// Provider approval alone is not enough: payment settles only when our
	// own age and address checks pass too.
	if !artifacts.AgeVerified || !artifacts.AddressVerified {
		return s.reject(ctx, buyer, artifacts)
	}

	s.applyTransition(buyer, EventDecisionApproved, id.PaymentPassed)
	buyer.UpdatedAt = requestcontext.Now(ctx)
	if err := s.accounts.Save(ctx, buyer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "buyer save failed")
	}

	return s.settle(ctx, buyer, artifacts)
}

// Resume re-drives an attempt stuck in passed: the approved decision is
// persisted but the capture never finished. Any other state has nothing to
// resume.
func (s *Service) Resume(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error) {
	release, err := s.locker.Acquire(ctx, buyerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "settlement lock unavailable")
	}
	defer release()

	buyer, err := s.loadBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if buyer.PaymentStatus != id.PaymentPassed {
		return nil, dErrors.Newf(dErrors.CodeInvalidState,
			"nothing to resume from state %s", buyer.PaymentStatus)
	}

	attrs, err := s.sessions.Attributes(ctx, buyer.SessionID)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.engine.Evaluate(attrs, buyer.ShippingAddress, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "proof evaluation failed")
	}
	return s.settle(ctx, buyer, artifacts)
}

// settle finishes an approved attempt: capture the hold, complete the
// statuses, append the outcome. The buyer is already persisted as passed.
func (s *Service) settle(ctx context.Context, buyer *domain.BuyerAccount, artifacts domain.ProofArtifacts) (*domain.BuyerAccount, error) {
	if _, err := s.payments.Capture(ctx, buyer.HoldRef); err != nil {
		return nil, s.captureFailed(ctx, buyer, err)
	}

	now := requestcontext.Now(ctx)
	s.applyTransition(buyer, EventDecisionApproved, id.PaymentCompleted)
	buyer.VerificationStatus = id.VerificationVerified
	buyer.VerificationExpiresAt = now.Add(s.verificationTTL)
	buyer.UpdatedAt = now
	if err := s.accounts.Save(ctx, buyer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "buyer save failed")
	}

	s.appendOutcome(ctx, buyer, "", artifacts)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "verification completed",
			"buyer_id", buyer.ID,
			"attempt_id", buyer.AttemptID,
			"confidence", artifacts.Confidence,
		)
	}
	return buyer, nil
}

// reject frees the hold and records the failed outcome.
func (s *Service) reject(ctx context.Context, buyer *domain.BuyerAccount, artifacts domain.ProofArtifacts) (*domain.BuyerAccount, error) {
	if _, err := s.payments.Release(ctx, buyer.HoldRef); err != nil {
		// State stays in last good; the webhook layer retries with backoff.
		return nil, err
	}

	s.applyTransition(buyer, EventDecisionDeclined, id.PaymentRejectedRefunded)
	buyer.VerificationStatus = id.VerificationRejected
	buyer.UpdatedAt = requestcontext.Now(ctx)
	if err := s.accounts.Save(ctx, buyer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "buyer save failed")
	}

	s.appendOutcome(ctx, buyer, "", artifacts)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "verification rejected, hold released",
			"buyer_id", buyer.ID, "attempt_id", buyer.AttemptID)
	}
	return buyer, nil
}

// captureFailed moves a passed attempt to the terminal error state. Manual
// reconciliation from there; never silently reverted or retried.
func (s *Service) captureFailed(ctx context.Context, buyer *domain.BuyerAccount, cause error) error {
	if err := s.payments.MarkCaptureError(ctx, buyer.HoldRef); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "payment event error mark failed",
			"buyer_id", buyer.ID, "error", err)
	}
	s.applyTransition(buyer, EventCaptureFailed, id.PaymentError)
	buyer.UpdatedAt = requestcontext.Now(ctx)
	if err := s.accounts.Save(ctx, buyer); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "buyer save failed after capture error",
			"buyer_id", buyer.ID, "error", err)
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "capture failed after approval, manual reconciliation required",
			"buyer_id", buyer.ID,
			"attempt_id", buyer.AttemptID,
			"hold_ref", buyer.HoldRef,
			"error", cause,
		)
	}
	return dErrors.Wrap(cause, dErrors.CodeExternal, "capture failed after approval")
}

// appendOutcome records the attempt's compliance event. Duplicate appends are
// expected under webhook replays and are not errors.
func (s *Service) appendOutcome(ctx context.Context, buyer *domain.BuyerAccount, dealerRef id.ReferenceID, artifacts domain.ProofArtifacts) {
	_, err := s.ledger.Append(ctx, ledger.AppendParams{
		AttemptID:         buyer.AttemptID,
		BuyerID:           buyer.ID,
		BuyerReferenceID:  buyer.ReferenceID,
		DealerReferenceID: dealerRef,
		Artifacts:         artifacts,
	})
	if err != nil && !dErrors.HasCode(err, dErrors.CodeDuplicate) && s.logger != nil {
		s.logger.ErrorContext(ctx, "compliance append failed",
			"buyer_id", buyer.ID, "attempt_id", buyer.AttemptID, "error", err)
	}
}

// declinedArtifacts shapes the ledger payload for a provider decline, where
// no identity attributes are ever released.
func declinedArtifacts(attemptID id.AttemptID) domain.ProofArtifacts {
	hash, err := proof.CommitmentHash(map[string]any{
		"attempt_id": attemptID.String(),
		"decision":   "declined",
	})
	if err != nil {
		hash = ""
	}
	return domain.ProofArtifacts{
		AgeVerified:     false,
		AddressVerified: false,
		Confidence:      0,
		AgeProofHash:    hash,
		AddressHash:     hash,
	}
}

func (s *Service) loadBuyer(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error) {
	if buyerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "buyer_id is required")
	}
	buyer, err := s.accounts.FindByID(ctx, buyerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "buyer not found")
	}
	return buyer, nil
}

// next validates the transition and counts rejections.
func (s *Service) next(current id.PaymentStatus, event Event) (id.PaymentStatus, error) {
	nextState, err := Next(current, event)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncInvalidState()
		}
		return "", err
	}
	return nextState, nil
}

// applyTransition mutates the in-memory buyer and counts the move. Callers
// persist afterwards; intermediate states (passed) are persisted too so a
// crash between capture and completion is visible.
func (s *Service) applyTransition(buyer *domain.BuyerAccount, event Event, to id.PaymentStatus) {
	buyer.PaymentStatus = to
	if s.metrics != nil {
		s.metrics.IncTransition(event, string(to))
	}
}
