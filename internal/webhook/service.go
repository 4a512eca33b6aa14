// Package webhook normalizes the at-least-once, possibly duplicated and
// out-of-order events from the payment and KYC providers and feeds them to
// the settlement state machine.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agegate/internal/account"
	"agegate/internal/domain"
	"agegate/internal/settlement"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/sentinel"
)

const (
	// deferRetryAfter is the guidance returned for unknown references: the
	// event probably raced ahead of the start call that creates them.
	deferRetryAfter = 2 * time.Second

	backoffBase = 500 * time.Millisecond
	backoffMax  = 30 * time.Second
)

// Orchestrator is the settlement surface the reconciler drives.
type Orchestrator interface {
	SessionOpened(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error)
	HandleDecision(ctx context.Context, buyerID id.BuyerID, approved bool) (*domain.BuyerAccount, error)
	// Resume re-drives a passed attempt whose capture never finished.
	Resume(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error)
}

// Result classifies what Process did with an event.
type Result string

const (
	ResultApplied   Result = "applied"
	ResultDuplicate Result = "duplicate"
	ResultDeferred  Result = "deferred"
	ResultFailed    Result = "failed"
)

// Outcome is the reconciler's answer for one delivery. Deferred and failed
// outcomes carry retry guidance instead of an error the provider would treat
// as fatal.
type Outcome struct {
	Result      Result
	ShouldRetry bool
	RetryAfter  time.Duration
	Buyer       *domain.BuyerAccount
}

// Service is the webhook reconciliation handler.
type Service struct {
	accounts    account.Store
	settlements Orchestrator
	tracker     RetryTracker
	notifier    *Notifier
	logger      *slog.Logger
	metrics     *Metrics

	pollInterval time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracker(tracker RetryTracker) Option {
	return func(s *Service) { s.tracker = tracker }
}

func New(accounts account.Store, settlements Orchestrator, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if settlements == nil {
		return nil, fmt.Errorf("settlement orchestrator is required")
	}
	svc := &Service{
		accounts:     accounts,
		settlements:  settlements,
		tracker:      NewMemoryTracker(),
		notifier:     NewNotifier(),
		pollInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Process reconciles one delivery. The dedup rule is state-based: the
// persisted state is read first, and an event whose transition is already
// satisfied is a no-op success, never an error. Unknown references and
// external failures come back as retry guidance.
func (s *Service) Process(ctx context.Context, event domain.WebhookEvent) (Outcome, error) {
	settlementEvent, err := classify(event.Kind)
	if err != nil {
		return Outcome{Result: ResultFailed}, err
	}

	buyer, err := s.resolve(ctx, event)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		// Out-of-order: the reference does not exist yet. Defer, don't drop.
		s.count(event.Kind, ResultDeferred)
		return Outcome{
			Result:      ResultDeferred,
			ShouldRetry: true,
			RetryAfter:  deferRetryAfter,
		}, nil
	}
	if err != nil {
		return Outcome{Result: ResultFailed}, dErrors.Wrap(err, dErrors.CodeInternal, "webhook reference lookup failed")
	}

	if settlement.Satisfied(buyer.PaymentStatus, settlementEvent) {
		s.count(event.Kind, ResultDuplicate)
		return Outcome{Result: ResultDuplicate, Buyer: buyer},
			dErrors.New(dErrors.CodeDuplicate, "event already applied")
	}

	updated, err := s.apply(ctx, settlementEvent, buyer.ID, event.Kind)
	switch {
	case err == nil:
		s.count(event.Kind, ResultApplied)
		s.notifier.Notify(buyer.ID)
		return Outcome{Result: ResultApplied, Buyer: updated}, nil

	case dErrors.HasCode(err, dErrors.CodeDuplicate):
		s.count(event.Kind, ResultDuplicate)
		return Outcome{Result: ResultDuplicate, Buyer: buyer}, err

	case dErrors.HasCode(err, dErrors.CodeExternal):
		// Provider trouble mid-transition. The attempt stayed in its last
		// good state; tell the sender to come back with backoff.
		retryAfter := s.backoff(ctx, event)
		s.count(event.Kind, ResultFailed)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook transition hit external failure, backing off",
				"kind", event.Kind,
				"buyer_id", buyer.ID,
				"retry_after", retryAfter,
				"error", err,
			)
		}
		return Outcome{
			Result:      ResultFailed,
			ShouldRetry: true,
			RetryAfter:  retryAfter,
			Buyer:       buyer,
		}, err

	default:
		s.count(event.Kind, ResultFailed)
		return Outcome{Result: ResultFailed, Buyer: buyer}, err
	}
}

// Retry re-drives the last known decision for a buyer. Terminal attempts are
// a no-op success; attempts with no decision yet tell the caller to wait.
func (s *Service) Retry(ctx context.Context, buyerID id.BuyerID) (Outcome, error) {
	buyer, err := s.accounts.FindByID(ctx, buyerID)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return Outcome{Result: ResultFailed}, dErrors.New(dErrors.CodeNotFound, "buyer not found")
	}
	if err != nil {
		return Outcome{Result: ResultFailed}, dErrors.Wrap(err, dErrors.CodeInternal, "buyer lookup failed")
	}

	if buyer.PaymentStatus.Terminal() {
		return Outcome{Result: ResultDuplicate, Buyer: buyer},
			dErrors.New(dErrors.CodeDuplicate, "attempt already resolved")
	}

	// passed is the only state carrying a persisted decision; re-apply it.
	if buyer.PaymentStatus == id.PaymentPassed {
		updated, err := s.settlements.Resume(ctx, buyerID)
		if err != nil {
			return Outcome{Result: ResultFailed, ShouldRetry: true, RetryAfter: deferRetryAfter, Buyer: buyer}, err
		}
		s.notifier.Notify(buyerID)
		return Outcome{Result: ResultApplied, Buyer: updated}, nil
	}

	// No decision has been recorded yet; there is nothing to re-apply.
	return Outcome{
		Result:      ResultDeferred,
		ShouldRetry: true,
		RetryAfter:  deferRetryAfter,
		Buyer:       buyer,
	}, nil
}

// resolve maps the event's external reference to the owning buyer.
func (s *Service) resolve(ctx context.Context, event domain.WebhookEvent) (*domain.BuyerAccount, error) {
	switch {
	case event.SessionID != "":
		return s.accounts.FindBySessionID(ctx, event.SessionID)
	case event.HoldRef != "":
		return s.accounts.FindByHoldRef(ctx, event.HoldRef)
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "event carries no reference")
	}
}

func (s *Service) apply(ctx context.Context, event settlement.Event, buyerID id.BuyerID, kind domain.WebhookEventKind) (*domain.BuyerAccount, error) {
	switch event {
	case settlement.EventSessionOpened:
		return s.settlements.SessionOpened(ctx, buyerID)
	case settlement.EventDecisionApproved:
		return s.settlements.HandleDecision(ctx, buyerID, true)
	case settlement.EventDecisionDeclined:
		return s.settlements.HandleDecision(ctx, buyerID, false)
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unroutable webhook kind %q", kind)
	}
}

// classify maps provider event kinds onto settlement events. hold_authorized
// maps to start, which Process always finds already satisfied: the hold only
// exists because start authorized it.
func classify(kind domain.WebhookEventKind) (settlement.Event, error) {
	switch kind {
	case domain.WebhookSessionOpened:
		return settlement.EventSessionOpened, nil
	case domain.WebhookDecisionApproved:
		return settlement.EventDecisionApproved, nil
	case domain.WebhookDecisionDeclined:
		return settlement.EventDecisionDeclined, nil
	case domain.WebhookHoldAuthorized:
		return settlement.EventStart, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown webhook kind %q", kind)
	}
}

func (s *Service) backoff(ctx context.Context, event domain.WebhookEvent) time.Duration {
	key := string(event.Kind) + ":" + string(event.SessionID) + ":" + string(event.HoldRef)
	attempt, err := s.tracker.Next(ctx, key)
	if err != nil || attempt < 1 {
		return backoffBase
	}
	delay := backoffBase << (attempt - 1)
	if delay > backoffMax || delay <= 0 {
		return backoffMax
	}
	return delay
}

func (s *Service) count(kind domain.WebhookEventKind, result Result) {
	if s.metrics != nil {
		s.metrics.IncProcessed(string(kind), string(result))
	}
}
