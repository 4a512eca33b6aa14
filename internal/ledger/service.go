package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/requestcontext"

	"github.com/google/uuid"
)

// Mirror fans a durably persisted event out to a secondary sink. Best-effort:
// the ledger row is the source of truth.
type Mirror interface {
	Publish(ctx context.Context, key string, value []byte)
}

// Anchorer obtains an external anchor reference for a commitment hash.
type Anchorer interface {
	Store(ctx context.Context, hash string) (anchorRef string, err error)
}

// Service enforces the one-event-per-attempt invariant and owns all writes to
// the compliance ledger.
type Service struct {
	store  Store
	mirror Mirror
	anchor Anchorer
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMirror(mirror Mirror) Option {
	return func(s *Service) { s.mirror = mirror }
}

func WithAnchor(anchor Anchorer) Option {
	return func(s *Service) { s.anchor = anchor }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AppendParams is everything needed to record one attempt's outcome.
type AppendParams struct {
	AttemptID         id.AttemptID
	BuyerID           id.BuyerID
	BuyerReferenceID  id.ReferenceID
	DealerReferenceID id.ReferenceID
	Artifacts         domain.ProofArtifacts
}

// Append records the outcome of a completed or rejected attempt exactly once.
// A repeat append for the same attempt returns the existing event together
// with CodeDuplicate; callers treat that as a no-op success.
func (s *Service) Append(ctx context.Context, params AppendParams) (*domain.ComplianceEvent, error) {
	if params.AttemptID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "attempt_id is required")
	}
	if params.BuyerReferenceID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "buyer_reference_id is required")
	}

	// UUIDv7 ids sort chronologically, which keeps ledger pagination stable.
	eventID, err := uuid.NewV7()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "event id generation failed")
	}

	buyerID := params.BuyerID
	event := &domain.ComplianceEvent{
		ID:                eventID.String(),
		AttemptID:         params.AttemptID,
		BuyerID:           &buyerID,
		BuyerReferenceID:  params.BuyerReferenceID,
		DealerReferenceID: params.DealerReferenceID,
		Payload:           params.Artifacts,
		AgeVerified:       params.Artifacts.AgeVerified,
		AddressVerified:   params.Artifacts.AddressVerified,
		Confidence:        params.Artifacts.Confidence,
		CreatedAt:         requestcontext.Now(ctx),
	}

	if err := s.store.Append(ctx, event); err != nil {
		if dErrors.Is(err, sentinel.ErrConflict) {
			existing, findErr := s.store.FindByAttempt(ctx, params.AttemptID)
			if findErr != nil {
				return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "duplicate attempt lookup failed")
			}
			return existing, dErrors.New(dErrors.CodeDuplicate, "compliance event already recorded for attempt")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "compliance append failed")
	}

	s.anchorAndMirror(ctx, event)
	return event, nil
}

// anchorAndMirror attaches an external anchor ref and mirrors the event.
// Both are best-effort: the row is already durable.
func (s *Service) anchorAndMirror(ctx context.Context, event *domain.ComplianceEvent) {
	if s.anchor != nil {
		anchorRef, err := s.anchor.Store(ctx, event.Payload.AddressHash)
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "ledger anchor unavailable, continuing without",
					"event_id", event.ID, "error", err)
			}
		} else if err := s.store.AttachAnchor(ctx, event.ID, anchorRef); err != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "anchor ref attach failed",
					"event_id", event.ID, "error", err)
			}
		} else {
			event.AnchorRef = anchorRef
		}
	}

	if s.mirror != nil {
		payload, err := json.Marshal(mirrorPayload(event))
		if err == nil {
			s.mirror.Publish(ctx, event.ID, payload)
		} else if s.logger != nil {
			s.logger.ErrorContext(ctx, "mirror payload marshal failed",
				"event_id", event.ID, "error", err)
		}
	}
}

// mirrorPayload shapes the Kafka record. Reference ids only; never the owning
// account id, so downstream retention stores stay erasure-clean.
func mirrorPayload(event *domain.ComplianceEvent) map[string]any {
	return map[string]any{
		"id":                  event.ID,
		"attempt_id":          event.AttemptID.String(),
		"buyer_reference_id":  string(event.BuyerReferenceID),
		"dealer_reference_id": string(event.DealerReferenceID),
		"age_verified":        event.AgeVerified,
		"address_verified":    event.AddressVerified,
		"confidence":          event.Confidence,
		"anchor_ref":          event.AnchorRef,
		"created_at":          event.CreatedAt,
	}
}

// Query returns a page of events visible to the given scope.
func (s *Service) Query(ctx context.Context, scope Scope, filter domain.LedgerFilter, page domain.Page) ([]domain.ComplianceEvent, error) {
	if scope.BuyerReferenceID == "" && scope.DealerReferenceID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "query scope is required")
	}
	events, err := s.store.Query(ctx, scope, filter, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ledger query failed")
	}
	return events, nil
}

// Anonymize detaches all of a buyer's ledger rows from the account while
// keeping every reference id and outcome in place.
func (s *Service) Anonymize(ctx context.Context, buyerID id.BuyerID) (int, error) {
	if buyerID.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "buyer_id is required")
	}
	touched, err := s.store.Anonymize(ctx, buyerID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "ledger anonymize failed")
	}
	return touched, nil
}
