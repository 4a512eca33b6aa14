// Package ledger is the append-only compliance record store. Rows are keyed
// by immutable pseudonymous references and survive account deletion.
package ledger

import (
	"context"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
)

// Scope narrows a query to the events visible to one party. Exactly one field
// should be set.
type Scope struct {
	BuyerReferenceID  id.ReferenceID
	DealerReferenceID id.ReferenceID
}

// Store persists compliance events.
//
// Append must be insert-if-absent on AttemptID and return
// sentinel.ErrConflict when a row for the attempt already exists; that is how
// the exactly-one-event-per-attempt invariant survives webhook retries.
type Store interface {
	Append(ctx context.Context, event *domain.ComplianceEvent) error
	FindByAttempt(ctx context.Context, attemptID id.AttemptID) (*domain.ComplianceEvent, error)
	Query(ctx context.Context, scope Scope, filter domain.LedgerFilter, page domain.Page) ([]domain.ComplianceEvent, error)
	// Anonymize nulls the owning buyer foreign key on all matching rows and
	// reports how many were touched. Reference ids are never cleared.
	Anonymize(ctx context.Context, buyerID id.BuyerID) (int, error)
	// AttachAnchor records a late-arriving anchor reference. The only mutation
	// permitted after creation.
	AttachAnchor(ctx context.Context, eventID string, anchorRef string) error
}
