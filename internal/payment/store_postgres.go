package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// PostgresStore persists payment events in the payment_events table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `
	id, buyer_id, attempt_id, type, amount_cents, status,
	customer_reference_id, provider_hold_ref,
	authorized_at, captured_at, refunded_at, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, event *domain.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			provider_hold_ref = EXCLUDED.provider_hold_ref,
			authorized_at = EXCLUDED.authorized_at,
			captured_at = EXCLUDED.captured_at,
			refunded_at = EXCLUDED.refunded_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		uuid.UUID(event.BuyerID),
		uuid.UUID(event.AttemptID),
		string(event.Type),
		event.AmountCents,
		string(event.Status),
		string(event.CustomerReferenceID),
		string(event.ProviderHoldRef),
		event.AuthorizedAt,
		event.CapturedAt,
		event.RefundedAt,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save payment event: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, eventID id.PaymentEventID) (*domain.PaymentEvent, error) {
	return s.findOne(ctx, "id = $1", uuid.UUID(eventID))
}

func (s *PostgresStore) FindByHoldRef(ctx context.Context, holdRef id.HoldRef) (*domain.PaymentEvent, error) {
	return s.findOne(ctx, "provider_hold_ref = $1 AND provider_hold_ref <> ''", string(holdRef))
}

func (s *PostgresStore) FindOpenByBuyer(ctx context.Context, buyerID id.BuyerID) (*domain.PaymentEvent, error) {
	return s.findOne(ctx,
		"buyer_id = $1 AND status IN ('pending', 'authorized', 'checking', 'passed')",
		uuid.UUID(buyerID))
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*domain.PaymentEvent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_events WHERE ` + where + ` LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, arg)

	var (
		event      domain.PaymentEvent
		rawID      uuid.UUID
		rawBuyer   uuid.UUID
		rawAttempt uuid.UUID
		eventType  string
		status     string
		custRef    string
		holdRef    string
	)
	err := row.Scan(
		&rawID, &rawBuyer, &rawAttempt, &eventType, &event.AmountCents, &status,
		&custRef, &holdRef,
		&event.AuthorizedAt, &event.CapturedAt, &event.RefundedAt,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment event: %w", err)
	}

	event.ID = id.PaymentEventID(rawID)
	event.BuyerID = id.BuyerID(rawBuyer)
	event.AttemptID = id.AttemptID(rawAttempt)
	event.Type = id.PaymentEventType(eventType)
	event.Status = id.PaymentStatus(status)
	event.CustomerReferenceID = id.ReferenceID(custRef)
	event.ProviderHoldRef = id.HoldRef(holdRef)
	return &event, nil
}
