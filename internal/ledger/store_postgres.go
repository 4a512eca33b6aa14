package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// PostgresStore persists compliance events in the compliance_events table.
// The unique index on attempt_id enforces the one-event-per-attempt invariant
// at the storage layer.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event *domain.ComplianceEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal proof payload: %w", err)
	}

	var buyerID any
	if event.BuyerID != nil {
		buyerID = uuid.UUID(*event.BuyerID)
	}

	query := `
		INSERT INTO compliance_events (
			id, attempt_id, buyer_id, buyer_reference_id, dealer_reference_id,
			payload, age_verified, address_verified, confidence, anchor_ref, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (attempt_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		event.ID,
		uuid.UUID(event.AttemptID),
		buyerID,
		string(event.BuyerReferenceID),
		string(event.DealerReferenceID),
		payload,
		event.AgeVerified,
		event.AddressVerified,
		event.Confidence,
		event.AnchorRef,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append compliance event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append compliance event: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

const complianceColumns = `
	id, attempt_id, buyer_id, buyer_reference_id, dealer_reference_id,
	payload, age_verified, address_verified, confidence, anchor_ref, created_at`

func (s *PostgresStore) FindByAttempt(ctx context.Context, attemptID id.AttemptID) (*domain.ComplianceEvent, error) {
	query := `SELECT ` + complianceColumns + ` FROM compliance_events WHERE attempt_id = $1`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(attemptID))
	event, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find compliance event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) Query(ctx context.Context, scope Scope, filter domain.LedgerFilter, page domain.Page) ([]domain.ComplianceEvent, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	switch {
	case scope.BuyerReferenceID != "":
		where = append(where, "buyer_reference_id = "+arg(string(scope.BuyerReferenceID)))
	case scope.DealerReferenceID != "":
		where = append(where, "dealer_reference_id = "+arg(string(scope.DealerReferenceID)))
	default:
		return nil, fmt.Errorf("ledger query requires a scope")
	}

	if filter.From != nil {
		where = append(where, "created_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "created_at <= "+arg(*filter.To))
	}
	if filter.AgeVerified != nil {
		where = append(where, "age_verified = "+arg(*filter.AgeVerified))
	}
	if filter.AddressVerified != nil {
		where = append(where, "address_verified = "+arg(*filter.AddressVerified))
	}

	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	query := `SELECT ` + complianceColumns + ` FROM compliance_events WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY id LIMIT ` + arg(limit) + ` OFFSET ` + arg(page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compliance events: %w", err)
	}
	defer rows.Close()

	var events []domain.ComplianceEvent
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan compliance event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func scanEvent(scan func(dest ...any) error) (*domain.ComplianceEvent, error) {
	var (
		event      domain.ComplianceEvent
		rawAttempt uuid.UUID
		rawBuyer   uuid.NullUUID
		buyerRef   string
		dealerRef  string
		payload    []byte
	)
	err := scan(
		&event.ID, &rawAttempt, &rawBuyer, &buyerRef, &dealerRef,
		&payload, &event.AgeVerified, &event.AddressVerified, &event.Confidence,
		&event.AnchorRef, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	event.AttemptID = id.AttemptID(rawAttempt)
	if rawBuyer.Valid {
		buyerID := id.BuyerID(rawBuyer.UUID)
		event.BuyerID = &buyerID
	}
	event.BuyerReferenceID = id.ReferenceID(buyerRef)
	event.DealerReferenceID = id.ReferenceID(dealerRef)
	if err := json.Unmarshal(payload, &event.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal proof payload: %w", err)
	}
	return &event, nil
}

func (s *PostgresStore) Anonymize(ctx context.Context, buyerID id.BuyerID) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE compliance_events SET buyer_id = NULL WHERE buyer_id = $1`,
		uuid.UUID(buyerID),
	)
	if err != nil {
		return 0, fmt.Errorf("anonymize compliance events: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("anonymize compliance events: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) AttachAnchor(ctx context.Context, eventID string, anchorRef string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE compliance_events SET anchor_ref = $2 WHERE id = $1`,
		eventID, anchorRef,
	)
	if err != nil {
		return fmt.Errorf("attach anchor ref: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach anchor ref: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
