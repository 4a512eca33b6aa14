package account

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

// PostgresStore persists buyer accounts in the buyer_accounts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const buyerColumns = `
	id, reference_id, email, shipping_street, shipping_city, shipping_state,
	shipping_postal_code, payment_status, verification_status,
	attempt_id, hold_ref, session_id, verification_expires_at,
	anonymized, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, buyer *domain.BuyerAccount) error {
	query := `
		INSERT INTO buyer_accounts (` + buyerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			shipping_street = EXCLUDED.shipping_street,
			shipping_city = EXCLUDED.shipping_city,
			shipping_state = EXCLUDED.shipping_state,
			shipping_postal_code = EXCLUDED.shipping_postal_code,
			payment_status = EXCLUDED.payment_status,
			verification_status = EXCLUDED.verification_status,
			attempt_id = EXCLUDED.attempt_id,
			hold_ref = EXCLUDED.hold_ref,
			session_id = EXCLUDED.session_id,
			verification_expires_at = EXCLUDED.verification_expires_at,
			anonymized = EXCLUDED.anonymized,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(buyer.ID),
		string(buyer.ReferenceID),
		buyer.Email,
		buyer.ShippingAddress.Street,
		buyer.ShippingAddress.City,
		buyer.ShippingAddress.State,
		buyer.ShippingAddress.PostalCode,
		string(buyer.PaymentStatus),
		string(buyer.VerificationStatus),
		uuid.UUID(buyer.AttemptID),
		string(buyer.HoldRef),
		string(buyer.SessionID),
		buyer.VerificationExpiresAt,
		buyer.Anonymized,
		buyer.CreatedAt,
		buyer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save buyer account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error) {
	return s.findOne(ctx, "id = $1", uuid.UUID(buyerID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*domain.BuyerAccount, error) {
	return s.findOne(ctx, "lower(email) = lower($1) AND NOT anonymized", email)
}

func (s *PostgresStore) FindByHoldRef(ctx context.Context, holdRef id.HoldRef) (*domain.BuyerAccount, error) {
	return s.findOne(ctx, "hold_ref = $1 AND hold_ref <> ''", string(holdRef))
}

func (s *PostgresStore) FindBySessionID(ctx context.Context, sessionID id.KYCSessionID) (*domain.BuyerAccount, error) {
	return s.findOne(ctx, "session_id = $1 AND session_id <> ''", string(sessionID))
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*domain.BuyerAccount, error) {
	query := `SELECT ` + buyerColumns + ` FROM buyer_accounts WHERE ` + where
	row := s.db.QueryRowContext(ctx, query, arg)

	var (
		buyer      domain.BuyerAccount
		rawID      uuid.UUID
		rawAttempt uuid.UUID
		reference  string
		payStatus  string
		verStatus  string
		holdRef    string
		sessionID  string
	)
	err := row.Scan(
		&rawID, &reference, &buyer.Email,
		&buyer.ShippingAddress.Street, &buyer.ShippingAddress.City,
		&buyer.ShippingAddress.State, &buyer.ShippingAddress.PostalCode,
		&payStatus, &verStatus,
		&rawAttempt, &holdRef, &sessionID, &buyer.VerificationExpiresAt,
		&buyer.Anonymized, &buyer.CreatedAt, &buyer.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find buyer account: %w", err)
	}

	buyer.ID = id.BuyerID(rawID)
	buyer.AttemptID = id.AttemptID(rawAttempt)
	buyer.ReferenceID = id.ReferenceID(reference)
	buyer.PaymentStatus = id.PaymentStatus(payStatus)
	buyer.VerificationStatus = id.VerificationStatus(verStatus)
	buyer.HoldRef = id.HoldRef(holdRef)
	buyer.SessionID = id.KYCSessionID(sessionID)
	return &buyer, nil
}
