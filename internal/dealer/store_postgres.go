package dealer

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

// PostgresStore persists dealer accounts in the dealer_accounts table. Credit
// mutations happen in single conditional UPDATE statements so concurrency is
// resolved by the database, not by application reads.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const dealerColumns = `
	id, reference_id, name, credits_purchased, credits_used,
	api_key_hash, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, dealer *domain.DealerAccount) error {
	query := `
		INSERT INTO dealer_accounts (` + dealerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			api_key_hash = EXCLUDED.api_key_hash,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(dealer.ID),
		string(dealer.ReferenceID),
		dealer.Name,
		dealer.CreditsPurchased,
		dealer.CreditsUsed,
		dealer.APIKeyHash,
		dealer.CreatedAt,
		dealer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save dealer account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, dealerID id.DealerID) (*domain.DealerAccount, error) {
	query := `SELECT ` + dealerColumns + ` FROM dealer_accounts WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(dealerID)))
}

func (s *PostgresStore) Reserve(ctx context.Context, dealerID id.DealerID, cost int) (*domain.DealerAccount, error) {
	query := `
		UPDATE dealer_accounts
		SET credits_used = credits_used + $2, updated_at = now()
		WHERE id = $1 AND credits_used + $2 <= credits_purchased
		RETURNING ` + dealerColumns
	dealer, err := s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(dealerID), cost))
	if errors.Is(err, sentinel.ErrNotFound) {
		// Distinguish unknown dealer from exhausted balance.
		if _, findErr := s.FindByID(ctx, dealerID); findErr != nil {
			return nil, findErr
		}
		return nil, sentinel.ErrExhausted
	}
	return dealer, err
}

func (s *PostgresStore) Refund(ctx context.Context, dealerID id.DealerID, cost int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE dealer_accounts
		SET credits_used = GREATEST(credits_used - $2, 0), updated_at = now()
		WHERE id = $1
	`, uuid.UUID(dealerID), cost)
	if err != nil {
		return fmt.Errorf("refund dealer credits: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("refund dealer credits: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddCredits(ctx context.Context, dealerID id.DealerID, credits int) (*domain.DealerAccount, error) {
	query := `
		UPDATE dealer_accounts
		SET credits_purchased = credits_purchased + $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + dealerColumns
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(dealerID), credits))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*domain.DealerAccount, error) {
	var (
		dealer    domain.DealerAccount
		rawID     uuid.UUID
		reference string
	)
	err := row.Scan(
		&rawID, &reference, &dealer.Name,
		&dealer.CreditsPurchased, &dealer.CreditsUsed,
		&dealer.APIKeyHash, &dealer.CreatedAt, &dealer.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan dealer account: %w", err)
	}
	dealer.ID = id.DealerID(rawID)
	dealer.ReferenceID = id.ReferenceID(reference)
	return &dealer, nil
}
