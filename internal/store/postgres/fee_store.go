package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boogiefi/marketd/internal/domain"
)

// FeeStore implements domain.FeeStore using PostgreSQL. A single row carries
// the current royalty fee so admin rate changes survive a restart.
type FeeStore struct {
	pool *pgxpool.Pool
}

// NewFeeStore creates a new FeeStore backed by the given connection pool.
func NewFeeStore(pool *pgxpool.Pool) *FeeStore {
	return &FeeStore{pool: pool}
}

// Get returns the persisted royalty fee as a decimal wei string, or
// domain.ErrNotFound when no fee has been persisted yet.
func (s *FeeStore) Get(ctx context.Context) (string, error) {
	var fee string
	err := s.pool.QueryRow(ctx,
		`SELECT fee::text FROM royalty_fee WHERE singleton`).Scan(&fee)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get royalty fee: %w", err)
	}
	return fee, nil
}

// Set persists the royalty fee, replacing any previous value.
func (s *FeeStore) Set(ctx context.Context, fee string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO royalty_fee (singleton, fee, updated_at)
		VALUES (TRUE, $1::numeric, NOW())
		ON CONFLICT (singleton) DO UPDATE SET
			fee = EXCLUDED.fee,
			updated_at = NOW()`,
		fee)
	if err != nil {
		return fmt.Errorf("postgres: set royalty fee: %w", err)
	}
	return nil
}
