package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/print24/pricing/internal/account"
)

// AccountStore implements account.Store against Postgres.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore constructs an AccountStore backed by a pgx connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// AccountByID fetches the pricing-relevant slice of an account.
func (s *AccountStore) AccountByID(ctx context.Context, id uuid.UUID) (account.Account, bool, error) {
	if s == nil || s.pool == nil {
		return account.Account{}, false, ErrStoreUnavailable
	}
	var a account.Account
	err := s.pool.QueryRow(ctx, `SELECT id, type, segment_id, tier,
       COALESCE(pincode, ''), COALESCE(country, ''), COALESCE(region, ''),
       COALESCE(territories, '{}'), credit_days, COALESCE(payment_terms, '')
FROM accounts WHERE id = $1`, id).Scan(
		&a.ID, &a.Type, &a.SegmentID, &a.Tier,
		&a.Pincode, &a.Country, &a.Region,
		&a.Territories, &a.CreditDays, &a.PaymentTerms,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Account{}, false, nil
	}
	if err != nil {
		return account.Account{}, false, fmt.Errorf("repo: scan account: %w", err)
	}
	return a, true, nil
}
