package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/print24/pricing/internal/catalog"
)

// ProductStore implements catalog.Store against Postgres.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore constructs a ProductStore backed by a pgx connection pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// ProductByID fetches the pricing-relevant slice of a product.
func (s *ProductStore) ProductByID(ctx context.Context, id uuid.UUID) (catalog.Product, bool, error) {
	if s == nil || s.pool == nil {
		return catalog.Product{}, false, ErrStoreUnavailable
	}
	var (
		p         catalog.Product
		basePrice decimal.Decimal
	)
	err := s.pool.QueryRow(ctx, `SELECT id, title, category_id, base_price, active, min_quantity,
       COALESCE(allowed_countries, '{}'), COALESCE(excluded_zone_ids, '{}')
FROM products WHERE id = $1`, id).Scan(
		&p.ID, &p.Title, &p.CategoryID, &basePrice, &p.Active, &p.MinQuantity,
		&p.AllowedCountries, &p.ExcludedZoneIDs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, false, nil
	}
	if err != nil {
		return catalog.Product{}, false, fmt.Errorf("repo: scan product: %w", err)
	}
	p.BasePrice = basePrice
	return p, true, nil
}

// AttributePrices returns the product's attribute pricing rules.
func (s *ProductStore) AttributePrices(ctx context.Context, productID uuid.UUID) ([]catalog.AttributePrice, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT attribute_type, value, pricing_key, behavior, amount
FROM attribute_prices WHERE product_id = $1 ORDER BY attribute_type, value`, productID)
	if err != nil {
		return nil, fmt.Errorf("repo: query attribute prices: %w", err)
	}
	defer rows.Close()

	var out []catalog.AttributePrice
	for rows.Next() {
		var (
			ap       catalog.AttributePrice
			behavior string
		)
		if err := rows.Scan(&ap.AttributeType, &ap.Value, &ap.PricingKey, &behavior, &ap.Amount); err != nil {
			return nil, fmt.Errorf("repo: scan attribute price: %w", err)
		}
		ap.Behavior = catalog.PricingBehavior(behavior)
		out = append(out, ap)
	}
	return out, rows.Err()
}
