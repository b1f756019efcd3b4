package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/print24/pricing/internal/segment"
)

// SegmentStore implements segment.Store against Postgres.
type SegmentStore struct {
	pool *pgxpool.Pool
}

// NewSegmentStore constructs a SegmentStore backed by a pgx connection pool.
func NewSegmentStore(pool *pgxpool.Pool) *SegmentStore {
	return &SegmentStore{pool: pool}
}

const segmentColumns = `id, code, name, tier, is_default, credit_days, payment_terms`

// SegmentByID fetches one segment by id.
func (s *SegmentStore) SegmentByID(ctx context.Context, id uuid.UUID) (segment.Segment, bool, error) {
	if s == nil || s.pool == nil {
		return segment.Segment{}, false, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = $1`, id)
	return scanSegment(row)
}

// SegmentByCode fetches one segment by its stable code.
func (s *SegmentStore) SegmentByCode(ctx context.Context, code string) (segment.Segment, bool, error) {
	if s == nil || s.pool == nil {
		return segment.Segment{}, false, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE code = $1`, code)
	return scanSegment(row)
}

// DefaultSegment fetches the segment flagged as default.
func (s *SegmentStore) DefaultSegment(ctx context.Context) (segment.Segment, bool, error) {
	if s == nil || s.pool == nil {
		return segment.Segment{}, false, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE is_default LIMIT 1`)
	return scanSegment(row)
}

func scanSegment(row pgx.Row) (segment.Segment, bool, error) {
	var seg segment.Segment
	err := row.Scan(&seg.ID, &seg.Code, &seg.Name, &seg.Tier, &seg.IsDefault, &seg.CreditDays, &seg.PaymentTerms)
	if errors.Is(err, pgx.ErrNoRows) {
		return segment.Segment{}, false, nil
	}
	if err != nil {
		return segment.Segment{}, false, fmt.Errorf("repo: scan segment: %w", err)
	}
	return seg, true, nil
}
