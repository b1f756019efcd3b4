// Package repo holds the pgx-backed stores behind the domain read
// interfaces. Reference data is admin-managed; every store here only reads.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/print24/pricing/internal/geo"
)

// ErrStoreUnavailable indicates a store was constructed without a pool.
var ErrStoreUnavailable = errors.New("repo: store unavailable")

// ZoneStore implements geo.Store against Postgres.
type ZoneStore struct {
	pool *pgxpool.Pool
}

// NewZoneStore constructs a ZoneStore backed by a pgx connection pool.
func NewZoneStore(pool *pgxpool.Pool) *ZoneStore {
	return &ZoneStore{pool: pool}
}

// MappingsContaining returns every mapping whose exact pincode or pincode
// range matches the numeric code.
func (s *ZoneStore) MappingsContaining(ctx context.Context, code int64) ([]geo.Mapping, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	// Ranges live in text columns alongside exact pincodes; NULLIF keeps
	// the bigint cast off rows whose range columns are empty.
	rows, err := s.pool.Query(ctx, `SELECT id, zone_id, country_code, pincode, start_pincode, end_pincode
FROM zone_mappings
WHERE NULLIF(pincode, '')::bigint = $1
   OR $1 BETWEEN NULLIF(start_pincode, '')::bigint AND NULLIF(end_pincode, '')::bigint`, code)
	if err != nil {
		return nil, fmt.Errorf("repo: query mappings: %w", err)
	}
	defer rows.Close()

	return collectMappings(rows)
}

// MappingsForCountry returns country-rule mappings: rows that bind a zone to
// a whole country without a pincode or range.
func (s *ZoneStore) MappingsForCountry(ctx context.Context, country string) ([]geo.Mapping, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT id, zone_id, country_code, pincode, start_pincode, end_pincode
FROM zone_mappings
WHERE country_code = $1 AND pincode = '' AND start_pincode = '' AND end_pincode = ''`, country)
	if err != nil {
		return nil, fmt.Errorf("repo: query country mappings: %w", err)
	}
	defer rows.Close()
	return collectMappings(rows)
}

func collectMappings(rows pgx.Rows) ([]geo.Mapping, error) {
	var out []geo.Mapping
	for rows.Next() {
		var (
			m          geo.Mapping
			start, end string
			err        error
		)
		if err = rows.Scan(&m.ID, &m.ZoneID, &m.CountryCode, &m.Pincode, &start, &end); err != nil {
			return nil, fmt.Errorf("repo: scan mapping: %w", err)
		}
		if m.StartPincode, m.EndPincode, err = mappingRange(start, end); err != nil {
			return nil, fmt.Errorf("repo: mapping %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// mappingRange converts the text range columns into their numeric bounds.
// Empty columns mean the row carries an exact-pincode or country rule, not
// a range; both bounds stay zero.
func mappingRange(start, end string) (int64, int64, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return 0, 0, nil
	}
	lo, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("start pincode %q: %w", start, err)
	}
	hi, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("end pincode %q: %w", end, err)
	}
	return lo, hi, nil
}

// ZonesByIDs fetches zones by id; missing ids are absent from the result.
func (s *ZoneStore) ZonesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]geo.Zone, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if len(ids) == 0 {
		return map[uuid.UUID]geo.Zone{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name, level, priority, code, active
FROM zones WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("repo: query zones: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]geo.Zone, len(ids))
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out[z.ID] = z
	}
	return out, rows.Err()
}

// ActiveZonesByCodes returns active zones matching any candidate code.
func (s *ZoneStore) ActiveZonesByCodes(ctx context.Context, codes []string) ([]geo.Zone, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name, level, priority, code, active
FROM zones WHERE active AND code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("repo: query zones by code: %w", err)
	}
	defer rows.Close()

	var out []geo.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func scanZone(row pgx.Row) (geo.Zone, error) {
	var z geo.Zone
	var level string
	if err := row.Scan(&z.ID, &z.Name, &level, &z.Priority, &z.Code, &z.Active); err != nil {
		return geo.Zone{}, fmt.Errorf("repo: scan zone: %w", err)
	}
	z.Level = geo.Level(level)
	return z, nil
}
