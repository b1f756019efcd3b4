package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/print24/pricing/internal/modifier"
)

// ModifierStore loads price modifiers from Postgres. It over-selects on
// purpose: the matcher owns the exact applicability rules, the store only
// narrows enough to keep the pool small.
type ModifierStore struct {
	pool *pgxpool.Pool
}

// NewModifierStore constructs a ModifierStore backed by a pgx connection pool.
func NewModifierStore(pool *pgxpool.Pool) *ModifierStore {
	return &ModifierStore{pool: pool}
}

const modifierColumns = `id, name, scope, zone_id, segment_id, product_id, account_id, category_id,
       COALESCE(attribute_type, ''), COALESCE(attribute_value, ''), condition,
       kind, value, applies_on,
       min_quantity, max_quantity, min_order_value, max_order_value,
       valid_from, valid_to, max_uses, used_count,
       active, stackable, exclusive, priority, max_discount_amount, created_at`

// CandidateModifiers returns active modifiers that could apply to the
// product, segment, or any hierarchy zone. Broad scopes (attribute,
// combination, user, category) always ride along for the matcher to decide.
func (s *ModifierStore) CandidateModifiers(ctx context.Context, productID uuid.UUID, segmentID uuid.UUID, zoneIDs []uuid.UUID) ([]modifier.Modifier, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+modifierColumns+`
FROM price_modifiers
WHERE active
  AND (scope = 'GLOBAL'
       OR (scope = 'ZONE' AND zone_id = ANY($3))
       OR (scope = 'SEGMENT' AND segment_id = $2)
       OR (scope = 'PRODUCT' AND product_id = $1)
       OR scope IN ('ATTRIBUTE', 'COMBINATION', 'USER', 'CATEGORY'))`,
		productID, segmentID, zoneIDs)
	if err != nil {
		return nil, fmt.Errorf("repo: query candidate modifiers: %w", err)
	}
	defer rows.Close()
	return collectModifiers(rows)
}

// LiveModifiers returns every active modifier, for the admin pre-check.
func (s *ModifierStore) LiveModifiers(ctx context.Context) ([]modifier.Modifier, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+modifierColumns+` FROM price_modifiers WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("repo: query live modifiers: %w", err)
	}
	defer rows.Close()
	return collectModifiers(rows)
}

func collectModifiers(rows pgx.Rows) ([]modifier.Modifier, error) {
	var out []modifier.Modifier
	for rows.Next() {
		m, err := scanModifier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanModifier(row pgx.Row) (modifier.Modifier, error) {
	var (
		m         modifier.Modifier
		scope     string
		zoneID    *uuid.UUID
		segID     *uuid.UUID
		prodID    *uuid.UUID
		acctID    *uuid.UUID
		catID     *uuid.UUID
		attrType  string
		attrValue string
		condition []byte
		kind      string
		appliesOn string
		validFrom *time.Time
		validTo   *time.Time
	)
	err := row.Scan(&m.ID, &m.Name, &scope, &zoneID, &segID, &prodID, &acctID, &catID,
		&attrType, &attrValue, &condition,
		&kind, &m.Value, &appliesOn,
		&m.MinQuantity, &m.MaxQuantity, &m.MinOrderValue, &m.MaxOrderValue,
		&validFrom, &validTo, &m.MaxUses, &m.UsedCount,
		&m.Active, &m.Stackable, &m.Exclusive, &m.Priority, &m.MaxDiscountAmount, &m.CreatedAt)
	if err != nil {
		return modifier.Modifier{}, fmt.Errorf("repo: scan modifier: %w", err)
	}
	m.Kind = modifier.Kind(kind)
	m.AppliesOn = modifier.AppliesOn(appliesOn)
	if validFrom != nil {
		m.ValidFrom = *validFrom
	}
	if validTo != nil {
		m.ValidTo = *validTo
	}
	target, err := buildTarget(m.ID, scope, zoneID, segID, prodID, acctID, catID, attrType, attrValue, condition)
	if err != nil {
		return modifier.Modifier{}, err
	}
	m.Target = target
	return m, nil
}

// buildTarget reconstructs the scope-specific target from its columns. A row
// whose scope columns are inconsistent is a data fault, not a request fault.
func buildTarget(id uuid.UUID, scope string, zoneID, segID, prodID, acctID, catID *uuid.UUID, attrType, attrValue string, condition []byte) (modifier.Target, error) {
	switch modifier.Scope(scope) {
	case modifier.ScopeGlobal:
		return modifier.GlobalTarget{}, nil
	case modifier.ScopeZone:
		if zoneID == nil {
			return nil, fmt.Errorf("repo: modifier %s: ZONE scope without zone_id", id)
		}
		return modifier.ZoneTarget{ZoneID: *zoneID}, nil
	case modifier.ScopeSegment:
		if segID == nil {
			return nil, fmt.Errorf("repo: modifier %s: SEGMENT scope without segment_id", id)
		}
		return modifier.SegmentTarget{SegmentID: *segID}, nil
	case modifier.ScopeProduct:
		if prodID == nil {
			return nil, fmt.Errorf("repo: modifier %s: PRODUCT scope without product_id", id)
		}
		return modifier.ProductTarget{ProductID: *prodID}, nil
	case modifier.ScopeAttribute:
		if attrType == "" || attrValue == "" {
			return nil, fmt.Errorf("repo: modifier %s: ATTRIBUTE scope without attribute columns", id)
		}
		return modifier.AttributeTarget{AttributeType: attrType, Value: attrValue}, nil
	case modifier.ScopeCombination:
		cond, err := modifier.DecodeCondition(condition)
		if err != nil {
			return nil, fmt.Errorf("repo: modifier %s: condition: %w", id, err)
		}
		return modifier.CombinationTarget{Condition: cond}, nil
	case modifier.ScopeUser:
		if acctID == nil {
			return nil, fmt.Errorf("repo: modifier %s: USER scope without account_id", id)
		}
		return modifier.UserTarget{AccountID: *acctID}, nil
	case modifier.ScopeCategory:
		if catID == nil {
			return nil, fmt.Errorf("repo: modifier %s: CATEGORY scope without category_id", id)
		}
		return modifier.CategoryTarget{CategoryID: *catID}, nil
	}
	return nil, fmt.Errorf("repo: modifier %s: unknown scope %q", id, scope)
}
