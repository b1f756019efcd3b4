// Package modifier implements the price modifier pool: matching, stacking,
// and the admin conflict pre-check.
package modifier

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind encodes the direction and shape of a price adjustment. The sign of
// the effect comes from the kind, never from the value.
type Kind string

const (
	PercentInc Kind = "PERCENT_INC"
	PercentDec Kind = "PERCENT_DEC"
	FlatInc    Kind = "FLAT_INC"
	FlatDec    Kind = "FLAT_DEC"
)

// Decrease reports whether the kind reduces the price.
func (k Kind) Decrease() bool { return k == PercentDec || k == FlatDec }

// Percent reports whether the kind is percentage based.
func (k Kind) Percent() bool { return k == PercentInc || k == PercentDec }

// AppliesOn selects the base a percentage modifier computes against.
type AppliesOn string

const (
	// OnSubtotal computes against the running post-adjustment amount.
	OnSubtotal AppliesOn = "SUBTOTAL"
	// OnUnit computes against the original per-unit price.
	OnUnit AppliesOn = "UNIT"
)

// Scope identifies what a modifier targets.
type Scope string

const (
	ScopeGlobal      Scope = "GLOBAL"
	ScopeZone        Scope = "ZONE"
	ScopeSegment     Scope = "SEGMENT"
	ScopeProduct     Scope = "PRODUCT"
	ScopeAttribute   Scope = "ATTRIBUTE"
	ScopeCombination Scope = "COMBINATION"
	ScopeUser        Scope = "USER"
	ScopeCategory    Scope = "CATEGORY"
)

// Target is the scope-specific half of a modifier. Each variant carries only
// the fields its scope needs.
type Target interface {
	Scope() Scope
}

// GlobalTarget matches every context.
type GlobalTarget struct{}

// ZoneTarget matches when the zone appears anywhere in the context hierarchy.
type ZoneTarget struct {
	ZoneID uuid.UUID
}

// SegmentTarget matches the exact segment.
type SegmentTarget struct {
	SegmentID uuid.UUID
}

// ProductTarget matches the exact product.
type ProductTarget struct {
	ProductID uuid.UUID
}

// AttributeTarget matches when any selected attribute shares the type and value.
type AttributeTarget struct {
	AttributeType string
	Value         string
}

// CombinationTarget matches when its condition tree evaluates true.
type CombinationTarget struct {
	Condition Condition
}

// UserTarget matches the exact account.
type UserTarget struct {
	AccountID uuid.UUID
}

// CategoryTarget matches the product's category.
type CategoryTarget struct {
	CategoryID uuid.UUID
}

func (GlobalTarget) Scope() Scope      { return ScopeGlobal }
func (ZoneTarget) Scope() Scope        { return ScopeZone }
func (SegmentTarget) Scope() Scope     { return ScopeSegment }
func (ProductTarget) Scope() Scope     { return ScopeProduct }
func (AttributeTarget) Scope() Scope   { return ScopeAttribute }
func (CombinationTarget) Scope() Scope { return ScopeCombination }
func (UserTarget) Scope() Scope        { return ScopeUser }
func (CategoryTarget) Scope() Scope    { return ScopeCategory }

// Modifier is a rule adjusting price by a percentage or flat amount.
type Modifier struct {
	ID     uuid.UUID
	Name   string
	Target Target

	Kind      Kind
	Value     decimal.Decimal
	AppliesOn AppliesOn

	// Quantity bounds; MaxQuantity 0 means unbounded.
	MinQuantity int
	MaxQuantity int
	// Order value bounds on the pre-modifier subtotal; zero max means unbounded.
	MinOrderValue decimal.Decimal
	MaxOrderValue decimal.Decimal

	// Validity window; zero times leave the corresponding edge open. ValidTo
	// is inclusive through the end of its day.
	ValidFrom time.Time
	ValidTo   time.Time

	// Usage caps; MaxUses 0 means unlimited.
	MaxUses   int
	UsedCount int

	Active    bool
	Stackable bool
	Exclusive bool
	Priority  int

	// MaxDiscountAmount caps the magnitude of a single decrease adjustment.
	// Zero means no cap.
	MaxDiscountAmount decimal.Decimal

	CreatedAt time.Time
}

// Scope returns the scope of the modifier's target, or empty when the target
// is absent.
func (m Modifier) Scope() Scope {
	if m.Target == nil {
		return ""
	}
	return m.Target.Scope()
}

// Live reports whether the modifier is active, inside its validity window,
// and under its usage cap at the given instant.
func (m Modifier) Live(now time.Time) bool {
	if !m.Active {
		return false
	}
	if !m.ValidFrom.IsZero() && now.Before(m.ValidFrom) {
		return false
	}
	if !m.ValidTo.IsZero() && now.After(endOfDay(m.ValidTo)) {
		return false
	}
	if m.MaxUses > 0 && m.UsedCount >= m.MaxUses {
		return false
	}
	return true
}

// WithinBounds reports whether the quantity and pre-modifier order value fall
// inside the modifier's bounds.
func (m Modifier) WithinBounds(quantity int, orderValue decimal.Decimal) bool {
	if m.MinQuantity > 0 && quantity < m.MinQuantity {
		return false
	}
	if m.MaxQuantity > 0 && quantity > m.MaxQuantity {
		return false
	}
	if m.MinOrderValue.IsPositive() && orderValue.LessThan(m.MinOrderValue) {
		return false
	}
	if m.MaxOrderValue.IsPositive() && orderValue.GreaterThan(m.MaxOrderValue) {
		return false
	}
	return true
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
