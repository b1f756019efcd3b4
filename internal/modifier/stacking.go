package modifier

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Exclusion reasons recorded on zero-contribution breakdown entries.
const (
	ReasonExclusiveConflict = "EXCLUSIVE_CONFLICT"
	ReasonNotStackable      = "NOT_STACKABLE"
)

// ApplyInput is the priced base the matched modifiers adjust.
type ApplyInput struct {
	UnitPrice decimal.Decimal
	Quantity  int
	// Subtotal is UnitPrice times Quantity before any modifier.
	Subtotal decimal.Decimal
}

// Contribution is one ordered breakdown entry. Excluded modifiers stay in
// the breakdown with a zero amount; they are never silently dropped.
type Contribution struct {
	ModifierID     uuid.UUID       `json:"modifierId"`
	Name           string          `json:"name"`
	Scope          Scope           `json:"scope"`
	Kind           Kind            `json:"kind"`
	Value          decimal.Decimal `json:"value"`
	Amount         decimal.Decimal `json:"amount"`
	Excluded       bool            `json:"excluded,omitempty"`
	ExcludedReason string          `json:"excludedReason,omitempty"`
	// DiscountCapped is set when the decrease was clamped to the modifier's
	// maximum discount amount.
	DiscountCapped bool `json:"discountCapped,omitempty"`
	// ZeroClamped is set when this adjustment drove the running total below
	// zero and was truncated.
	ZeroClamped bool `json:"zeroClamped,omitempty"`
}

// ApplyResult is the cumulative effect of the matched modifiers.
type ApplyResult struct {
	Final         decimal.Decimal
	Contributions []Contribution
	ClampedAtZero bool
}

// Apply orders the matched modifiers and computes their cumulative effect.
//
// Ordering is priority descending; ties break by creation time then id so
// two resolutions of the same pool always agree. If any matched modifier is
// exclusive, the highest-ranked exclusive one applies alone. A non-stackable
// modifier excludes later non-stackable modifiers of the same scope.
func Apply(matched []Modifier, in ApplyInput) ApplyResult {
	ordered := make([]Modifier, len(matched))
	copy(ordered, matched)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	var exclusive *Modifier
	for i := range ordered {
		if ordered[i].Exclusive {
			exclusive = &ordered[i]
			break
		}
	}

	running := in.Subtotal
	result := ApplyResult{Contributions: make([]Contribution, 0, len(ordered))}
	nonStackableSeen := make(map[Scope]bool)

	for _, mod := range ordered {
		entry := Contribution{
			ModifierID: mod.ID,
			Name:       mod.Name,
			Scope:      mod.Scope(),
			Kind:       mod.Kind,
			Value:      mod.Value,
			Amount:     decimal.Zero,
		}
		if exclusive != nil && mod.ID != exclusive.ID {
			entry.Excluded = true
			entry.ExcludedReason = ReasonExclusiveConflict
			result.Contributions = append(result.Contributions, entry)
			continue
		}
		if exclusive == nil && !mod.Stackable {
			if nonStackableSeen[mod.Scope()] {
				entry.Excluded = true
				entry.ExcludedReason = ReasonNotStackable
				result.Contributions = append(result.Contributions, entry)
				continue
			}
			nonStackableSeen[mod.Scope()] = true
		}

		adjustment := adjustmentFor(mod, in, running)
		if mod.Kind.Decrease() {
			if mod.MaxDiscountAmount.IsPositive() && adjustment.GreaterThan(mod.MaxDiscountAmount) {
				adjustment = mod.MaxDiscountAmount.Round(2)
				entry.DiscountCapped = true
			}
			next := running.Sub(adjustment)
			if next.IsNegative() {
				adjustment = running
				next = decimal.Zero
				entry.ZeroClamped = true
				result.ClampedAtZero = true
			}
			running = next
			entry.Amount = adjustment.Neg()
		} else {
			running = running.Add(adjustment)
			entry.Amount = adjustment
		}
		result.Contributions = append(result.Contributions, entry)
	}

	result.Final = running.Round(2)
	return result
}

// adjustmentFor computes the unsigned magnitude of one adjustment, rounded
// to 2 decimals before it is summed.
func adjustmentFor(mod Modifier, in ApplyInput, running decimal.Decimal) decimal.Decimal {
	if !mod.Kind.Percent() {
		return mod.Value.Round(2)
	}
	base := running
	if mod.AppliesOn == OnUnit {
		base = in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	}
	return base.Mul(mod.Value).Div(decimal.NewFromInt(100)).Round(2)
}
