package modifier

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SelectedAttribute is one customization choice on the quoted product.
type SelectedAttribute struct {
	AttributeType string
	Value         string
	PricingKey    string
}

// MatchContext carries every context fact scope rules test against.
type MatchContext struct {
	ProductID  uuid.UUID
	CategoryID *uuid.UUID
	AccountID  *uuid.UUID

	SegmentID   uuid.UUID
	SegmentCode string
	SegmentTier int

	// ZoneIDs is the full resolved hierarchy, most specific first. ZONE-scope
	// modifiers match membership at any position.
	ZoneIDs []uuid.UUID

	Quantity   int
	OrderValue decimal.Decimal
	Attributes []SelectedAttribute

	Country       string
	Pincode       string
	Authenticated bool
}

// Facts flattens the context for condition tree evaluation.
func (c MatchContext) Facts() Facts {
	attrs := make(map[string]string, len(c.Attributes))
	for _, a := range c.Attributes {
		attrs[a.AttributeType] = a.Value
	}
	return Facts{
		Quantity:      c.Quantity,
		OrderValue:    c.OrderValue,
		SegmentCode:   c.SegmentCode,
		SegmentTier:   c.SegmentTier,
		Country:       c.Country,
		Pincode:       c.Pincode,
		Authenticated: c.Authenticated,
		Attributes:    attrs,
	}
}

// Matcher filters a modifier pool down to those applicable to a context.
type Matcher struct {
	Logger zerolog.Logger
	// OnEvaluatorFault is invoked when a condition tree fails to evaluate.
	// The faulty modifier is skipped; matching continues.
	OnEvaluatorFault func(modifierID uuid.UUID, err error)
}

// Match returns the modifiers from the pool that are live, inside their
// bounds, and whose scope rule is satisfied by the context. Pool order is
// preserved.
func (m Matcher) Match(pool []Modifier, ctx MatchContext, now time.Time) []Modifier {
	var facts *Facts
	matched := make([]Modifier, 0, len(pool))
	for _, mod := range pool {
		if !mod.Live(now) {
			continue
		}
		if !mod.WithinBounds(ctx.Quantity, ctx.OrderValue) {
			continue
		}
		switch target := mod.Target.(type) {
		case GlobalTarget:
			matched = append(matched, mod)
		case ZoneTarget:
			if containsZone(ctx.ZoneIDs, target.ZoneID) {
				matched = append(matched, mod)
			}
		case SegmentTarget:
			if target.SegmentID == ctx.SegmentID && ctx.SegmentID != uuid.Nil {
				matched = append(matched, mod)
			}
		case ProductTarget:
			if target.ProductID == ctx.ProductID && ctx.ProductID != uuid.Nil {
				matched = append(matched, mod)
			}
		case AttributeTarget:
			if attributeSelected(ctx.Attributes, target) {
				matched = append(matched, mod)
			}
		case CombinationTarget:
			if target.Condition == nil {
				continue
			}
			if facts == nil {
				f := ctx.Facts()
				facts = &f
			}
			ok, err := evaluate(target.Condition, *facts)
			if err != nil {
				m.Logger.Warn().Err(err).Str("modifier_id", mod.ID.String()).Msg("condition evaluation fault, skipping modifier")
				if m.OnEvaluatorFault != nil {
					m.OnEvaluatorFault(mod.ID, err)
				}
				continue
			}
			if ok {
				matched = append(matched, mod)
			}
		case UserTarget:
			if ctx.AccountID != nil && target.AccountID == *ctx.AccountID {
				matched = append(matched, mod)
			}
		case CategoryTarget:
			if ctx.CategoryID != nil && target.CategoryID == *ctx.CategoryID {
				matched = append(matched, mod)
			}
		default:
			// Unrecognized scopes never match.
		}
	}
	return matched
}

// evaluate guards the interpreter so a faulty tree can never take down the
// whole resolution.
func evaluate(c Condition, f Facts) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &EvaluatorFault{Recovered: r}
		}
	}()
	return c.Eval(f)
}

// EvaluatorFault wraps a panic raised while walking a condition tree.
type EvaluatorFault struct {
	Recovered any
}

func (e *EvaluatorFault) Error() string {
	return "condition evaluator fault"
}

func containsZone(hierarchy []uuid.UUID, zoneID uuid.UUID) bool {
	for _, id := range hierarchy {
		if id == zoneID {
			return true
		}
	}
	return false
}

func attributeSelected(selected []SelectedAttribute, target AttributeTarget) bool {
	for _, a := range selected {
		if a.AttributeType == target.AttributeType && a.Value == target.Value {
			return true
		}
	}
	return false
}
