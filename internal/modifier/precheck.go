package modifier

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PrecheckInput describes a proposed modifier change plus the context it
// would apply in.
type PrecheckInput struct {
	Proposed Modifier
	// Pool is the current live modifier pool for the affected product/zones.
	Pool []Modifier
	// Context is a synthetic match context describing where the proposal
	// applies (product, zone hierarchy containing the target zone, segment).
	Context MatchContext
	// Sample is the reference base the effects are previewed against.
	Sample ApplyInput
}

// ConflictEntry reports one live modifier that would apply alongside the
// proposal.
type ConflictEntry struct {
	ModifierID      uuid.UUID       `json:"modifierId"`
	Name            string          `json:"name"`
	Scope           Scope           `json:"scope"`
	Kind            Kind            `json:"kind"`
	Value           decimal.Decimal `json:"value"`
	Priority        int             `json:"priority"`
	Exclusive       bool            `json:"exclusive"`
	Stackable       bool            `json:"stackable"`
	ValidityOverlap bool            `json:"validityOverlap"`
	// CurrentEffect is the signed amount this modifier alone contributes to
	// the sample base today.
	CurrentEffect decimal.Decimal `json:"currentEffect"`
}

// ConflictReport previews the combined effect of a proposed change. It is
// advisory only and never blocks the save.
type ConflictReport struct {
	Conflicts []ConflictEntry `json:"conflicts"`
	// Current is the sample priced with today's pool.
	Current ApplyResult `json:"current"`
	// WithProposal is the sample priced with the proposal added to the pool.
	WithProposal ApplyResult `json:"withProposal"`
}

// Precheck finds live modifiers overlapping the proposal and previews their
// combined effect. It reuses Match so the preview agrees with live pricing
// behavior exactly.
func (m Matcher) Precheck(in PrecheckInput, now time.Time) ConflictReport {
	matched := m.Match(in.Pool, in.Context, now)

	report := ConflictReport{
		Conflicts: make([]ConflictEntry, 0, len(matched)),
		Current:   Apply(matched, in.Sample),
	}
	for _, mod := range matched {
		if mod.ID == in.Proposed.ID {
			// Editing an existing modifier; its previous version is not a
			// conflict with itself.
			continue
		}
		standalone := Apply([]Modifier{mod}, in.Sample)
		effect := standalone.Final.Sub(in.Sample.Subtotal)
		report.Conflicts = append(report.Conflicts, ConflictEntry{
			ModifierID:      mod.ID,
			Name:            mod.Name,
			Scope:           mod.Scope(),
			Kind:            mod.Kind,
			Value:           mod.Value,
			Priority:        mod.Priority,
			Exclusive:       mod.Exclusive,
			Stackable:       mod.Stackable,
			ValidityOverlap: windowsOverlap(in.Proposed, mod),
			CurrentEffect:   effect,
		})
	}

	combined := make([]Modifier, 0, len(matched)+1)
	for _, mod := range matched {
		if mod.ID == in.Proposed.ID {
			continue
		}
		combined = append(combined, mod)
	}
	combined = append(combined, in.Proposed)
	report.WithProposal = Apply(combined, in.Sample)
	return report
}

// windowsOverlap reports whether two validity windows intersect. Zero edges
// are open ended.
func windowsOverlap(a, b Modifier) bool {
	aFrom, aTo := window(a)
	bFrom, bTo := window(b)
	return !aFrom.After(bTo) && !bFrom.After(aTo)
}

func window(m Modifier) (time.Time, time.Time) {
	from := m.ValidFrom
	if from.IsZero() {
		from = time.Time{}
	}
	to := endOfDay(m.ValidTo)
	if m.ValidTo.IsZero() {
		to = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	}
	return from, to
}
