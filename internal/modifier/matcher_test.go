package modifier_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/print24/pricing/internal/modifier"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func liveModifier(name string, target modifier.Target) modifier.Modifier {
	return modifier.Modifier{
		ID:        uuid.New(),
		Name:      name,
		Target:    target,
		Kind:      modifier.PercentDec,
		Value:     decimal.NewFromInt(10),
		Active:    true,
		Stackable: true,
		CreatedAt: now.Add(-24 * time.Hour),
	}
}

func baseContext() modifier.MatchContext {
	return modifier.MatchContext{
		ProductID:   uuid.New(),
		SegmentID:   uuid.New(),
		SegmentCode: "RETAIL",
		Quantity:    10,
		OrderValue:  decimal.NewFromInt(1000),
		Country:     "IN",
		Pincode:     "400001",
	}
}

func TestGlobalMatchesEmptyHierarchy(t *testing.T) {
	m := modifier.Matcher{Logger: zerolog.Nop()}
	ctx := baseContext()
	ctx.ZoneIDs = nil

	matched := m.Match([]modifier.Modifier{liveModifier("global", modifier.GlobalTarget{})}, ctx, now)
	require.Len(t, matched, 1)
}

func TestZoneMatchesAnyHierarchyPosition(t *testing.T) {
	m := modifier.Matcher{Logger: zerolog.Nop()}
	stateZone := uuid.New()
	ctx := baseContext()
	ctx.ZoneIDs = []uuid.UUID{uuid.New(), stateZone, uuid.New()}

	mod := liveModifier("state promo", modifier.ZoneTarget{ZoneID: stateZone})
	matched := m.Match([]modifier.Modifier{mod}, ctx, now)
	require.Len(t, matched, 1)

	ctx.ZoneIDs = []uuid.UUID{uuid.New()}
	matched = m.Match([]modifier.Modifier{mod}, ctx, now)
	require.Empty(t, matched)
}

func TestLivenessAndBounds(t *testing.T) {
	m := modifier.Matcher{Logger: zerolog.Nop()}
	ctx := baseContext()

	inactive := liveModifier("inactive", modifier.GlobalTarget{})
	inactive.Active = false

	expired := liveModifier("expired", modifier.GlobalTarget{})
	expired.ValidTo = now.Add(-48 * time.Hour)

	notStarted := liveModifier("future", modifier.GlobalTarget{})
	notStarted.ValidFrom = now.Add(48 * time.Hour)

	usedUp := liveModifier("used up", modifier.GlobalTarget{})
	usedUp.MaxUses = 5
	usedUp.UsedCount = 5

	tooSmall := liveModifier("min qty", modifier.GlobalTarget{})
	tooSmall.MinQuantity = 50

	tooBig := liveModifier("max order", modifier.GlobalTarget{})
	tooBig.MaxOrderValue = decimal.NewFromInt(500)

	endOfDayOK := liveModifier("ends today", modifier.GlobalTarget{})
	endOfDayOK.ValidTo = now.Truncate(24 * time.Hour)

	pool := []modifier.Modifier{inactive, expired, notStarted, usedUp, tooSmall, tooBig, endOfDayOK}
	matched := m.Match(pool, ctx, now)
	require.Len(t, matched, 1)
	require.Equal(t, "ends today", matched[0].Name)
}

func TestSegmentProductUserCategoryExactMatch(t *testing.T) {
	m := modifier.Matcher{Logger: zerolog.Nop()}
	ctx := baseContext()
	accountID := uuid.New()
	categoryID := uuid.New()
	ctx.AccountID = &accountID
	ctx.CategoryID = &categoryID

	pool := []modifier.Modifier{
		liveModifier("segment hit", modifier.SegmentTarget{SegmentID: ctx.SegmentID}),
		liveModifier("segment miss", modifier.SegmentTarget{SegmentID: uuid.New()}),
		liveModifier("product hit", modifier.ProductTarget{ProductID: ctx.ProductID}),
		liveModifier("user hit", modifier.UserTarget{AccountID: accountID}),
		liveModifier("category hit", modifier.CategoryTarget{CategoryID: categoryID}),
		liveModifier("no target", nil),
	}
	matched := m.Match(pool, ctx, now)
	names := make([]string, 0, len(matched))
	for _, mod := range matched {
		names = append(names, mod.Name)
	}
	require.Equal(t, []string{"segment hit", "product hit", "user hit", "category hit"}, names)
}

func TestAttributeMatch(t *testing.T) {
	m := modifier.Matcher{Logger: zerolog.Nop()}
	ctx := baseContext()
	ctx.Attributes = []modifier.SelectedAttribute{
		{AttributeType: "paper", Value: "matte", PricingKey: "paper:matte"},
	}
	pool := []modifier.Modifier{
		liveModifier("matte promo", modifier.AttributeTarget{AttributeType: "paper", Value: "matte"}),
		liveModifier("gloss promo", modifier.AttributeTarget{AttributeType: "paper", Value: "gloss"}),
	}
	matched := m.Match(pool, ctx, now)
	require.Len(t, matched, 1)
	require.Equal(t, "matte promo", matched[0].Name)
}

func TestCombinationFaultSkipsOnlyThatModifier(t *testing.T) {
	var faulted []uuid.UUID
	m := modifier.Matcher{
		Logger:           zerolog.Nop(),
		OnEvaluatorFault: func(id uuid.UUID, _ error) { faulted = append(faulted, id) },
	}
	ctx := baseContext()

	good := liveModifier("good combo", modifier.CombinationTarget{
		Condition: modifier.Cmp{Field: "quantity", Op: "gte", Value: "5"},
	})
	bad := liveModifier("bad combo", modifier.CombinationTarget{
		Condition: modifier.Cmp{Field: "segment", Op: "gt", Value: "10"},
	})
	noTree := liveModifier("no tree", modifier.CombinationTarget{})

	matched := m.Match([]modifier.Modifier{bad, good, noTree}, ctx, now)
	require.Len(t, matched, 1)
	require.Equal(t, "good combo", matched[0].Name)
	require.Equal(t, []uuid.UUID{bad.ID}, faulted)
}
