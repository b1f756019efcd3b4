package modifier_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/print24/pricing/internal/modifier"
)

func applyInput(unit string, qty int) modifier.ApplyInput {
	u := decimal.RequireFromString(unit)
	return modifier.ApplyInput{
		UnitPrice: u,
		Quantity:  qty,
		Subtotal:  u.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func pctDec(name string, value int64, priority int) modifier.Modifier {
	return modifier.Modifier{
		ID:        uuid.New(),
		Name:      name,
		Target:    modifier.GlobalTarget{},
		Kind:      modifier.PercentDec,
		Value:     decimal.NewFromInt(value),
		Active:    true,
		Stackable: true,
		Priority:  priority,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStackedPercentDecreasesApplyPriorityDescending(t *testing.T) {
	ten := pctDec("global ten", 10, 1)
	five := pctDec("segment five", 5, 2)
	five.Target = modifier.SegmentTarget{SegmentID: uuid.New()}

	result := modifier.Apply([]modifier.Modifier{ten, five}, applyInput("100.00", 10))

	require.True(t, result.Final.Equal(decimal.RequireFromString("855.00")), "got %s", result.Final)
	require.Len(t, result.Contributions, 2)
	require.Equal(t, "segment five", result.Contributions[0].Name)
	require.True(t, result.Contributions[0].Amount.Equal(decimal.RequireFromString("-50.00")))
	require.Equal(t, "global ten", result.Contributions[1].Name)
	require.True(t, result.Contributions[1].Amount.Equal(decimal.RequireFromString("-95.00")))
}

func TestFlatDecExactAmount(t *testing.T) {
	flat := pctDec("flat", 0, 1)
	flat.Kind = modifier.FlatDec
	flat.Value = decimal.RequireFromString("123.45")

	result := modifier.Apply([]modifier.Modifier{flat}, applyInput("500.00", 2))
	require.True(t, result.Final.Equal(decimal.RequireFromString("876.55")), "got %s", result.Final)
}

func TestMaxDiscountAmountClampsDecrease(t *testing.T) {
	big := pctDec("half off", 50, 1)
	big.MaxDiscountAmount = decimal.NewFromInt(100)

	result := modifier.Apply([]modifier.Modifier{big}, applyInput("100.00", 10))
	require.True(t, result.Final.Equal(decimal.RequireFromString("900.00")), "got %s", result.Final)
	require.True(t, result.Contributions[0].DiscountCapped)
}

func TestRunningTotalClampedAtZero(t *testing.T) {
	flat := pctDec("huge flat", 0, 1)
	flat.Kind = modifier.FlatDec
	flat.Value = decimal.NewFromInt(5000)

	result := modifier.Apply([]modifier.Modifier{flat}, applyInput("100.00", 10))
	require.True(t, result.Final.IsZero())
	require.True(t, result.ClampedAtZero)
	require.True(t, result.Contributions[0].ZeroClamped)
	require.True(t, result.Contributions[0].Amount.Equal(decimal.RequireFromString("-1000.00")))
}

func TestExclusiveSuppressesOthersButKeepsThemInBreakdown(t *testing.T) {
	exclusive := pctDec("exclusive promo", 20, 5)
	exclusive.Exclusive = true
	ordinary := pctDec("ordinary promo", 10, 9)

	result := modifier.Apply([]modifier.Modifier{ordinary, exclusive}, applyInput("100.00", 10))

	require.True(t, result.Final.Equal(decimal.RequireFromString("800.00")), "got %s", result.Final)
	require.Len(t, result.Contributions, 2)

	var excluded, applied *modifier.Contribution
	for i := range result.Contributions {
		if result.Contributions[i].Excluded {
			excluded = &result.Contributions[i]
		} else {
			applied = &result.Contributions[i]
		}
	}
	require.NotNil(t, excluded)
	require.NotNil(t, applied)
	require.Equal(t, "ordinary promo", excluded.Name)
	require.True(t, excluded.Amount.IsZero())
	require.Equal(t, modifier.ReasonExclusiveConflict, excluded.ExcludedReason)
	require.Equal(t, "exclusive promo", applied.Name)
}

func TestTwoExclusivesHighestPriorityWins(t *testing.T) {
	a := pctDec("exclusive a", 20, 5)
	a.Exclusive = true
	b := pctDec("exclusive b", 30, 7)
	b.Exclusive = true

	result := modifier.Apply([]modifier.Modifier{a, b}, applyInput("100.00", 1))
	require.True(t, result.Final.Equal(decimal.RequireFromString("70.00")), "got %s", result.Final)

	// Equal priority ties break by creation time, then id.
	c := pctDec("exclusive c", 40, 7)
	c.Exclusive = true
	c.CreatedAt = b.CreatedAt.Add(time.Hour)
	result = modifier.Apply([]modifier.Modifier{c, b}, applyInput("100.00", 1))
	require.True(t, result.Final.Equal(decimal.RequireFromString("70.00")), "got %s", result.Final)
}

func TestNonStackableExcludesSameScopeOnly(t *testing.T) {
	first := pctDec("zone promo a", 10, 9)
	first.Stackable = false
	first.Target = modifier.ZoneTarget{ZoneID: uuid.New()}
	second := pctDec("zone promo b", 15, 3)
	second.Stackable = false
	second.Target = modifier.ZoneTarget{ZoneID: uuid.New()}
	otherScope := pctDec("segment promo", 5, 1)
	otherScope.Stackable = false
	otherScope.Target = modifier.SegmentTarget{SegmentID: uuid.New()}

	result := modifier.Apply([]modifier.Modifier{first, second, otherScope}, applyInput("100.00", 10))

	// 1000 - 10% = 900, zone promo b excluded, then segment 5% of 900 = 855.
	require.True(t, result.Final.Equal(decimal.RequireFromString("855.00")), "got %s", result.Final)
	require.Len(t, result.Contributions, 3)
	require.Equal(t, "zone promo b", result.Contributions[1].Name)
	require.True(t, result.Contributions[1].Excluded)
	require.Equal(t, modifier.ReasonNotStackable, result.Contributions[1].ExcludedReason)
}

func TestUnitPercentComputesAgainstOriginalUnitPrice(t *testing.T) {
	subtotalDec := pctDec("subtotal ten", 10, 9)
	unitDec := pctDec("unit ten", 10, 1)
	unitDec.AppliesOn = modifier.OnUnit

	result := modifier.Apply([]modifier.Modifier{subtotalDec, unitDec}, applyInput("100.00", 10))

	// Subtotal 1000: -10% = 900; unit modifier still takes 10% of the
	// original 100x10 = 100, not of 900.
	require.True(t, result.Final.Equal(decimal.RequireFromString("800.00")), "got %s", result.Final)
}

func TestIncreaseKindsRaiseTheTotal(t *testing.T) {
	surcharge := pctDec("remote area surcharge", 5, 1)
	surcharge.Kind = modifier.PercentInc
	flat := pctDec("handling", 0, 2)
	flat.Kind = modifier.FlatInc
	flat.Value = decimal.RequireFromString("25.50")

	result := modifier.Apply([]modifier.Modifier{surcharge, flat}, applyInput("100.00", 10))
	// 1000 + 25.50 = 1025.50, then +5% = 1076.78 (rounded per adjustment).
	require.True(t, result.Final.Equal(decimal.RequireFromString("1076.78")), "got %s", result.Final)
}
