package catalog_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/print24/pricing/internal/catalog"
	"github.com/print24/pricing/internal/modifier"
)

func TestUnitPriceFlatThenMultiplier(t *testing.T) {
	product := catalog.Product{BasePrice: decimal.RequireFromString("100.00"), Active: true}
	rules := []catalog.AttributePrice{
		{AttributeType: "paper", Value: "premium", PricingKey: "paper:premium", Behavior: catalog.BehaviorFlat, Amount: decimal.RequireFromString("20.00")},
		{AttributeType: "size", Value: "A3", PricingKey: "size:a3", Behavior: catalog.BehaviorMultiplier, Amount: decimal.RequireFromString("1.5")},
	}
	selected := []modifier.SelectedAttribute{
		{AttributeType: "size", Value: "A3", PricingKey: "size:a3"},
		{AttributeType: "paper", Value: "premium", PricingKey: "paper:premium"},
	}

	unit, deltas := catalog.UnitPrice(product, rules, selected)
	// Flat first regardless of selection order: (100+20)*1.5 = 180.
	require.True(t, unit.Equal(decimal.RequireFromString("180.00")), "got %s", unit)
	require.Len(t, deltas, 2)
	require.Equal(t, catalog.BehaviorFlat, deltas[0].Behavior)
	require.True(t, deltas[1].Delta.Equal(decimal.RequireFromString("60.00")))
}

func TestUnitPriceUnknownAttributeIgnored(t *testing.T) {
	product := catalog.Product{BasePrice: decimal.RequireFromString("50.00"), Active: true}
	unit, deltas := catalog.UnitPrice(product, nil, []modifier.SelectedAttribute{
		{AttributeType: "finish", Value: "gloss"},
	})
	require.True(t, unit.Equal(decimal.RequireFromString("50.00")))
	require.Empty(t, deltas)
}

func TestUnitPriceFallsBackToTypeValueMatch(t *testing.T) {
	product := catalog.Product{BasePrice: decimal.RequireFromString("10.00"), Active: true}
	rules := []catalog.AttributePrice{
		{AttributeType: "finish", Value: "gloss", Behavior: catalog.BehaviorFlat, Amount: decimal.RequireFromString("2.50")},
	}
	unit, _ := catalog.UnitPrice(product, rules, []modifier.SelectedAttribute{
		{AttributeType: "finish", Value: "gloss"},
	})
	require.True(t, unit.Equal(decimal.RequireFromString("12.50")))
}

func TestSellableIn(t *testing.T) {
	blocked := uuid.New()
	product := catalog.Product{
		Active:           true,
		AllowedCountries: []string{"IN", "AE"},
		ExcludedZoneIDs:  []uuid.UUID{blocked},
	}
	require.True(t, product.SellableIn("in", []uuid.UUID{uuid.New()}))
	require.False(t, product.SellableIn("US", nil))
	require.False(t, product.SellableIn("IN", []uuid.UUID{blocked}))

	inactive := catalog.Product{}
	require.False(t, inactive.SellableIn("IN", nil))
}
