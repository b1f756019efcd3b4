// Package catalog exposes the read-only product facts pricing consumes:
// base price, attribute pricing rules, and saleability constraints.
package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/print24/pricing/internal/modifier"
)

// PricingBehavior selects how an attribute choice changes the unit price.
type PricingBehavior string

const (
	// BehaviorFlat adds a fixed delta to the unit price.
	BehaviorFlat PricingBehavior = "FLAT"
	// BehaviorMultiplier scales the unit price by a factor.
	BehaviorMultiplier PricingBehavior = "MULTIPLIER"
)

// AttributePrice is one admin-configured pricing rule for an attribute value.
type AttributePrice struct {
	AttributeType string
	Value         string
	PricingKey    string
	Behavior      PricingBehavior
	// Amount is the flat delta or the multiplier factor, per Behavior.
	Amount decimal.Decimal
}

// Product carries the pricing-relevant slice of a product.
type Product struct {
	ID         uuid.UUID
	Title      string
	CategoryID *uuid.UUID
	BasePrice  decimal.Decimal
	Active     bool
	MinQuantity int

	// AllowedCountries restricts saleability; empty means everywhere.
	AllowedCountries []string
	// ExcludedZoneIDs blocks sale when any appears in the resolved hierarchy.
	ExcludedZoneIDs []uuid.UUID
}

// Store provides read access to products.
type Store interface {
	ProductByID(ctx context.Context, id uuid.UUID) (Product, bool, error)
	AttributePrices(ctx context.Context, productID uuid.UUID) ([]AttributePrice, error)
}

// SellableIn reports whether the product can be sold in the resolved context.
func (p Product) SellableIn(country string, hierarchy []uuid.UUID) bool {
	if !p.Active {
		return false
	}
	if len(p.AllowedCountries) > 0 {
		found := false
		for _, c := range p.AllowedCountries {
			if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(country)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, excluded := range p.ExcludedZoneIDs {
		for _, z := range hierarchy {
			if z == excluded {
				return false
			}
		}
	}
	return true
}

// AttributeDelta is one attribute's effect on the unit price, kept for the
// breakdown.
type AttributeDelta struct {
	AttributeType string          `json:"attributeType"`
	Value         string          `json:"value"`
	Behavior      PricingBehavior `json:"behavior"`
	Delta         decimal.Decimal `json:"delta"`
}

// UnitPrice computes the per-unit price: base plus the selected attributes'
// deltas. Flat deltas accumulate first, then multipliers scale the result,
// so the outcome does not depend on selection order.
func UnitPrice(p Product, rules []AttributePrice, selected []modifier.SelectedAttribute) (decimal.Decimal, []AttributeDelta) {
	unit := p.BasePrice
	deltas := make([]AttributeDelta, 0, len(selected))

	var multipliers []AttributePrice
	for _, sel := range selected {
		rule, ok := matchRule(rules, sel)
		if !ok {
			continue
		}
		if rule.Behavior == BehaviorMultiplier {
			multipliers = append(multipliers, rule)
			continue
		}
		unit = unit.Add(rule.Amount)
		deltas = append(deltas, AttributeDelta{
			AttributeType: rule.AttributeType,
			Value:         rule.Value,
			Behavior:      BehaviorFlat,
			Delta:         rule.Amount,
		})
	}
	for _, rule := range multipliers {
		scaled := unit.Mul(rule.Amount)
		deltas = append(deltas, AttributeDelta{
			AttributeType: rule.AttributeType,
			Value:         rule.Value,
			Behavior:      BehaviorMultiplier,
			Delta:         scaled.Sub(unit),
		})
		unit = scaled
	}
	return unit.Round(2), deltas
}

func matchRule(rules []AttributePrice, sel modifier.SelectedAttribute) (AttributePrice, bool) {
	if key := strings.TrimSpace(sel.PricingKey); key != "" {
		for _, r := range rules {
			if r.PricingKey == key {
				return r, true
			}
		}
	}
	for _, r := range rules {
		if r.AttributeType == sel.AttributeType && r.Value == sel.Value {
			return r, true
		}
	}
	return AttributePrice{}, false
}
