package pricing_test

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/print24/pricing/internal/catalog"
	"github.com/print24/pricing/internal/common"
	"github.com/print24/pricing/internal/geo"
	"github.com/print24/pricing/internal/modifier"
	"github.com/print24/pricing/internal/pricing"
	"github.com/print24/pricing/internal/segment"
)

type stubProducts struct {
	products map[uuid.UUID]catalog.Product
	rules    map[uuid.UUID][]catalog.AttributePrice
}

func (s *stubProducts) ProductByID(_ context.Context, id uuid.UUID) (catalog.Product, bool, error) {
	p, ok := s.products[id]
	return p, ok, nil
}

func (s *stubProducts) AttributePrices(_ context.Context, id uuid.UUID) ([]catalog.AttributePrice, error) {
	return s.rules[id], nil
}

type stubModifiers struct {
	pool []modifier.Modifier
	err  error
}

func (s *stubModifiers) CandidateModifiers(context.Context, uuid.UUID, uuid.UUID, []uuid.UUID) ([]modifier.Modifier, error) {
	return s.pool, s.err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func retailContext() pricing.Context {
	zone := geo.Zone{ID: uuid.New(), Name: "Delhi NCR", Level: geo.LevelCity}
	return pricing.Context{
		Segment:   segment.Segment{ID: uuid.New(), Code: "RETAIL", Name: "Retail", Tier: 1},
		Pincode:   "110001",
		Country:   "IN",
		Detection: pricing.DetectDefault,
		Zone:      &zone,
		Hierarchy: []geo.Zone{zone},
	}
}

func percentOff(name string, value string, priority int) modifier.Modifier {
	return modifier.Modifier{
		ID:        uuid.New(),
		Name:      name,
		Target:    modifier.GlobalTarget{},
		Kind:      modifier.PercentDec,
		Value:     dec(value),
		AppliesOn: modifier.OnSubtotal,
		Active:    true,
		Stackable: true,
		Priority:  priority,
	}
}

func newService(products *stubProducts, mods *stubModifiers, cache *pricing.QuoteCache) *pricing.Service {
	return pricing.NewService(products, mods, cache, dec("18"), "INR", zerolog.Nop())
}

func TestResolveStackedDiscountsWithTax(t *testing.T) {
	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]catalog.Product{
		productID: {ID: productID, BasePrice: dec("100"), Active: true},
	}}
	mods := &stubModifiers{pool: []modifier.Modifier{
		percentOff("seasonal 5%", "5", 10),
		percentOff("volume 10%", "10", 5),
	}}
	svc := newService(products, mods, nil)

	res, err := svc.Resolve(context.Background(), retailContext(), pricing.ResolveRequest{
		ProductID: productID,
		Quantity:  10,
	})
	require.NoError(t, err)

	require.True(t, res.Breakdown.RawSubtotal.Equal(dec("1000")), "raw subtotal %s", res.Breakdown.RawSubtotal)
	require.True(t, res.Quote.Subtotal.Equal(dec("855")), "adjusted subtotal %s", res.Quote.Subtotal)
	require.True(t, res.Quote.TaxAmount.Equal(dec("153.90")), "tax %s", res.Quote.TaxAmount)
	require.True(t, res.Quote.TotalPayable.Equal(dec("1008.90")), "total %s", res.Quote.TotalPayable)

	require.NotNil(t, res.Quote.CompareAtPrice)
	require.True(t, res.Quote.CompareAtPrice.Equal(dec("1000")))
	require.Len(t, res.Quote.AppliedModifiers, 2)
	require.Equal(t, "seasonal 5%", res.Quote.AppliedModifiers[0].Name)
}

func TestResolveUnknownProduct(t *testing.T) {
	svc := newService(&stubProducts{products: map[uuid.UUID]catalog.Product{}}, &stubModifiers{}, nil)

	_, err := svc.Resolve(context.Background(), retailContext(), pricing.ResolveRequest{
		ProductID: uuid.New(),
		Quantity:  1,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeNotFound, appErr.Code)
}

func TestResolveUnavailableInCountry(t *testing.T) {
	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]catalog.Product{
		productID: {ID: productID, BasePrice: dec("100"), Active: true, AllowedCountries: []string{"US"}},
	}}
	svc := newService(products, &stubModifiers{}, nil)

	_, err := svc.Resolve(context.Background(), retailContext(), pricing.ResolveRequest{
		ProductID: productID,
		Quantity:  1,
	})
	require.ErrorIs(t, err, common.ErrProductUnavailable)
}

func TestResolveBelowMinimumQuantity(t *testing.T) {
	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]catalog.Product{
		productID: {ID: productID, BasePrice: dec("100"), Active: true, MinQuantity: 50},
	}}
	svc := newService(products, &stubModifiers{}, nil)

	_, err := svc.Resolve(context.Background(), retailContext(), pricing.ResolveRequest{
		ProductID: productID,
		Quantity:  10,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestResolveAttributeDeltas(t *testing.T) {
	productID := uuid.New()
	products := &stubProducts{
		products: map[uuid.UUID]catalog.Product{
			productID: {ID: productID, BasePrice: dec("100"), Active: true},
		},
		rules: map[uuid.UUID][]catalog.AttributePrice{
			productID: {
				{AttributeType: "paper", Value: "premium", Behavior: catalog.BehaviorFlat, Amount: dec("25.50")},
			},
		},
	}
	svc := newService(products, &stubModifiers{}, nil)

	res, err := svc.Resolve(context.Background(), retailContext(), pricing.ResolveRequest{
		ProductID:  productID,
		Quantity:   2,
		Attributes: []modifier.SelectedAttribute{{AttributeType: "paper", Value: "premium"}},
	})
	require.NoError(t, err)
	require.True(t, res.Quote.BasePrice.Equal(dec("125.50")), "unit price %s", res.Quote.BasePrice)
	require.True(t, res.Breakdown.RawSubtotal.Equal(dec("251")), "raw subtotal %s", res.Breakdown.RawSubtotal)
	require.Len(t, res.Breakdown.AttributeDeltas, 1)
	require.Nil(t, res.Quote.CompareAtPrice)
}

func TestResolveServesFromCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	cache := pricing.NewQuoteCache(client, 0, zerolog.Nop(), nil)

	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]catalog.Product{
		productID: {ID: productID, BasePrice: dec("100"), Active: true},
	}}
	svc := newService(products, &stubModifiers{}, cache)

	pctx := retailContext()
	req := pricing.ResolveRequest{ProductID: productID, Quantity: 2, CacheAllowed: true}

	first, err := svc.Resolve(context.Background(), pctx, req)
	require.NoError(t, err)

	// A base price change is invisible until the cache is invalidated.
	p := products.products[productID]
	p.BasePrice = dec("200")
	products.products[productID] = p

	second, err := svc.Resolve(context.Background(), pctx, req)
	require.NoError(t, err)
	require.True(t, second.Quote.Subtotal.Equal(first.Quote.Subtotal))

	require.NoError(t, cache.InvalidateProduct(context.Background(), productID))

	third, err := svc.Resolve(context.Background(), pctx, req)
	require.NoError(t, err)
	require.True(t, third.Quote.Subtotal.Equal(dec("400")), "post-invalidation subtotal %s", third.Quote.Subtotal)
}

func TestResolveBypassesCacheWhenDisallowed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	cache := pricing.NewQuoteCache(client, 0, zerolog.Nop(), nil)

	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]catalog.Product{
		productID: {ID: productID, BasePrice: dec("100"), Active: true},
	}}
	svc := newService(products, &stubModifiers{}, cache)

	pctx := retailContext()
	_, err = svc.Resolve(context.Background(), pctx, pricing.ResolveRequest{ProductID: productID, Quantity: 1})
	require.NoError(t, err)

	p := products.products[productID]
	p.BasePrice = dec("200")
	products.products[productID] = p

	res, err := svc.Resolve(context.Background(), pctx, pricing.ResolveRequest{ProductID: productID, Quantity: 1})
	require.NoError(t, err)
	require.True(t, res.Quote.Subtotal.Equal(dec("200")))
}

func TestResolveBatchIsolatesFailures(t *testing.T) {
	goodID := uuid.New()
	blockedID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]catalog.Product{
		goodID:    {ID: goodID, BasePrice: dec("50"), Active: true},
		blockedID: {ID: blockedID, BasePrice: dec("50"), Active: true, AllowedCountries: []string{"US"}},
	}}
	svc := newService(products, &stubModifiers{}, nil)

	results := svc.ResolveBatch(context.Background(), retailContext(), []pricing.BatchItem{
		{ProductID: goodID, Quantity: 2},
		{ProductID: blockedID, Quantity: 1},
		{ProductID: uuid.New(), Quantity: 1},
	})
	require.Len(t, results, 3)

	require.NotNil(t, results[0].Result)
	require.Nil(t, results[0].Error)
	require.True(t, results[0].Result.Quote.Subtotal.Equal(dec("100")))

	require.Nil(t, results[1].Result)
	require.Equal(t, common.CodeProductUnavailable, results[1].Error.Code)

	require.Nil(t, results[2].Result)
	require.Equal(t, common.CodeNotFound, results[2].Error.Code)
}

func TestResolveStoreFaultSurfaces(t *testing.T) {
	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]catalog.Product{
		productID: {ID: productID, BasePrice: dec("100"), Active: true},
	}}
	mods := &stubModifiers{err: errors.New("connection refused")}
	svc := newService(products, mods, nil)

	_, err := svc.Resolve(context.Background(), retailContext(), pricing.ResolveRequest{
		ProductID: productID,
		Quantity:  1,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeStoreFault, appErr.Code)
}
