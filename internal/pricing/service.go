package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/print24/pricing/internal/catalog"
	"github.com/print24/pricing/internal/common"
	"github.com/print24/pricing/internal/modifier"
	"github.com/print24/pricing/internal/obs"
)

// batchConcurrency bounds parallel item resolutions in a batch request.
const batchConcurrency = 8

// ModifierStore loads candidate modifiers for a resolution. The store may
// over-select (for example, return every live modifier touching the product,
// the segment, or any hierarchy zone); the matcher applies the exact rules.
type ModifierStore interface {
	CandidateModifiers(ctx context.Context, productID uuid.UUID, segmentID uuid.UUID, zoneIDs []uuid.UUID) ([]modifier.Modifier, error)
}

// Service is the price resolution core: given a built context and a product
// request it produces an auditable quote.
type Service struct {
	products  catalog.Store
	modifiers ModifierStore
	matcher   modifier.Matcher
	cache     *QuoteCache

	taxPercent decimal.Decimal
	currency   string

	now    func() time.Time
	logger zerolog.Logger
}

// NewService wires the resolution core. cache may be nil; every resolution
// then recomputes.
func NewService(products catalog.Store, modifiers ModifierStore, cache *QuoteCache, taxPercent decimal.Decimal, currency string, logger zerolog.Logger) *Service {
	s := &Service{
		products:   products,
		modifiers:  modifiers,
		cache:      cache,
		taxPercent: taxPercent,
		currency:   currency,
		now:        time.Now,
		logger:     logger.With().Str("component", "pricing_service").Logger(),
	}
	s.matcher = modifier.Matcher{
		Logger: s.logger,
		OnEvaluatorFault: func(id uuid.UUID, err error) {
			if obs.EvaluatorFaultsTotal != nil {
				obs.EvaluatorFaultsTotal.Inc()
			}
		},
	}
	return s
}

// Resolve prices one product in the given context.
func (s *Service) Resolve(ctx context.Context, pctx Context, req ResolveRequest) (Result, error) {
	started := s.now()
	result, cached, err := s.resolve(ctx, pctx, req)
	s.observe(started, cached, err)
	return result, err
}

func (s *Service) resolve(ctx context.Context, pctx Context, req ResolveRequest) (Result, bool, error) {
	if req.Quantity < 1 {
		return Result{}, false, common.ValidationError("quantity", "quantity must be at least 1", nil)
	}

	fingerprint := ""
	if req.CacheAllowed {
		fingerprint = Fingerprint(pctx, req, s.currency)
		if hit, ok := s.cache.Get(ctx, fingerprint); ok {
			return hit, true, nil
		}
	}

	product, ok, err := s.products.ProductByID(ctx, req.ProductID)
	if err != nil {
		return Result{}, false, common.StoreError("product lookup", err)
	}
	if !ok {
		return Result{}, false, common.NotFoundError("product not found")
	}
	if product.MinQuantity > 0 && req.Quantity < product.MinQuantity {
		return Result{}, false, common.ValidationError("quantity",
			fmt.Sprintf("quantity below product minimum of %d", product.MinQuantity), nil)
	}
	if !product.SellableIn(pctx.Country, pctx.ZoneIDs()) {
		return Result{}, false, common.UnavailableError("product is not available in your location", nil)
	}

	rules, err := s.products.AttributePrices(ctx, req.ProductID)
	if err != nil {
		return Result{}, false, common.StoreError("attribute prices", err)
	}
	unitPrice, deltas := catalog.UnitPrice(product, rules, req.Attributes)
	rawSubtotal := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)

	pool, err := s.modifiers.CandidateModifiers(ctx, req.ProductID, pctx.Segment.ID, pctx.ZoneIDs())
	if err != nil {
		return Result{}, false, common.StoreError("modifier candidates", err)
	}
	now := s.now()
	matched := s.matcher.Match(pool, modifier.MatchContext{
		ProductID:     product.ID,
		CategoryID:    product.CategoryID,
		AccountID:     pctx.AccountID,
		SegmentID:     pctx.Segment.ID,
		SegmentCode:   pctx.Segment.Code,
		SegmentTier:   pctx.Segment.Tier,
		ZoneIDs:       pctx.ZoneIDs(),
		Quantity:      req.Quantity,
		OrderValue:    rawSubtotal,
		Attributes:    req.Attributes,
		Country:       pctx.Country,
		Pincode:       pctx.Pincode,
		Authenticated: pctx.Authenticated,
	}, now)

	applied := modifier.Apply(matched, modifier.ApplyInput{
		UnitPrice: unitPrice,
		Quantity:  req.Quantity,
		Subtotal:  rawSubtotal,
	})
	if obs.ModifiersAppliedPerQuote != nil {
		obs.ModifiersAppliedPerQuote.Observe(float64(len(matched)))
	}

	taxAmount := applied.Final.Mul(s.taxPercent).Div(decimal.NewFromInt(100)).Round(2)
	totalPayable := applied.Final.Add(taxAmount)

	result := Result{
		ProductID: product.ID,
		Quote: Quote{
			BasePrice:        unitPrice,
			Quantity:         req.Quantity,
			Subtotal:         applied.Final,
			TaxPercentage:    s.taxPercent,
			TaxAmount:        taxAmount,
			TotalPayable:     totalPayable,
			Currency:         s.currency,
			AppliedModifiers: applied.Contributions,
		},
		Meta:      buildMeta(pctx),
		Breakdown: Breakdown{
			UnitBasePrice:    product.BasePrice,
			AttributeDeltas:  deltas,
			UnitPrice:        unitPrice,
			RawSubtotal:      rawSubtotal,
			Contributions:    applied.Contributions,
			AdjustedSubtotal: applied.Final,
			TaxAmount:        taxAmount,
			TotalPayable:     totalPayable,
			ClampedAtZero:    applied.ClampedAtZero,
			Timestamp:        now.UTC(),
		},
	}
	if applied.Final.LessThan(rawSubtotal) {
		compareAt := rawSubtotal
		result.Quote.CompareAtPrice = &compareAt
	}

	if req.CacheAllowed {
		s.cache.Set(ctx, fingerprint, result, pctx.Segment.ID, zoneIDPtr(pctx))
	}
	return result, false, nil
}

// ResolveBatch prices each item independently with the shared context. One
// item's failure never aborts its siblings; the failure rides along in the
// item's slot.
func (s *Service) ResolveBatch(ctx context.Context, pctx Context, items []BatchItem) []BatchItemResult {
	if obs.BatchResolutionSize != nil {
		obs.BatchResolutionSize.Observe(float64(len(items)))
	}
	results := make([]BatchItemResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, item := range items {
		g.Go(func() error {
			res, err := s.Resolve(gctx, pctx, ResolveRequest{
				ProductID:    item.ProductID,
				Quantity:     item.Quantity,
				Attributes:   item.Attributes,
				CacheAllowed: true,
			})
			if err != nil {
				results[i] = BatchItemResult{ProductID: item.ProductID, Error: itemError(err)}
				return nil
			}
			results[i] = BatchItemResult{ProductID: item.ProductID, Result: &res}
			return nil
		})
	}
	// Goroutines never return errors; Wait only synchronizes.
	_ = g.Wait()
	return results
}

func (s *Service) observe(started time.Time, cached bool, err error) {
	if obs.PriceResolutionDuration != nil {
		label := "miss"
		if cached {
			label = "hit"
		}
		obs.PriceResolutionDuration.WithLabelValues(label).Observe(float64(s.now().Sub(started).Milliseconds()))
	}
	if obs.PriceResolutionsTotal == nil {
		return
	}
	obs.PriceResolutionsTotal.WithLabelValues(resolutionResult(err)).Inc()
}

func resolutionResult(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, common.ErrProductUnavailable) {
		return "unavailable"
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case common.CodeNotFound:
			return "not_found"
		case common.CodeValidation:
			return "invalid"
		}
	}
	return "error"
}

func itemError(err error) *ItemError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return &ItemError{Code: appErr.Code, Message: appErr.Message}
	}
	return &ItemError{Code: common.CodeInternal, Message: "price resolution failed"}
}

func buildMeta(pctx Context) Meta {
	meta := Meta{
		SegmentCode:   pctx.Segment.Code,
		SegmentName:   pctx.Segment.Name,
		SegmentTier:   pctx.Segment.Tier,
		Detection:     pctx.Detection,
		Authenticated: pctx.Authenticated,
		Hierarchy:     make([]ZoneMeta, 0, len(pctx.Hierarchy)),
	}
	for _, z := range pctx.Hierarchy {
		meta.Hierarchy = append(meta.Hierarchy, ZoneMeta{ID: z.ID, Name: z.Name, Level: z.Level})
	}
	if pctx.Zone != nil {
		id := pctx.Zone.ID
		meta.ZoneID = &id
		meta.ZoneName = pctx.Zone.Name
		meta.ZoneLevel = pctx.Zone.Level
	}
	return meta
}

func zoneIDPtr(pctx Context) *uuid.UUID {
	if pctx.Zone == nil {
		return nil
	}
	id := pctx.Zone.ID
	return &id
}
