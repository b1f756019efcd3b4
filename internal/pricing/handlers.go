package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/print24/pricing/internal/account"
	"github.com/print24/pricing/internal/common"
	"github.com/print24/pricing/internal/geoip"
	"github.com/print24/pricing/internal/modifier"
	"github.com/print24/pricing/internal/obs"
)

// maxBatchItems bounds one batch quote request.
const maxBatchItems = 50

// AdminStore loads the full live pool for the conflict pre-check. Unlike the
// resolver's candidate query it is not narrowed to one product.
type AdminStore interface {
	LiveModifiers(ctx context.Context) ([]modifier.Modifier, error)
}

// Handler exposes the pricing engine over HTTP.
type Handler struct {
	Svc      *Service
	Builder  *Builder
	Accounts account.Store
	Tokens   account.TokenParser
	Admin    AdminStore
	Cache    *QuoteCache
	Validate *validator.Validate
	Logger   zerolog.Logger

	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type attributeDTO struct {
	AttributeType string `json:"attributeType" validate:"required"`
	Value         string `json:"value" validate:"required"`
	PricingKey    string `json:"pricingKey"`
}

type locationDTO struct {
	Pincode string `json:"pincode"`
	Country string `json:"country" validate:"omitempty,len=2"`
	Region  string `json:"region"`
}

type quoteRequest struct {
	ProductID  uuid.UUID      `json:"productId" validate:"required"`
	Quantity   int            `json:"quantity" validate:"required,min=1"`
	Attributes []attributeDTO `json:"attributes" validate:"omitempty,dive"`
	Location   *locationDTO   `json:"location"`
	// NoCache forces a recompute; the fresh result is still cached.
	NoCache bool `json:"noCache"`
}

type batchQuoteRequest struct {
	Items    []batchItemDTO `json:"items" validate:"required,min=1,max=50,dive"`
	Location *locationDTO   `json:"location"`
}

type batchItemDTO struct {
	ProductID  uuid.UUID      `json:"productId" validate:"required"`
	Quantity   int            `json:"quantity" validate:"required,min=1"`
	Attributes []attributeDTO `json:"attributes" validate:"omitempty,dive"`
}

// Quote prices a single product for the caller's resolved context.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request", validationDetails(err))
		return
	}

	pctx, err := h.buildContext(r, req.Location)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Svc.Resolve(r.Context(), pctx, ResolveRequest{
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		Attributes:   toSelected(req.Attributes),
		CacheAllowed: !req.NoCache,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// BatchQuote prices several products in one shared context.
func (h *Handler) BatchQuote(w http.ResponseWriter, r *http.Request) {
	var req batchQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request", validationDetails(err))
		return
	}
	if len(req.Items) > maxBatchItems {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "too many items", nil)
		return
	}

	pctx, err := h.buildContext(r, req.Location)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	items := make([]BatchItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, BatchItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			Attributes: toSelected(it.Attributes),
		})
	}
	results := h.Svc.ResolveBatch(r.Context(), pctx, items)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"items": results,
		"meta":  buildMeta(pctx),
	}})
}

// buildContext resolves the caller's account (guests are fine) and location
// hints into the canonical pricing context.
func (h *Handler) buildContext(r *http.Request, loc *locationDTO) (Context, error) {
	var acct *account.Account
	accountID, err := h.Tokens.AccountID(r, h.now())
	switch {
	case err == nil:
		found, ok, lookupErr := h.Accounts.AccountByID(r.Context(), accountID)
		if lookupErr != nil {
			return Context{}, common.StoreError("account lookup", lookupErr)
		}
		if ok {
			acct = &found
		}
	case errors.Is(err, account.ErrNoToken):
		// Guest pricing.
	default:
		// Invalid token prices as guest rather than failing a public read.
		h.Logger.Debug().Err(err).Msg("bearer token rejected, pricing as guest")
	}

	hint := LocationHint{IP: geoip.ClientIP(r)}
	if loc != nil {
		hint.Pincode = loc.Pincode
		hint.Country = loc.Country
		hint.Region = loc.Region
	}
	return h.Builder.Build(r.Context(), acct, hint)
}

func toSelected(attrs []attributeDTO) []modifier.SelectedAttribute {
	out := make([]modifier.SelectedAttribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, modifier.SelectedAttribute{
			AttributeType: a.AttributeType,
			Value:         a.Value,
			PricingKey:    a.PricingKey,
		})
	}
	return out
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}

type precheckRequest struct {
	Proposed proposedModifierDTO `json:"proposed" validate:"required"`
	Sample   precheckSampleDTO   `json:"sample" validate:"required"`
}

type proposedModifierDTO struct {
	ID    *uuid.UUID `json:"id"`
	Name  string     `json:"name" validate:"required"`
	Scope string     `json:"scope" validate:"required,oneof=GLOBAL ZONE SEGMENT PRODUCT ATTRIBUTE COMBINATION USER CATEGORY"`

	ZoneID        *uuid.UUID      `json:"zoneId"`
	SegmentID     *uuid.UUID      `json:"segmentId"`
	ProductID     *uuid.UUID      `json:"productId"`
	AccountID     *uuid.UUID      `json:"accountId"`
	CategoryID    *uuid.UUID      `json:"categoryId"`
	AttributeType string          `json:"attributeType"`
	AttributeVal  string          `json:"attributeValue"`
	Condition     json.RawMessage `json:"condition"`

	Kind      string          `json:"kind" validate:"required,oneof=PERCENT_INC PERCENT_DEC FLAT_INC FLAT_DEC"`
	Value     decimal.Decimal `json:"value" validate:"required"`
	AppliesOn string          `json:"appliesOn" validate:"omitempty,oneof=SUBTOTAL UNIT"`

	Priority  int  `json:"priority"`
	Stackable bool `json:"stackable"`
	Exclusive bool `json:"exclusive"`

	ValidFrom *time.Time `json:"validFrom"`
	ValidTo   *time.Time `json:"validTo"`

	MaxDiscountAmount decimal.Decimal `json:"maxDiscountAmount"`
}

type precheckSampleDTO struct {
	ProductID  uuid.UUID       `json:"productId" validate:"required"`
	CategoryID *uuid.UUID      `json:"categoryId"`
	SegmentID  *uuid.UUID      `json:"segmentId"`
	ZoneIDs    []uuid.UUID     `json:"zoneIds"`
	Quantity   int             `json:"quantity" validate:"required,min=1"`
	UnitPrice  decimal.Decimal `json:"unitPrice" validate:"required"`
	Country    string          `json:"country"`
	Pincode    string          `json:"pincode"`
}

// Precheck previews how a proposed modifier would combine with the live
// pool. It is advisory; admins can still save a conflicting modifier.
func (h *Handler) Precheck(w http.ResponseWriter, r *http.Request) {
	var req precheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request", validationDetails(err))
		return
	}

	proposed, err := req.Proposed.toModifier()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	pool, err := h.Admin.LiveModifiers(r.Context())
	if err != nil {
		common.WriteError(w, common.StoreError("live modifiers", err))
		return
	}

	sample := req.Sample
	subtotal := sample.UnitPrice.Mul(decimal.NewFromInt(int64(sample.Quantity))).Round(2)
	mctx := modifier.MatchContext{
		ProductID:  sample.ProductID,
		CategoryID: sample.CategoryID,
		ZoneIDs:    sample.ZoneIDs,
		Quantity:   sample.Quantity,
		OrderValue: subtotal,
		Country:    sample.Country,
		Pincode:    sample.Pincode,
	}
	if sample.SegmentID != nil {
		mctx.SegmentID = *sample.SegmentID
	}
	report := h.Svc.matcher.Precheck(modifier.PrecheckInput{
		Proposed: proposed,
		Pool:     pool,
		Context:  mctx,
		Sample: modifier.ApplyInput{
			UnitPrice: sample.UnitPrice,
			Quantity:  sample.Quantity,
			Subtotal:  subtotal,
		},
	}, h.now())
	common.JSON(w, http.StatusOK, map[string]any{"data": report})
}

func (d proposedModifierDTO) toModifier() (modifier.Modifier, error) {
	target, err := d.toTarget()
	if err != nil {
		return modifier.Modifier{}, err
	}
	m := modifier.Modifier{
		Name:              d.Name,
		Target:            target,
		Kind:              modifier.Kind(d.Kind),
		Value:             d.Value,
		AppliesOn:         modifier.OnSubtotal,
		Priority:          d.Priority,
		Stackable:         d.Stackable,
		Exclusive:         d.Exclusive,
		Active:            true,
		MaxDiscountAmount: d.MaxDiscountAmount,
	}
	if d.ID != nil {
		m.ID = *d.ID
	}
	if d.AppliesOn != "" {
		m.AppliesOn = modifier.AppliesOn(d.AppliesOn)
	}
	if d.ValidFrom != nil {
		m.ValidFrom = *d.ValidFrom
	}
	if d.ValidTo != nil {
		m.ValidTo = *d.ValidTo
	}
	return m, nil
}

func (d proposedModifierDTO) toTarget() (modifier.Target, error) {
	switch modifier.Scope(d.Scope) {
	case modifier.ScopeGlobal:
		return modifier.GlobalTarget{}, nil
	case modifier.ScopeZone:
		if d.ZoneID == nil {
			return nil, common.ValidationError("zoneId", "zoneId is required for ZONE scope", nil)
		}
		return modifier.ZoneTarget{ZoneID: *d.ZoneID}, nil
	case modifier.ScopeSegment:
		if d.SegmentID == nil {
			return nil, common.ValidationError("segmentId", "segmentId is required for SEGMENT scope", nil)
		}
		return modifier.SegmentTarget{SegmentID: *d.SegmentID}, nil
	case modifier.ScopeProduct:
		if d.ProductID == nil {
			return nil, common.ValidationError("productId", "productId is required for PRODUCT scope", nil)
		}
		return modifier.ProductTarget{ProductID: *d.ProductID}, nil
	case modifier.ScopeAttribute:
		if d.AttributeType == "" || d.AttributeVal == "" {
			return nil, common.ValidationError("attributeType", "attributeType and attributeValue are required for ATTRIBUTE scope", nil)
		}
		return modifier.AttributeTarget{AttributeType: d.AttributeType, Value: d.AttributeVal}, nil
	case modifier.ScopeCombination:
		if len(d.Condition) == 0 {
			return nil, common.ValidationError("condition", "condition is required for COMBINATION scope", nil)
		}
		cond, err := modifier.DecodeCondition(d.Condition)
		if err != nil {
			return nil, common.ValidationError("condition", "condition tree is malformed", err)
		}
		return modifier.CombinationTarget{Condition: cond}, nil
	case modifier.ScopeUser:
		if d.AccountID == nil {
			return nil, common.ValidationError("accountId", "accountId is required for USER scope", nil)
		}
		return modifier.UserTarget{AccountID: *d.AccountID}, nil
	case modifier.ScopeCategory:
		if d.CategoryID == nil {
			return nil, common.ValidationError("categoryId", "categoryId is required for CATEGORY scope", nil)
		}
		return modifier.CategoryTarget{CategoryID: *d.CategoryID}, nil
	}
	return nil, common.ValidationError("scope", "unknown scope", nil)
}

type invalidateRequest struct {
	Scope     string     `json:"scope" validate:"required,oneof=all product segment-zone"`
	ProductID *uuid.UUID `json:"productId"`
	SegmentID *uuid.UUID `json:"segmentId"`
	ZoneID    *uuid.UUID `json:"zoneId"`
}

// Invalidate drops cached quotes at the requested granularity.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request", validationDetails(err))
		return
	}

	var err error
	switch req.Scope {
	case "all":
		err = h.Cache.InvalidateAll(r.Context())
	case "product":
		if req.ProductID == nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "productId is required", nil)
			return
		}
		err = h.Cache.InvalidateProduct(r.Context(), *req.ProductID)
	case "segment-zone":
		if req.SegmentID == nil || req.ZoneID == nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "segmentId and zoneId are required", nil)
			return
		}
		err = h.Cache.InvalidateSegmentZone(r.Context(), *req.SegmentID, *req.ZoneID)
	}
	if err != nil {
		common.WriteError(w, common.StoreError("cache invalidation", err))
		return
	}
	if obs.CacheInvalidationsTotal != nil {
		obs.CacheInvalidationsTotal.WithLabelValues(req.Scope).Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"invalidated": req.Scope}})
}
