package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/print24/pricing/internal/catalog"
	"github.com/print24/pricing/internal/geo"
	"github.com/print24/pricing/internal/modifier"
)

// Quote is the priced outcome callers settle against.
type Quote struct {
	BasePrice        decimal.Decimal         `json:"basePrice"`
	CompareAtPrice   *decimal.Decimal        `json:"compareAtPrice,omitempty"`
	Quantity         int                     `json:"quantity"`
	Subtotal         decimal.Decimal         `json:"subtotal"`
	TaxPercentage    decimal.Decimal         `json:"taxPercentage"`
	TaxAmount        decimal.Decimal         `json:"taxAmount"`
	TotalPayable     decimal.Decimal         `json:"totalPayable"`
	Currency         string                  `json:"currency"`
	AppliedModifiers []modifier.Contribution `json:"appliedModifiers"`
}

// ZoneMeta describes one hierarchy entry in response metadata.
type ZoneMeta struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Level geo.Level `json:"level"`
}

// Meta reports which context the quote was priced in.
type Meta struct {
	ZoneID        *uuid.UUID      `json:"zoneId,omitempty"`
	ZoneName      string          `json:"zoneName,omitempty"`
	ZoneLevel     geo.Level       `json:"zoneLevel,omitempty"`
	Hierarchy     []ZoneMeta      `json:"hierarchy"`
	SegmentCode   string          `json:"segmentCode"`
	SegmentName   string          `json:"segmentName"`
	SegmentTier   int             `json:"segmentTier"`
	Detection     DetectionMethod `json:"locationDetection"`
	Authenticated bool            `json:"authenticated"`
}

// Breakdown is the full audit trail for display.
type Breakdown struct {
	UnitBasePrice    decimal.Decimal          `json:"unitBasePrice"`
	AttributeDeltas  []catalog.AttributeDelta `json:"attributeDeltas"`
	UnitPrice        decimal.Decimal          `json:"unitPrice"`
	RawSubtotal      decimal.Decimal          `json:"rawSubtotal"`
	Contributions    []modifier.Contribution  `json:"contributions"`
	AdjustedSubtotal decimal.Decimal          `json:"adjustedSubtotal"`
	TaxAmount        decimal.Decimal          `json:"taxAmount"`
	TotalPayable     decimal.Decimal          `json:"totalPayable"`
	ClampedAtZero    bool                     `json:"clampedAtZero,omitempty"`
	Timestamp        time.Time                `json:"timestamp"`
}

// Result bundles the quote, its metadata, and the audit breakdown.
type Result struct {
	ProductID uuid.UUID `json:"productId"`
	Quote     Quote     `json:"quote"`
	Meta      Meta      `json:"meta"`
	Breakdown Breakdown `json:"breakdown"`
}

// ResolveRequest is a single-product resolution input.
type ResolveRequest struct {
	ProductID    uuid.UUID
	Quantity     int
	Attributes   []modifier.SelectedAttribute
	CacheAllowed bool
}

// BatchItem is one entry of a batch resolution.
type BatchItem struct {
	ProductID  uuid.UUID
	Quantity   int
	Attributes []modifier.SelectedAttribute
}

// BatchItemResult holds one item's outcome; exactly one of Result or Error
// is set.
type BatchItemResult struct {
	ProductID uuid.UUID  `json:"productId"`
	Result    *Result    `json:"result,omitempty"`
	Error     *ItemError `json:"error,omitempty"`
}

// ItemError is a per-item failure that never aborts the batch's siblings.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
