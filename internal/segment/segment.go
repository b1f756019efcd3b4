// Package segment resolves the pricing segment an account belongs to.
package segment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Well-known segment codes.
const (
	CodeRetail       = "RETAIL"
	CodeCorporate    = "CORPORATE"
	CodePrintPartner = "PRINT_PARTNER"
	CodeReseller     = "RESELLER"
)

// Segment is a named class of account used for pricing and credit terms.
type Segment struct {
	ID           uuid.UUID
	Code         string
	Name         string
	Tier         int
	IsDefault    bool
	CreditDays   int
	PaymentTerms string
}

// Store provides read access to admin-managed segments.
type Store interface {
	SegmentByID(ctx context.Context, id uuid.UUID) (Segment, bool, error)
	SegmentByCode(ctx context.Context, code string) (Segment, bool, error)
	DefaultSegment(ctx context.Context) (Segment, bool, error)
}

// accountTypeCodes maps account types to segment codes when the account
// carries no explicit segment reference.
var accountTypeCodes = map[string]string{
	"individual":    CodeRetail,
	"business":      CodeCorporate,
	"print_partner": CodePrintPartner,
	"reseller":      CodeReseller,
}

// Resolver picks the effective segment for an account.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve walks the precedence chain: explicit segment reference, account
// type mapping, the segment flagged default, then a hardcoded retail
// fallback that never touches the store.
func (r *Resolver) Resolve(ctx context.Context, segmentID *uuid.UUID, accountType string) (Segment, error) {
	if segmentID != nil && *segmentID != uuid.Nil {
		seg, ok, err := r.store.SegmentByID(ctx, *segmentID)
		if err != nil {
			return Segment{}, fmt.Errorf("segment: by id: %w", err)
		}
		if ok {
			return seg, nil
		}
	}
	if code, ok := accountTypeCodes[strings.ToLower(strings.TrimSpace(accountType))]; ok {
		seg, found, err := r.store.SegmentByCode(ctx, code)
		if err != nil {
			return Segment{}, fmt.Errorf("segment: by code: %w", err)
		}
		if found {
			return seg, nil
		}
	}
	seg, ok, err := r.store.DefaultSegment(ctx)
	if err != nil {
		return Segment{}, fmt.Errorf("segment: default: %w", err)
	}
	if ok {
		return seg, nil
	}
	return Fallback(), nil
}

// Fallback is the segment of last resort when reference data has no default.
func Fallback() Segment {
	return Segment{
		Code:         CodeRetail,
		Name:         "Retail",
		Tier:         0,
		PaymentTerms: "PREPAID",
	}
}
