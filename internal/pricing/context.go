// Package pricing orchestrates context building, price resolution, quote
// caching, and the HTTP surface of the pricing engine.
package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/print24/pricing/internal/account"
	"github.com/print24/pricing/internal/geo"
	"github.com/print24/pricing/internal/geoip"
	"github.com/print24/pricing/internal/segment"
)

// DetectionMethod records how the location was derived.
type DetectionMethod string

const (
	DetectExplicit DetectionMethod = "explicit"
	DetectProfile  DetectionMethod = "profile"
	DetectIP       DetectionMethod = "ip"
	DetectDefault  DetectionMethod = "default"
)

// Context is the canonical per-request pricing context. It is built fresh
// per request and never persisted.
type Context struct {
	AccountID     *uuid.UUID
	Authenticated bool

	Segment segment.Segment

	Pincode   string
	Country   string
	Region    string
	Detection DetectionMethod

	// Zone is the most specific resolved zone; nil on a resolution miss.
	Zone *geo.Zone
	// Hierarchy is the full resolved chain, most specific first. ZONE-scope
	// modifiers may match any ancestor, not only Zone.
	Hierarchy []geo.Zone

	CreditDays   int
	PaymentTerms string
}

// ZoneIDs returns the hierarchy's ids in order.
func (c Context) ZoneIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Hierarchy))
	for _, z := range c.Hierarchy {
		ids = append(ids, z.ID)
	}
	return ids
}

// LocationHint carries the location facts taken from the request.
type LocationHint struct {
	Pincode string
	Country string
	Region  string
	IP      string
}

// Builder resolves an account (or guest) plus a location hint into a
// canonical pricing context. It only reads; nothing is mutated.
type Builder struct {
	Zones    *geo.Resolver
	Segments *segment.Resolver
	GeoIP    geoip.Mapper

	DefaultPincode string
	DefaultCountry string

	Logger zerolog.Logger
}

// Build assembles the pricing context. A zone resolution miss is not an
// error; the context simply carries an empty hierarchy.
func (b *Builder) Build(ctx context.Context, acct *account.Account, hint LocationHint) (Context, error) {
	out := Context{
		Country: strings.ToUpper(firstNonEmpty(hint.Country, accountCountry(acct), b.DefaultCountry)),
		Region:  strings.ToUpper(firstNonEmpty(hint.Region, accountRegion(acct))),
	}
	out.Pincode, out.Detection = b.resolvePincode(ctx, acct, hint)

	seg, err := b.resolveSegment(ctx, acct)
	if err != nil {
		return Context{}, err
	}
	out.Segment = seg

	if acct != nil {
		id := acct.ID
		out.AccountID = &id
		out.Authenticated = true
		out.CreditDays = acct.CreditDays
		out.PaymentTerms = firstNonEmpty(acct.PaymentTerms, seg.PaymentTerms)
		if out.CreditDays == 0 {
			out.CreditDays = seg.CreditDays
		}
	} else {
		out.PaymentTerms = "PREPAID"
	}

	hierarchy, err := b.Zones.Resolve(ctx, geo.Query{
		Pincode: out.Pincode,
		Country: out.Country,
		Region:  out.Region,
	})
	if err != nil {
		return Context{}, fmt.Errorf("pricing: resolve hierarchy: %w", err)
	}
	out.Hierarchy = hierarchy
	if len(hierarchy) > 0 {
		z := hierarchy[0]
		out.Zone = &z
	} else {
		b.Logger.Debug().Str("pincode", out.Pincode).Msg("zone resolution miss")
	}
	return out, nil
}

// resolvePincode walks the precedence chain: explicit request value, saved
// account address, first authorized territory, IP-derived location, default.
func (b *Builder) resolvePincode(ctx context.Context, acct *account.Account, hint LocationHint) (string, DetectionMethod) {
	if pin := strings.TrimSpace(hint.Pincode); pin != "" {
		return pin, DetectExplicit
	}
	if pin := acct.SavedPincode(); pin != "" {
		return pin, DetectProfile
	}
	if ip := strings.TrimSpace(hint.IP); ip != "" {
		pin := b.GeoIP.PincodeForIP(ctx, ip)
		if pin != "" && pin != b.DefaultPincode {
			return pin, DetectIP
		}
	}
	return b.DefaultPincode, DetectDefault
}

func (b *Builder) resolveSegment(ctx context.Context, acct *account.Account) (segment.Segment, error) {
	var segmentID *uuid.UUID
	accountType := ""
	if acct != nil {
		segmentID = acct.SegmentID
		accountType = acct.Type
	}
	seg, err := b.Segments.Resolve(ctx, segmentID, accountType)
	if err != nil {
		return segment.Segment{}, fmt.Errorf("pricing: resolve segment: %w", err)
	}
	return seg, nil
}

func accountCountry(acct *account.Account) string {
	if acct == nil {
		return ""
	}
	return acct.Country
}

func accountRegion(acct *account.Account) string {
	if acct == nil {
		return ""
	}
	return acct.Region
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
