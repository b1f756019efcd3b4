// Package geoip derives a usable postal code from a client IP address.
package geoip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog"
)

// Location is a coarse geo-IP lookup result.
type Location struct {
	City    string
	Region  string
	Country string
}

// Locator performs the upstream geo-IP lookup. Implementations are injected
// so the anchor tables below stay pure configuration.
type Locator interface {
	Locate(ctx context.Context, ip netip.Addr) (Location, bool, error)
}

// Mapper turns an IP address into a postal code using a locator plus fixed
// city/region anchor tables.
type Mapper struct {
	Locator        Locator
	CityPincodes   map[string]string
	RegionPincodes map[string]string
	DefaultPincode string
	Logger         zerolog.Logger
}

// PincodeForIP resolves a pincode for the raw address. Private and loopback
// ranges short-circuit to the default pincode; lookup or table misses fall
// back to the default as well.
func (m Mapper) PincodeForIP(ctx context.Context, raw string) string {
	addr, ok := normalize(raw)
	if !ok {
		return m.DefaultPincode
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return m.DefaultPincode
	}
	if m.Locator == nil {
		return m.DefaultPincode
	}
	loc, found, err := m.Locator.Locate(ctx, addr)
	if err != nil {
		m.Logger.Warn().Err(err).Str("ip", addr.String()).Msg("geoip lookup failed")
		return m.DefaultPincode
	}
	if !found {
		return m.DefaultPincode
	}
	if pin, ok := m.CityPincodes[strings.ToLower(strings.TrimSpace(loc.City))]; ok {
		return pin
	}
	if pin, ok := m.RegionPincodes[strings.ToLower(strings.TrimSpace(loc.Region))]; ok {
		return pin
	}
	return m.DefaultPincode
}

// PrefixLocator resolves locations from a static CIDR table. It stands in
// for a real geo-IP database when only a handful of known egress ranges
// matter (office NAT, partner networks).
type PrefixLocator struct {
	Prefixes map[netip.Prefix]Location
}

// Locate implements Locator. The table is expected to stay small, so a
// linear scan is fine.
func (l PrefixLocator) Locate(_ context.Context, ip netip.Addr) (Location, bool, error) {
	for p, loc := range l.Prefixes {
		if p.Contains(ip) {
			return loc, true, nil
		}
	}
	return Location{}, false, nil
}

// ParsePrefixTable builds a PrefixLocator table from comma-separated
// "cidr=city:region:country" entries. Malformed entries are skipped rather
// than failing startup.
func ParsePrefixTable(raw string, logger zerolog.Logger) map[netip.Prefix]Location {
	out := map[netip.Prefix]Location{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		cidr, locSpec, ok := strings.Cut(entry, "=")
		if !ok {
			logger.Warn().Str("entry", entry).Msg("geoip prefix entry missing '='")
			continue
		}
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			logger.Warn().Err(err).Str("entry", entry).Msg("geoip prefix entry invalid")
			continue
		}
		parts := strings.SplitN(locSpec, ":", 3)
		loc := Location{City: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			loc.Region = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			loc.Country = strings.TrimSpace(parts[2])
		}
		out[prefix] = loc
	}
	return out
}

// ClientIP extracts the caller address from a request, preferring forwarding
// headers set by the edge proxy.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// normalize parses a raw address, stripping any port or IPv6 brackets and
// unwrapping IPv4-mapped IPv6 forms.
func normalize(raw string) (netip.Addr, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(trimmed); err == nil {
		trimmed = host
	}
	trimmed = strings.Trim(trimmed, "[]")
	addr, err := netip.ParseAddr(trimmed)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
