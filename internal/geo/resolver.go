package geo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store provides read access to admin-managed zone reference data.
type Store interface {
	// MappingsContaining returns every mapping whose rule matches the numeric
	// pincode.
	MappingsContaining(ctx context.Context, code int64) ([]Mapping, error)
	// MappingsForCountry returns mappings that bind zones to a whole
	// country, with no pincode or range rule.
	MappingsForCountry(ctx context.Context, country string) ([]Mapping, error)
	// ZonesByIDs fetches zones by id. Missing ids are simply absent from the
	// result.
	ZonesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Zone, error)
	// ActiveZonesByCodes returns active zones whose code matches any of the
	// candidates.
	ActiveZonesByCodes(ctx context.Context, codes []string) ([]Zone, error)
}

// Resolver maps a postal code to an ordered chain of containing zones.
type Resolver struct {
	store  Store
	logger zerolog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger.With().Str("component", "geo_resolver").Logger()}
}

// Query carries the location facts available for resolution. Country and
// Region feed the macro fallback when no pincode mapping matches.
type Query struct {
	Pincode string
	Country string
	Region  string
}

// Resolve returns the matching zones ordered most to least specific. An
// invalid or unmapped pincode yields an empty hierarchy, not an error.
func (r *Resolver) Resolve(ctx context.Context, q Query) ([]Zone, error) {
	zones, err := r.hierarchyByPincode(ctx, q.Pincode)
	if err != nil {
		return nil, err
	}
	if len(zones) > 0 {
		return zones, nil
	}
	if strings.TrimSpace(q.Country) == "" && strings.TrimSpace(q.Region) == "" {
		return nil, nil
	}
	macro, err := r.macroZone(ctx, q.Country, q.Region)
	if err != nil {
		return nil, err
	}
	if macro == nil {
		return nil, nil
	}
	return []Zone{*macro}, nil
}

func (r *Resolver) hierarchyByPincode(ctx context.Context, pincode string) ([]Zone, error) {
	code, ok := parsePincode(pincode)
	if !ok {
		return nil, nil
	}
	mappings, err := r.store.MappingsContaining(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("geo: mappings for %d: %w", code, err)
	}
	if len(mappings) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(mappings))
	seen := make(map[uuid.UUID]struct{}, len(mappings))
	for _, m := range mappings {
		if !m.Valid() || !m.Contains(code) {
			continue
		}
		if _, dup := seen[m.ZoneID]; dup {
			continue
		}
		seen[m.ZoneID] = struct{}{}
		ids = append(ids, m.ZoneID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	byID, err := r.store.ZonesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("geo: zones by id: %w", err)
	}
	zones := make([]Zone, 0, len(ids))
	for _, id := range ids {
		zone, ok := byID[id]
		if !ok {
			// Dangling mapping; reference data is admin-managed and can drift.
			r.logger.Debug().Str("zone_id", id.String()).Msg("mapping references missing zone")
			continue
		}
		if !zone.Active {
			continue
		}
		zones = append(zones, zone)
	}
	SortHierarchy(zones)
	return zones, nil
}

// macroZone picks the single best zone for a country/region pair when no
// pincode mapping matched. Candidates come from two places: zones whose own
// code names the country or region, and zones bound through a country-rule
// mapping.
func (r *Resolver) macroZone(ctx context.Context, country, region string) (*Zone, error) {
	var pool []Zone
	if candidates := macroCandidates(country, region); len(candidates) > 0 {
		zones, err := r.store.ActiveZonesByCodes(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("geo: zones by code: %w", err)
		}
		pool = append(pool, zones...)
	}
	countryZones, err := r.zonesForCountry(ctx, country)
	if err != nil {
		return nil, err
	}
	pool = append(pool, countryZones...)
	if len(pool) == 0 {
		return nil, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(pool))
	var best *Zone
	for i := range pool {
		z := pool[i]
		if _, dup := seen[z.ID]; dup {
			continue
		}
		seen[z.ID] = struct{}{}
		if best == nil || macroLess(z, *best) {
			best = &pool[i]
		}
	}
	return best, nil
}

// zonesForCountry resolves country-rule mappings into their active zones.
func (r *Resolver) zonesForCountry(ctx context.Context, country string) ([]Zone, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return nil, nil
	}
	mappings, err := r.store.MappingsForCountry(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("geo: country mappings: %w", err)
	}
	if len(mappings) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(mappings))
	seen := make(map[uuid.UUID]struct{}, len(mappings))
	for _, m := range mappings {
		if _, dup := seen[m.ZoneID]; dup {
			continue
		}
		seen[m.ZoneID] = struct{}{}
		ids = append(ids, m.ZoneID)
	}
	byID, err := r.store.ZonesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("geo: zones by id: %w", err)
	}
	zones := make([]Zone, 0, len(ids))
	for _, id := range ids {
		if zone, ok := byID[id]; ok && zone.Active {
			zones = append(zones, zone)
		}
	}
	return zones, nil
}

// SortHierarchy orders zones most specific first: level rank, then zone
// priority descending, then name ascending.
func SortHierarchy(zones []Zone) {
	sort.SliceStable(zones, func(i, j int) bool {
		ri, rj := zones[i].Level.HierarchyRank(), zones[j].Level.HierarchyRank()
		if ri != rj {
			return ri < rj
		}
		if zones[i].Priority != zones[j].Priority {
			return zones[i].Priority > zones[j].Priority
		}
		return zones[i].Name < zones[j].Name
	})
}

func macroLess(a, b Zone) bool {
	ra, rb := a.Level.MacroRank(), b.Level.MacroRank()
	if ra != rb {
		return ra < rb
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Name < b.Name
}

func macroCandidates(country, region string) []string {
	country = strings.ToUpper(strings.TrimSpace(country))
	region = strings.ToUpper(strings.TrimSpace(region))
	var out []string
	if region != "" {
		out = append(out, region)
	}
	if country != "" {
		out = append(out, country)
	}
	if country != "" && region != "" {
		out = append(out, country+"-"+region)
	}
	return out
}

// parsePincode fails closed on anything that is not a plain positive integer.
func parsePincode(pincode string) (int64, bool) {
	trimmed := strings.TrimSpace(pincode)
	if trimmed == "" {
		return 0, false
	}
	code, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}
