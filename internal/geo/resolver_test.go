package geo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/print24/pricing/internal/geo"
)

type stubStore struct {
	mappings []geo.Mapping
	zones    map[uuid.UUID]geo.Zone
	byCode   []geo.Zone
}

func (s *stubStore) MappingsContaining(_ context.Context, code int64) ([]geo.Mapping, error) {
	var out []geo.Mapping
	for _, m := range s.mappings {
		if m.Contains(code) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStore) MappingsForCountry(_ context.Context, country string) ([]geo.Mapping, error) {
	var out []geo.Mapping
	for _, m := range s.mappings {
		if m.CountryCode == country && m.Pincode == "" && m.StartPincode == 0 && m.EndPincode == 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStore) ZonesByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]geo.Zone, error) {
	out := make(map[uuid.UUID]geo.Zone, len(ids))
	for _, id := range ids {
		if z, ok := s.zones[id]; ok {
			out[id] = z
		}
	}
	return out, nil
}

func (s *stubStore) ActiveZonesByCodes(_ context.Context, codes []string) ([]geo.Zone, error) {
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	var out []geo.Zone
	for _, z := range s.byCode {
		if _, ok := want[z.Code]; ok && z.Active {
			out = append(out, z)
		}
	}
	return out, nil
}

func zone(name string, level geo.Level, priority int) geo.Zone {
	return geo.Zone{ID: uuid.New(), Name: name, Level: level, Priority: priority, Active: true}
}

func rangeMapping(zoneID uuid.UUID, start, end int64) geo.Mapping {
	return geo.Mapping{ID: uuid.New(), ZoneID: zoneID, StartPincode: start, EndPincode: end}
}

func TestResolveOrdersMostSpecificFirst(t *testing.T) {
	city := zone("Mumbai", geo.LevelCity, 10)
	state := zone("Maharashtra", geo.LevelState, 5)
	country := zone("India", geo.LevelCountry, 1)
	store := &stubStore{
		mappings: []geo.Mapping{
			rangeMapping(country.ID, 100000, 999999),
			rangeMapping(state.ID, 400001, 445402),
			rangeMapping(city.ID, 400001, 400104),
		},
		zones: map[uuid.UUID]geo.Zone{city.ID: city, state.ID: state, country.ID: country},
	}
	r := geo.NewResolver(store, zerolog.Nop())

	zones, err := r.Resolve(context.Background(), geo.Query{Pincode: "400050"})
	require.NoError(t, err)
	require.Len(t, zones, 3)
	require.Equal(t, "Mumbai", zones[0].Name)
	require.Equal(t, "Maharashtra", zones[1].Name)
	require.Equal(t, "India", zones[2].Name)
}

func TestResolveSameLevelTieBreak(t *testing.T) {
	hi := zone("South Corridor", geo.LevelZone, 9)
	lo := zone("North Corridor", geo.LevelZone, 3)
	alpha := zone("Alpha Corridor", geo.LevelZone, 3)
	store := &stubStore{
		mappings: []geo.Mapping{
			rangeMapping(lo.ID, 1, 999999),
			rangeMapping(alpha.ID, 1, 999999),
			rangeMapping(hi.ID, 1, 999999),
		},
		zones: map[uuid.UUID]geo.Zone{hi.ID: hi, lo.ID: lo, alpha.ID: alpha},
	}
	r := geo.NewResolver(store, zerolog.Nop())

	zones, err := r.Resolve(context.Background(), geo.Query{Pincode: "560001"})
	require.NoError(t, err)
	require.Len(t, zones, 3)
	// Priority descending first, then name ascending.
	require.Equal(t, "South Corridor", zones[0].Name)
	require.Equal(t, "Alpha Corridor", zones[1].Name)
	require.Equal(t, "North Corridor", zones[2].Name)
}

func TestResolveNonNumericPincodeFailsClosed(t *testing.T) {
	r := geo.NewResolver(&stubStore{}, zerolog.Nop())
	zones, err := r.Resolve(context.Background(), geo.Query{Pincode: "SW1A 1AA"})
	require.NoError(t, err)
	require.Empty(t, zones)
}

func TestResolveDropsDanglingAndInactive(t *testing.T) {
	live := zone("Delhi", geo.LevelCity, 1)
	dead := zone("Ghost", geo.LevelCity, 1)
	dead.Active = false
	dangling := uuid.New()
	store := &stubStore{
		mappings: []geo.Mapping{
			rangeMapping(live.ID, 110001, 110099),
			rangeMapping(dead.ID, 110001, 110099),
			rangeMapping(dangling, 110001, 110099),
		},
		zones: map[uuid.UUID]geo.Zone{live.ID: live, dead.ID: dead},
	}
	r := geo.NewResolver(store, zerolog.Nop())

	zones, err := r.Resolve(context.Background(), geo.Query{Pincode: "110001"})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	require.Equal(t, "Delhi", zones[0].Name)
}

func TestResolveMacroFallback(t *testing.T) {
	countryZone := zone("India", geo.LevelCountry, 1)
	countryZone.Code = "IN"
	regionZone := zone("South Asia", geo.LevelRegion, 1)
	regionZone.Code = "SA"
	store := &stubStore{byCode: []geo.Zone{countryZone, regionZone}}
	r := geo.NewResolver(store, zerolog.Nop())

	zones, err := r.Resolve(context.Background(), geo.Query{Pincode: "not-a-pin", Country: "in", Region: "sa"})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	// Region beats country in the macro ranking.
	require.Equal(t, "South Asia", zones[0].Name)
}

func TestResolveCountryMappingFallback(t *testing.T) {
	// The zone's own code says nothing about India; only a country-rule
	// mapping binds it. An unmapped pincode must still land there.
	countryZone := zone("Domestic", geo.LevelCountry, 1)
	countryZone.Code = "DOMESTIC"
	store := &stubStore{
		mappings: []geo.Mapping{{ID: uuid.New(), ZoneID: countryZone.ID, CountryCode: "IN"}},
		zones:    map[uuid.UUID]geo.Zone{countryZone.ID: countryZone},
	}
	r := geo.NewResolver(store, zerolog.Nop())

	zones, err := r.Resolve(context.Background(), geo.Query{Pincode: "999999", Country: "in"})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	require.Equal(t, "Domestic", zones[0].Name)
}

func TestResolveNoMappingNoFallback(t *testing.T) {
	r := geo.NewResolver(&stubStore{}, zerolog.Nop())
	zones, err := r.Resolve(context.Background(), geo.Query{Pincode: "999999"})
	require.NoError(t, err)
	require.Empty(t, zones)
}

func TestExactPincodeMapping(t *testing.T) {
	z := zone("Connaught Place", geo.LevelZip, 1)
	store := &stubStore{
		mappings: []geo.Mapping{{ID: uuid.New(), ZoneID: z.ID, Pincode: "110001"}},
		zones:    map[uuid.UUID]geo.Zone{z.ID: z},
	}
	r := geo.NewResolver(store, zerolog.Nop())

	zones, err := r.Resolve(context.Background(), geo.Query{Pincode: "110001"})
	require.NoError(t, err)
	require.Len(t, zones, 1)

	zones, err = r.Resolve(context.Background(), geo.Query{Pincode: "110002"})
	require.NoError(t, err)
	require.Empty(t, zones)
}
