package geo

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Level is the specificity tier of a zone.
type Level string

// Zone levels, most to least specific.
const (
	LevelZip       Level = "ZIP"
	LevelCity      Level = "CITY"
	LevelDistrict  Level = "DISTRICT"
	LevelState     Level = "STATE"
	LevelUT        Level = "UT"
	LevelRegion    Level = "REGION"
	LevelCountry   Level = "COUNTRY"
	LevelZone      Level = "ZONE"
	LevelContinent Level = "CONTINENT"
	LevelWorld     Level = "WORLD"
)

// hierarchyRank orders levels for hierarchy sorting. Unknown levels sort last.
var hierarchyRank = map[Level]int{
	LevelZip:      1,
	LevelCity:     2,
	LevelDistrict: 3,
	LevelState:    4,
	LevelUT:       4,
	LevelRegion:   5,
	LevelCountry:  6,
	LevelZone:     7,
}

// macroRank orders levels for the macro fallback pick. More granular
// administrative zones win over broader ones.
var macroRank = map[Level]int{
	LevelDistrict:  1,
	LevelState:     2,
	LevelUT:        2,
	LevelRegion:    3,
	LevelZone:      3,
	LevelCountry:   4,
	LevelContinent: 5,
	LevelWorld:     6,
}

const unknownRank = 99

// HierarchyRank returns the sort rank of the level within a resolved
// hierarchy. Lower ranks are more specific.
func (l Level) HierarchyRank() int {
	if r, ok := hierarchyRank[l]; ok {
		return r
	}
	return unknownRank
}

// MacroRank returns the sort rank used when picking a single macro zone.
func (l Level) MacroRank() int {
	if r, ok := macroRank[l]; ok {
		return r
	}
	return unknownRank
}

// Zone is a named geographic scope at a given specificity level.
type Zone struct {
	ID       uuid.UUID
	Name     string
	Level    Level
	Priority int
	Code     string
	Active   bool
}

// Mapping links a zone to one match rule: a country code, an exact pincode,
// or an inclusive numeric pincode range.
type Mapping struct {
	ID           uuid.UUID
	ZoneID       uuid.UUID
	CountryCode  string
	Pincode      string
	StartPincode int64
	EndPincode   int64
}

// Contains reports whether the mapping matches the given numeric pincode.
func (m Mapping) Contains(code int64) bool {
	if p := strings.TrimSpace(m.Pincode); p != "" {
		exact, err := strconv.ParseInt(p, 10, 64)
		return err == nil && exact == code
	}
	if m.StartPincode == 0 && m.EndPincode == 0 {
		return false
	}
	return m.StartPincode <= code && code <= m.EndPincode
}

// Valid reports whether the mapping's rule is well formed. A range must
// satisfy start <= end; exact and country rules are always well formed.
func (m Mapping) Valid() bool {
	if strings.TrimSpace(m.Pincode) != "" || strings.TrimSpace(m.CountryCode) != "" {
		return true
	}
	return m.StartPincode <= m.EndPincode
}
