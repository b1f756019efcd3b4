package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMappingRange(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		wantLo     int64
		wantHi     int64
		wantErr    bool
	}{
		// Exact-pincode and country rules store their range columns as
		// empty text; they must round-trip to zero bounds, not a parse
		// error.
		{"empty columns", "", "", 0, 0, false},
		{"numeric range", "110001", "110096", 110001, 110096, false},
		{"padded range", " 400001 ", "400104", 400001, 400104, false},
		{"half-open row", "110001", "", 0, 0, true},
		{"garbage start", "11-00-01", "110096", 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi, err := mappingRange(tc.start, tc.end)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantLo, lo)
			require.Equal(t, tc.wantHi, hi)
		})
	}
}
