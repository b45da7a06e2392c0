package geo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/geo"
)

func TestMatchPostcode(t *testing.T) {
	cases := []struct {
		name     string
		postcode string
		country  string
		rule     string
		want     bool
	}{
		{name: "exact", postcode: "90210", country: "US", rule: "90210", want: true},
		{name: "exact mismatch", postcode: "90210", country: "US", rule: "10001", want: false},
		{name: "wildcard", postcode: "90210", country: "US", rule: "902*", want: true},
		{name: "wildcard mismatch", postcode: "90210", country: "US", rule: "100*", want: false},
		{name: "numeric range", postcode: "90210", country: "US", rule: "90000...90299", want: true},
		{name: "numeric range outside", postcode: "90310", country: "US", rule: "90000...90299", want: false},
		{name: "alpha range", postcode: "SW1A 1AA", country: "GB", rule: "SW1A...SW9Z", want: true},
		{name: "gb wildcard with space", postcode: "sw1a1aa", country: "GB", rule: "SW1A*", want: true},
		{name: "normalized exact", postcode: "sw1a-1aa", country: "GB", rule: "SW1A 1AA", want: true},
		{name: "empty rule", postcode: "90210", country: "US", rule: " ", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, geo.MatchPostcode(tc.postcode, tc.country, tc.rule))
		})
	}
}

func TestMakeNumericPostcode(t *testing.T) {
	require.Equal(t, "0102", geo.MakeNumericPostcode("AB"))
	require.Equal(t, "0901", geo.MakeNumericPostcode("9 a"))
}

func TestContinentForCountry(t *testing.T) {
	require.Equal(t, geo.ContinentNorthAmerica, geo.ContinentForCountry("us"))
	require.Equal(t, geo.ContinentEurope, geo.ContinentForCountry("DE"))
	require.Equal(t, "", geo.ContinentForCountry("ZZ"))
	require.Contains(t, geo.CountriesInContinent("OC"), "NZ")
}
