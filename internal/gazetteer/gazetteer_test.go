package gazetteer

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGazetteer = "GEOID\tALAND\tAWATER\tALAND_SQMI\tAWATER_SQMI\tINTPTLAT\tINTPTLONG\n" +
	"10001\t1620619\t0\t0.626\t0.000\t40.750634\t-73.997177\n" +
	"59001\t2551647872\t5131132\t985.196\t1.981\t45.581940\t-109.527450\n" +
	"99999\tbadland\t0\t0\t0\tnotalat\tnotalng\n"

func TestParseGazetteer(t *testing.T) {
	tiles, err := ParseGazetteer(context.Background(), strings.NewReader(sampleGazetteer))
	require.NoError(t, err)
	require.Len(t, tiles, 2, "rows with unparsable coordinates are skipped")

	ny := tiles[0]
	assert.Equal(t, "10001", ny.Zip)
	assert.Equal(t, "NY", ny.State)
	assert.InDelta(t, 40.750634, ny.Latitude, 1e-6)
	assert.InDelta(t, -73.997177, ny.Longitude, 1e-6)
	// Tiny urban ZCTA clamps to the radius floor.
	assert.InDelta(t, minRadiusMeters, ny.RadiusMeters, 0.1)

	mt := tiles[1]
	assert.Equal(t, "MT", mt.State)
	wantRadius := math.Sqrt(2551647872 / math.Pi)
	assert.InDelta(t, wantRadius, mt.RadiusMeters, 1.0)
}

func TestRadiusFromAreaClamps(t *testing.T) {
	assert.InDelta(t, minRadiusMeters, radiusFromArea(0), 0.1)
	assert.InDelta(t, minRadiusMeters, radiusFromArea(100), 0.1)
	assert.InDelta(t, maxRadiusMeters, radiusFromArea(1e13), 0.1)
}

func TestStateForZip(t *testing.T) {
	cases := map[string]string{
		"10001": "NY",
		"00501": "NY", // IRS Holtsville, outside the NY block
		"06390": "NY", // Fishers Island
		"73301": "TX", // Austin, inside the OK block
		"90210": "CA",
		"60601": "IL",
		"99501": "AK",
		"00601": "PR",
		"ZCTA5 30301": "GA",
	}
	for zip, want := range cases {
		assert.Equal(t, want, StateForZip(zip), zip)
	}
	assert.Empty(t, StateForZip("notazip"))
}

func TestParsePopulation(t *testing.T) {
	body := `[["B01003_001E","zip code tabulation area"],
["18570","00601"],
["21714","10001"],
["-666666666","99999"]]`
	pops, err := ParsePopulation(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 18570, pops["00601"])
	assert.Equal(t, 21714, pops["10001"])
	assert.NotContains(t, pops, "99999", "negative sentinels are suppressed estimates")
}

func TestParsePopulationBadHeader(t *testing.T) {
	_, err := ParsePopulation(strings.NewReader(`[["WRONG","cols"],["1","2"]]`))
	assert.Error(t, err)
}

func TestHaversine(t *testing.T) {
	// JFK to LAX, roughly 3,974 km.
	d := haversineMeters(40.6413, -73.7781, 33.9416, -118.4085)
	assert.InDelta(t, 3_974_000, d, 30_000)
}
