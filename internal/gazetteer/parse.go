package gazetteer

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/fetcher"
	"github.com/sells-group/prospector/internal/model"
)

// Radius bounds in meters. A ZCTA smaller than minRadius still needs a
// usable search circle; a rural mega-ZCTA is capped so one tile does not
// swallow half a state.
const (
	minRadiusMeters = 1_000
	maxRadiusMeters = 50_000
)

// gazetteer national file columns (tab delimited):
// GEOID ALAND AWATER ALAND_SQMI AWATER_SQMI INTPTLAT INTPTLONG
const (
	colGeoid = iota
	colLandArea
	_
	_
	_
	colLat
	colLng
	gazColumns
)

// ParseGazetteer streams the Census national ZCTA gazetteer file into zip
// tiles. Rows with unparsable coordinates are skipped, not fatal; a handful
// of water-only ZCTAs carry empty fields.
func ParseGazetteer(ctx context.Context, r io.Reader) ([]model.ZipTile, error) {
	rows, errs := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter: '\t',
		HasHeader: true,
		TrimSpace: true,
	})

	var tiles []model.ZipTile
	for row := range rows {
		if len(row) < gazColumns {
			continue
		}
		zip := row[colGeoid]
		if len(zip) != 5 {
			continue
		}
		lat, latErr := strconv.ParseFloat(row[colLat], 64)
		lng, lngErr := strconv.ParseFloat(row[colLng], 64)
		if latErr != nil || lngErr != nil {
			continue
		}
		land, _ := strconv.ParseFloat(row[colLandArea], 64)

		tiles = append(tiles, model.ZipTile{
			Zip:          zip,
			State:        StateForZip(zip),
			Latitude:     lat,
			Longitude:    lng,
			RadiusMeters: radiusFromArea(land),
		})
	}
	if err := <-errs; err != nil {
		return nil, eris.Wrap(err, "gazetteer: parse")
	}
	return tiles, nil
}

// radiusFromArea derives a search radius from land area by treating the
// ZCTA as a circle of equal area.
func radiusFromArea(landSqMeters float64) float64 {
	if landSqMeters <= 0 {
		return minRadiusMeters
	}
	r := math.Sqrt(landSqMeters / math.Pi)
	return math.Min(math.Max(r, minRadiusMeters), maxRadiusMeters)
}

// normZip strips a "ZCTA5 " prefix some Census products carry.
func normZip(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimPrefix(s, "ZCTA5 ")
}
