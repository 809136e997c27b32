package gazetteer

import (
	"math"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// shapeExtent is the footprint of one ZCTA polygon: its true centroid-ish
// interior point and a radius covering the bounding box.
type shapeExtent struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// ParseShapefile reads the TIGER ZCTA shapefile and computes per-zip search
// circles from the polygon bounds. Gazetteer interior points are fine for
// compact urban ZCTAs; sprawling rural ones need the real extent so the
// places search covers the whole area.
func ParseShapefile(shpPath string) (map[string]shapeExtent, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "gazetteer: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	zipIdx := -1
	for i, f := range fields {
		name := strings.ToLower(strings.TrimRight(f.String(), "\x00"))
		if name == "zcta5ce20" || name == "zcta5ce10" || name == "geoid20" {
			zipIdx = i
			break
		}
	}
	if zipIdx < 0 {
		return nil, eris.New("gazetteer: shapefile has no ZCTA code field")
	}

	extents := make(map[string]shapeExtent)
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			skipped++
			continue
		}
		zip := normZip(strings.TrimRight(reader.Attribute(zipIdx), "\x00"))
		if len(zip) != 5 {
			skipped++
			continue
		}
		extents[zip] = extentOf(poly)
	}
	if skipped > 0 {
		zap.L().Debug("shapefile records skipped", zap.Int("count", skipped))
	}
	return extents, nil
}

// extentOf computes the bounding box of a polygon and turns it into a
// center plus covering radius.
func extentOf(poly *shp.Polygon) shapeExtent {
	bounds := geom.NewBounds(geom.XY)
	for _, p := range poly.Points {
		bounds.Extend(geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}))
	}
	minX, minY := bounds.Min(0), bounds.Min(1)
	maxX, maxY := bounds.Max(0), bounds.Max(1)

	centerLng := (minX + maxX) / 2
	centerLat := (minY + maxY) / 2

	// Half the bbox diagonal, in meters.
	radius := haversineMeters(minY, minX, maxY, maxX) / 2
	radius = math.Min(math.Max(radius, minRadiusMeters), maxRadiusMeters)

	return shapeExtent{
		Latitude:     centerLat,
		Longitude:    centerLng,
		RadiusMeters: radius,
	}
}

const earthRadiusMeters = 6_371_000

// haversineMeters computes the great-circle distance between two WGS84
// coordinates.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const deg = math.Pi / 180
	dLat := (lat2 - lat1) * deg
	dLng := (lng2 - lng1) * deg
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
