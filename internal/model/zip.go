package model

// ZipTile is one candidate search tile: a ZCTA with its population and
// centroid. Tiles are ranked by population when selecting the top-N% for a
// job's geography.
type ZipTile struct {
	Zip        string  `json:"zip"`
	State      string  `json:"state"`
	Population int     `json:"population"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	// RadiusMeters is the search radius derived from the ZCTA bounds.
	RadiusMeters float64 `json:"radius_meters"`
}
