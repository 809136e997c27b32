package gazetteer

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// ParsePopulation decodes a Census API response. The API returns an array of
// arrays with a header row:
//
//	[["B01003_001E","zip code tabulation area"],
//	 ["18570","00601"], ...]
func ParsePopulation(r io.Reader) (map[string]int, error) {
	var rows [][]string
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, eris.Wrap(err, "gazetteer: decode population response")
	}
	if len(rows) < 2 {
		return nil, eris.New("gazetteer: population response has no data rows")
	}

	header := rows[0]
	popIdx, zipIdx := -1, -1
	for i, col := range header {
		switch col {
		case "B01003_001E":
			popIdx = i
		case "zip code tabulation area":
			zipIdx = i
		}
	}
	if popIdx < 0 || zipIdx < 0 {
		return nil, eris.Errorf("gazetteer: unexpected population header %v", header)
	}

	out := make(map[string]int, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= popIdx || len(row) <= zipIdx {
			continue
		}
		pop, err := strconv.Atoi(row[popIdx])
		if err != nil || pop < 0 {
			// Suppressed estimates come back as null or negative sentinels.
			continue
		}
		out[normZip(row[zipIdx])] = pop
	}
	return out, nil
}

// fetchPopulation downloads and parses the ACS population table.
func (i *Importer) fetchPopulation(ctx context.Context) (map[string]int, error) {
	body, err := i.http.Download(ctx, i.cfg.PopulationURL)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: download population")
	}
	defer body.Close() //nolint:errcheck
	return ParsePopulation(body)
}
