// Package geo resolves a job's geography into the candidate ZIP tile list
// for discovery.
package geo

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

// validStates is every two-letter code a job may target, including DC and
// the territories present in the gazetteer.
var validStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {},
	"DE": {}, "DC": {}, "FL": {}, "GA": {}, "HI": {}, "ID": {}, "IL": {},
	"IN": {}, "IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {},
	"MA": {}, "MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {},
	"NV": {}, "NH": {}, "NJ": {}, "NM": {}, "NY": {}, "NC": {}, "ND": {},
	"OH": {}, "OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {}, "SD": {},
	"TN": {}, "TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {},
	"WI": {}, "WY": {}, "PR": {}, "VI": {},
}

// NormalizeGeography validates and uppercases a job's geography list. A
// single "nationwide" entry selects every state; otherwise every entry must
// be a known two-letter code.
func NormalizeGeography(geography []string) ([]string, error) {
	if len(geography) == 0 {
		return nil, eris.New("geo: geography is empty")
	}

	out := make([]string, 0, len(geography))
	for _, g := range geography {
		g = strings.ToUpper(strings.TrimSpace(g))
		if strings.EqualFold(g, model.GeographyNationwide) {
			if len(geography) > 1 {
				return nil, eris.New("geo: nationwide cannot be combined with states")
			}
			return []string{model.GeographyNationwide}, nil
		}
		if _, ok := validStates[g]; !ok {
			return nil, eris.Errorf("geo: unknown state code %q", g)
		}
		out = append(out, g)
	}
	return out, nil
}

// SelectTiles resolves the job's geography and population percentage into
// the tile list discovery will fan out over. The tile count is capped by
// maxTiles, the tier limit.
func SelectTiles(ctx context.Context, st store.Store, job *model.Job, maxTiles int) ([]model.ZipTile, error) {
	states, err := NormalizeGeography(job.Geography)
	if err != nil {
		return nil, err
	}
	if states[0] == model.GeographyNationwide {
		// An empty state filter selects every tile.
		states = nil
	}

	tiles, err := st.TopZipTiles(ctx, states, job.ZipPercentage, maxTiles)
	if err != nil {
		return nil, eris.Wrap(err, "geo: select tiles")
	}
	if len(tiles) == 0 {
		return nil, eris.New("geo: no zip tiles match the requested geography; run the gazetteer import")
	}

	zap.L().Info("tiles selected",
		zap.String("job_id", job.ID),
		zap.Strings("states", states),
		zap.Int("zip_percentage", job.ZipPercentage),
		zap.Int("tiles", len(tiles)),
	)
	return tiles, nil
}
