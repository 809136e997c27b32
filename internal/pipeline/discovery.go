package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/batch"
	"github.com/sells-group/prospector/internal/geo"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/places"
)

// maxSearchPages bounds pagination per tile. The places API serves at most
// three pages for one text query.
const maxSearchPages = 3

// runDiscovery fans the tile list out to the places adapter, persisting
// every tile's businesses as soon as that tile resolves. Duplicate place
// ids across tiles and across jobs collapse onto the existing row. Tiles the
// job already finished are skipped, so a stage rerun after a crash neither
// re-searches them nor re-adds their counter deltas. A quota error halts the
// remaining tiles instead of burning retries against a capped budget.
func (o *Orchestrator) runDiscovery(ctx context.Context, job *model.Job) error {
	log := zap.L().With(zap.String("job_id", job.ID))

	all, err := geo.SelectTiles(ctx, o.store, job, o.cfg.Pipeline.MaxZipTiles)
	if err != nil {
		return eris.Wrap(err, "pipeline: discovery")
	}
	processed, err := o.store.ListProcessedZips(ctx, job.ID)
	if err != nil {
		return eris.Wrap(err, "pipeline: list processed zips")
	}
	var tiles []model.ZipTile
	for _, tile := range all {
		if _, done := processed[tile.Zip]; !done {
			tiles = append(tiles, tile)
		}
	}
	if len(tiles) == 0 {
		return nil
	}

	var quotaHit atomic.Bool
	results := batch.Run(ctx, tiles, o.cfg.Pipeline.DiscoveryConcurrency,
		func(ctx context.Context, tile model.ZipTile) (int, error) {
			if quotaHit.Load() {
				return 0, nil
			}
			found, err := o.searchTile(ctx, job, tile)
			if err != nil && resilience.IsQuota(err) {
				quotaHit.Store(true)
			}
			return found, err
		})

	var failed int
	for _, r := range results {
		if r.Err != nil && !resilience.IsQuota(r.Err) {
			failed++
			log.Warn("tile search failed",
				zap.String("zip", r.Item.Zip),
				zap.Error(r.Err),
			)
		}
	}

	if quotaHit.Load() {
		log.Warn("places quota exhausted, discovery halted early",
			zap.Int("tiles_total", len(tiles)))
	}
	if failed == len(tiles) && len(tiles) > 0 {
		return eris.New("pipeline: every tile search failed")
	}
	return nil
}

// searchTile runs one paginated text search and upserts the results. Returns
// the number of businesses persisted for the tile.
func (o *Orchestrator) searchTile(ctx context.Context, job *model.Job, tile model.ZipTile) (int, error) {
	query := fmt.Sprintf("%s in %s, %s", job.BusinessType, tile.Zip, tile.State)

	var businesses []model.Business
	var calls int
	pageToken := ""
	for page := 0; page < maxSearchPages; page++ {
		req := places.SearchRequest{
			Query:        query,
			Latitude:     tile.Latitude,
			Longitude:    tile.Longitude,
			RadiusMeters: tile.RadiusMeters,
			MaxResults:   o.cfg.Places.MaxPageSize,
			PageToken:    pageToken,
		}

		retryCfg := resilience.DefaultRetryConfig()
		retryCfg.OnRetry = resilience.RetryLogger("places", "search_text")
		resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*places.SearchResponse, error) {
			return o.places.SearchText(ctx, req)
		})
		calls++
		if err != nil {
			// Keep whatever earlier pages already returned, and count the
			// calls made before giving up on the tile.
			if len(businesses) > 0 {
				_, _ = o.store.UpsertBusinesses(ctx, job.ID, job.UserID, businesses)
			}
			_ = o.store.AddJobCounters(ctx, job.ID, model.JobCounters{PlacesCalls: calls})
			return 0, eris.Wrapf(err, "pipeline: search tile %s", tile.Zip)
		}

		for _, p := range resp.Places {
			if p.ID == "" {
				continue
			}
			businesses = append(businesses, placeToBusiness(p, tile))
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	stats, err := o.store.UpsertBusinesses(ctx, job.ID, job.UserID, businesses)
	if err != nil {
		return 0, eris.Wrapf(err, "pipeline: persist tile %s", tile.Zip)
	}

	// The completion marker is what keeps a rerun from re-adding this tile's
	// deltas on top of the totals.
	newly, err := o.store.MarkZipProcessed(ctx, job.ID, tile.Zip)
	if err != nil {
		return 0, eris.Wrapf(err, "pipeline: mark tile %s processed", tile.Zip)
	}

	delta := model.JobCounters{PlacesCalls: calls}
	if newly {
		delta.ZipsProcessed = 1
		delta.BusinessesFound = stats.Created + stats.Reused
	}
	if err := o.store.AddJobCounters(ctx, job.ID, delta); err != nil {
		return 0, eris.Wrap(err, "pipeline: update discovery counters")
	}
	return len(businesses), nil
}

// placeToBusiness maps an adapter place onto the persisted business shape.
// State and zip come from the searched tile; the formatted address keeps the
// adapter's own rendering.
func placeToBusiness(p places.Place, tile model.ZipTile) model.Business {
	return model.Business{
		PlaceID:   p.ID,
		Name:      p.DisplayName.Text,
		Address:   p.FormattedAddress,
		State:     tile.State,
		Zip:       tile.Zip,
		Latitude:  p.Location.Latitude,
		Longitude: p.Location.Longitude,
		Website:   p.WebsiteURI,
		Phone:     p.NationalPhoneNumber,
	}
}
