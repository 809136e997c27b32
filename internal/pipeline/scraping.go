package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/batch"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/scrape"
)

// runScraping scrapes the websites of businesses whose enrichment confidence
// clears the job's threshold and whose scrape record is still empty. Work is
// processed in fixed-size sub-batches with a persistence point after each
// one, so a stall mid-stage loses at most one sub-batch. The failed-domain
// set and the fallback browser live exactly as long as this batch.
func (o *Orchestrator) runScraping(ctx context.Context, job *model.Job) error {
	log := zap.L().With(zap.String("job_id", job.ID))

	candidates, err := o.store.ListScrapeCandidates(ctx, job.ID, job.MinDomainConfidence)
	if err != nil {
		return eris.Wrap(err, "pipeline: list scrape candidates")
	}
	if len(candidates) == 0 {
		return nil
	}

	engine := o.scraper
	if engine == nil {
		var engineOpts []scrape.EngineOption
		if o.cfg.Scrape.UseBrowserFallback {
			renderer := o.newRenderer()
			defer renderer.Close()
			engineOpts = append(engineOpts, scrape.WithRenderer(renderer))
		}
		engine = scrape.NewEngine(engineOpts...)
	}

	state := scrape.NewBatchState()
	opts := scrape.Options{
		Timeout:            time.Duration(o.cfg.Scrape.TimeoutSecs) * time.Second,
		UseBrowserFallback: o.cfg.Scrape.UseBrowserFallback,
	}

	for _, chunk := range batch.Chunk(candidates, o.cfg.Scrape.SubBatchSize) {
		results := batch.Run(ctx, chunk, o.cfg.Scrape.Concurrency,
			func(ctx context.Context, b model.Business) (scrape.Result, error) {
				return engine.ScrapeDomain(ctx, state, b.Enrichment.Domain, opts), nil
			})

		now := time.Now().UTC()
		var scraped int
		for _, r := range results {
			rec := model.ScrapeRecord{
				Email:     r.Value.Email,
				Phone:     r.Value.Phone,
				ErrorCode: r.Value.ErrorCode,
				ScrapedAt: &now,
			}
			if err := o.store.SaveScrape(ctx, r.Item.ID, rec); err != nil {
				return eris.Wrapf(err, "pipeline: save scrape for %s", r.Item.ID)
			}
			scraped++
			if r.Value.ErrorCode != "" && r.Value.ErrorCode != model.ScrapeErrNoContactInfo {
				log.Debug("scrape returned error code",
					zap.String("domain", r.Item.Enrichment.Domain),
					zap.String("code", string(r.Value.ErrorCode)),
				)
			}
		}

		if err := o.store.AddJobCounters(ctx, job.ID, model.JobCounters{BusinessesScraped: scraped}); err != nil {
			return eris.Wrap(err, "pipeline: update scrape counters")
		}
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "pipeline: scraping interrupted")
		}
	}
	return nil
}
