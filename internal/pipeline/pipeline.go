// Package pipeline drives a discovery job through its stages: tile
// selection, places discovery, SERP+LLM enrichment, and domain scraping.
// Every stage persists partial results immediately, so ExecuteJob is safe
// to call repeatedly on the same job and converges after a crash.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/cost"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/scrape"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/anthropic"
	"github.com/sells-group/prospector/pkg/places"
	"github.com/sells-group/prospector/pkg/serp"
)

// Orchestrator executes discovery jobs against the store and the external
// adapters. Safe for concurrent use; per-job state lives on the stack of
// each ExecuteJob call.
type Orchestrator struct {
	cfg       *config.Config
	store     store.Store
	places    places.Client
	serp      serp.Client
	anthropic anthropic.Client
	scraper   *scrape.Engine
	costCalc  *cost.Calculator

	// newRenderer builds the shared browser for one scrape batch. Swapped
	// out in tests.
	newRenderer func() batchRenderer
}

// batchRenderer is a scrape.Renderer with a batch-scoped lifecycle.
type batchRenderer interface {
	scrape.Renderer
	Close()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScrapeEngine pins a contact-extraction engine instead of building one
// per scrape batch. Used by tests to point the engine at a local server.
func WithScrapeEngine(e *scrape.Engine) Option {
	return func(o *Orchestrator) { o.scraper = e }
}

// WithRendererFactory overrides how the per-batch browser is created.
func WithRendererFactory(f func() batchRenderer) Option {
	return func(o *Orchestrator) { o.newRenderer = f }
}

// New creates an Orchestrator with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	placesClient places.Client,
	serpClient serp.Client,
	aiClient anthropic.Client,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		store:     st,
		places:    placesClient,
		serp:      serpClient,
		anthropic: aiClient,
		costCalc:  cost.NewCalculator(cost.RatesFromConfig(cfg.Pricing)),
		newRenderer: func() batchRenderer {
			return scrape.NewBrowser("Mozilla/5.0 (compatible; ProspectorBot/1.0)")
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// stage is one checkpoint-gated unit of the pipeline. checkpoint is the step
// recorded when run returns nil.
type stage struct {
	checkpoint model.Step
	run        func(ctx context.Context, job *model.Job) error
}

// ExecuteJob runs the job's remaining stages in order. Stages whose
// checkpoint has already passed are skipped; cancellation and pause are
// observed at stage boundaries only. Any stage error marks the job failed
// with the checkpoint intact, so the next invocation resumes instead of
// restarting.
func (o *Orchestrator) ExecuteJob(ctx context.Context, jobID string) error {
	log := zap.L().With(zap.String("job_id", jobID))

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrap(err, "pipeline: load job")
	}
	switch job.Status {
	case model.JobStatusPending:
		if err := o.store.UpdateJobStatus(ctx, jobID, model.JobStatusRunning); err != nil {
			return eris.Wrap(err, "pipeline: mark running")
		}
		job.Status = model.JobStatusRunning
	case model.JobStatusRunning:
		// Claimed by the worker, or a stalled run being retried.
	default:
		log.Info("job not runnable", zap.String("status", string(job.Status)))
		return nil
	}

	stages := []stage{
		{model.StepZips, o.runSelection},
		{model.StepPlaces, o.runDiscovery},
		{model.StepEnrichment, o.runEnrichment},
		{model.StepScraping, o.runScraping},
	}

	for _, s := range stages {
		if job.CurrentStep.Done(s.checkpoint) {
			log.Debug("stage already complete", zap.String("stage", s.checkpoint.String()))
			continue
		}

		halt, err := o.checkInterrupt(ctx, job)
		if err != nil {
			return o.fail(ctx, log, jobID, err)
		}
		if halt {
			log.Info("job interrupted at stage boundary",
				zap.String("stage", s.checkpoint.String()))
			return nil
		}

		log.Info("stage starting", zap.String("stage", s.checkpoint.String()))
		if err := o.runStage(ctx, s, job); err != nil {
			return o.fail(ctx, log, jobID, err)
		}
		if err := o.store.AdvanceJobStep(ctx, jobID, s.checkpoint); err != nil {
			return o.fail(ctx, log, jobID, eris.Wrap(err, "pipeline: advance step"))
		}
		job.CurrentStep = s.checkpoint
		log.Info("stage complete", zap.String("stage", s.checkpoint.String()))
	}

	if err := o.finalize(ctx, jobID); err != nil {
		return o.fail(ctx, log, jobID, err)
	}
	log.Info("job complete")
	return nil
}

// runStage invokes the stage body, converting a panic into an ordinary
// stage error so a single bad job cannot take the worker down.
func (o *Orchestrator) runStage(ctx context.Context, s stage, job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: stage %s panicked: %v", s.checkpoint, r)
		}
	}()
	return s.run(ctx, job)
}

// checkInterrupt reloads the job status and reports whether execution must
// stop here. Cancelled and paused jobs stop cleanly; the checkpoint stays
// where it is so a resumed (unpaused) job picks up at the same stage.
func (o *Orchestrator) checkInterrupt(ctx context.Context, job *model.Job) (bool, error) {
	if ctx.Err() != nil {
		return false, eris.Wrap(ctx.Err(), "pipeline: context done")
	}

	fresh, err := o.store.GetJob(ctx, job.ID)
	if err != nil {
		return false, eris.Wrap(err, "pipeline: reload job")
	}
	switch fresh.Status {
	case model.JobStatusCancelled, model.JobStatusPaused:
		return true, nil
	}
	job.Counters = fresh.Counters
	return false, nil
}

// finalize recomputes the cost estimate from the accumulated counters and
// records the terminal checkpoint and status.
func (o *Orchestrator) finalize(ctx context.Context, jobID string) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrap(err, "pipeline: reload for finalize")
	}

	estimate := o.costCalc.Estimate(job.Counters)
	if err := o.store.SetJobCost(ctx, jobID, estimate); err != nil {
		return eris.Wrap(err, "pipeline: set cost")
	}
	if err := o.store.AdvanceJobStep(ctx, jobID, model.StepCompleted); err != nil {
		return eris.Wrap(err, "pipeline: advance to completed")
	}
	if err := o.store.UpdateJobStatus(ctx, jobID, model.JobStatusCompleted); err != nil {
		return eris.Wrap(err, "pipeline: mark completed")
	}
	return nil
}

// fail records the error against the job and returns it. RecordJobError
// leaves the checkpoint alone, which is what makes retry resume rather
// than restart.
func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, jobID string, err error) error {
	log.Error("job failed", zap.Error(err))
	msg := fmt.Sprintf("%v", err)
	if recErr := o.store.RecordJobError(context.WithoutCancel(ctx), jobID, msg); recErr != nil {
		log.Error("failed to record job error", zap.Error(recErr))
	}
	return err
}
