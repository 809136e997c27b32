// Package worker runs the job poll loop: claim pending jobs, execute each
// through the orchestrator with bounded concurrency, and reset stalled runs
// so crashed work is reprocessed.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/store"
)

// Executor runs one job to a terminal state or stage-boundary stop.
// Implemented by pipeline.Orchestrator.
type Executor interface {
	ExecuteJob(ctx context.Context, jobID string) error
}

// Worker polls the store for eligible jobs on a fixed interval.
type Worker struct {
	store store.Store
	exec  Executor
	cfg   config.WorkerConfig

	cron *cron.Cron
	// slots bounds the number of jobs executing at once. ClaimPendingJobs
	// only runs for the free capacity, so a claimed job never waits behind
	// a full pool with its status already flipped to running.
	slots chan struct{}
}

// New creates a Worker. Concurrency and intervals come from cfg with the
// documented defaults applied to zero values.
func New(st store.Store, exec Executor, cfg config.WorkerConfig) *Worker {
	if cfg.PollIntervalSecs <= 0 {
		cfg.PollIntervalSecs = 5
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 3
	}
	if cfg.StallTimeoutSecs <= 0 {
		cfg.StallTimeoutSecs = 120
	}
	return &Worker{
		store: st,
		exec:  exec,
		cfg:   cfg,
		cron:  cron.New(),
		slots: make(chan struct{}, cfg.MaxConcurrentJobs),
	}
}

// Start registers the poll and watchdog schedules and begins ticking. An
// immediate first poll picks up any backlog without waiting for the first
// interval.
func (w *Worker) Start(ctx context.Context) error {
	pollSpec := fmt.Sprintf("@every %ds", w.cfg.PollIntervalSecs)
	if _, err := w.cron.AddFunc(pollSpec, func() { w.poll(ctx) }); err != nil {
		return eris.Wrap(err, "worker: register poll")
	}

	watchdogSpec := fmt.Sprintf("@every %ds", w.cfg.StallTimeoutSecs)
	if _, err := w.cron.AddFunc(watchdogSpec, func() { w.watchdog(ctx) }); err != nil {
		return eris.Wrap(err, "worker: register watchdog")
	}

	w.cron.Start()
	zap.L().Info("worker started",
		zap.String("poll", pollSpec),
		zap.Int("max_concurrent_jobs", w.cfg.MaxConcurrentJobs),
		zap.Int("stall_timeout_secs", w.cfg.StallTimeoutSecs),
	)

	go w.poll(ctx)
	return nil
}

// Stop halts the schedules and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	for i := 0; i < cap(w.slots); i++ {
		w.slots <- struct{}{}
	}
	zap.L().Info("worker stopped")
}

// poll claims up to the free capacity of pending jobs, oldest first, and
// launches each one.
func (w *Worker) poll(ctx context.Context) {
	free := cap(w.slots) - len(w.slots)
	if free <= 0 {
		return
	}

	jobs, err := w.store.ClaimPendingJobs(ctx, free)
	if err != nil {
		zap.L().Error("claim pending jobs failed", zap.Error(err))
		return
	}

	for _, job := range jobs {
		w.slots <- struct{}{}
		go func(jobID string) {
			defer func() { <-w.slots }()
			log := zap.L().With(zap.String("job_id", jobID))
			log.Info("job claimed")
			if err := w.exec.ExecuteJob(ctx, jobID); err != nil {
				log.Error("job execution failed", zap.Error(err))
			}
		}(job.ID)
	}
}

// watchdog flips running jobs whose heartbeat stopped back to pending. The
// next poll re-claims them; stage work-set queries make the rerun converge
// instead of double-counting.
func (w *Worker) watchdog(ctx context.Context) {
	timeout := time.Duration(w.cfg.StallTimeoutSecs) * time.Second
	reset, err := w.store.ResetStalledJobs(ctx, timeout)
	if err != nil {
		zap.L().Error("reset stalled jobs failed", zap.Error(err))
		return
	}
	if reset > 0 {
		zap.L().Warn("stalled jobs reset to pending", zap.Int("count", reset))
	}
}
