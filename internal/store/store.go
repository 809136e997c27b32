// Package store persists jobs, businesses, and zip tiles. Two drivers are
// provided: Postgres (pgxpool) for production and SQLite (modernc) for local
// runs. Both satisfy Store and share one test suite.
package store

import (
	"context"
	"time"

	"github.com/sells-group/prospector/internal/model"
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus
	UserID string
	Limit  int
	Offset int
}

// UpsertStats reports the outcome of a business upsert batch.
type UpsertStats struct {
	Created int
	Reused  int
}

// Store defines the persistence interface for the discovery pipeline.
//
// The work-selection queries (ListUnenriched, ListScrapeCandidates) are the
// pipeline's resume mechanism: each stage re-derives its work set from rows
// not yet filled, so re-running a stage after a crash converges instead of
// double-counting.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	// ClaimPendingJobs atomically flips up to limit pending jobs (oldest
	// first) to running and returns them.
	ClaimPendingJobs(ctx context.Context, limit int) ([]model.Job, error)
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error
	// AdvanceJobStep records a stage checkpoint. A checkpoint never
	// regresses: advancing to a step at or before the current one is a no-op.
	AdvanceJobStep(ctx context.Context, id string, step model.Step) error
	// AddJobCounters accumulates progress counters and bumps the heartbeat.
	AddJobCounters(ctx context.Context, id string, delta model.JobCounters) error
	SetJobCost(ctx context.Context, id string, cost float64) error
	// RecordJobError marks the job failed with the message, leaving the
	// checkpoint intact so a retry resumes rather than restarts.
	RecordJobError(ctx context.Context, id string, msg string) error
	// ResetStalledJobs flips running jobs whose heartbeat is older than the
	// timeout back to pending. Returns the number reset.
	ResetStalledJobs(ctx context.Context, stallTimeout time.Duration) (int, error)

	// Businesses
	// UpsertBusinesses inserts businesses deduplicated globally by place id
	// and records job and user access rows in the same transaction, so a
	// crash cannot leave a discovered business unreachable.
	UpsertBusinesses(ctx context.Context, jobID, userID string, businesses []model.Business) (UpsertStats, error)
	ListUnenriched(ctx context.Context, jobID string) ([]model.Business, error)
	ListScrapeCandidates(ctx context.Context, jobID string, minDomainConfidence int) ([]model.Business, error)
	SaveEnrichment(ctx context.Context, businessID string, e model.Enrichment) error
	// SaveScrape persists a scrape result. First success wins: a recorded
	// non-empty email is never overwritten.
	SaveScrape(ctx context.Context, businessID string, r model.ScrapeRecord) error
	ListJobBusinesses(ctx context.Context, jobID string) ([]model.Business, error)

	// Discovery progress
	// MarkZipProcessed durably records that a job finished searching a zip.
	// Returns false when the zip was already recorded, so a resumed discovery
	// stage neither repeats the search nor re-adds its counter deltas.
	MarkZipProcessed(ctx context.Context, jobID, zip string) (bool, error)
	ListProcessedZips(ctx context.Context, jobID string) (map[string]struct{}, error)

	// Zip tiles
	InsertZipTiles(ctx context.Context, tiles []model.ZipTile) (int64, error)
	// TopZipTiles returns the top percent-of-population tiles for the given
	// states (nil or empty = nationwide), capped at maxTiles.
	TopZipTiles(ctx context.Context, states []string, percent int, maxTiles int) ([]model.ZipTile, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
