package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestJob(t *testing.T, s Store) *model.Job {
	t.Helper()
	job := &model.Job{
		UserID:              "user-1",
		BusinessType:        "chiropractor",
		Geography:           []string{"TX"},
		ZipPercentage:       20,
		MinDomainConfidence: 70,
	}
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateAndGetJob", func(t *testing.T) {
		s := newStore(t)
		job := newTestJob(t, s)

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, model.StepPending, got.CurrentStep)
		assert.Equal(t, []string{"TX"}, got.Geography)
		assert.Equal(t, 70, got.MinDomainConfidence)
	})

	t.Run("GetJobNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetJob(ctx, "nope")
		assert.Error(t, err)
	})

	t.Run("ClaimPendingOldestFirst", func(t *testing.T) {
		s := newStore(t)
		first := newTestJob(t, s)
		time.Sleep(5 * time.Millisecond)
		second := newTestJob(t, s)
		time.Sleep(5 * time.Millisecond)
		newTestJob(t, s)

		claimed, err := s.ClaimPendingJobs(ctx, 2)
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		assert.Equal(t, first.ID, claimed[0].ID)
		assert.Equal(t, second.ID, claimed[1].ID)
		for _, j := range claimed {
			got, err := s.GetJob(ctx, j.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusRunning, got.Status)
		}

		// Already-claimed jobs are not handed out twice.
		claimed, err = s.ClaimPendingJobs(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, claimed, 1)
	})

	t.Run("StepNeverRegresses", func(t *testing.T) {
		s := newStore(t)
		job := newTestJob(t, s)

		require.NoError(t, s.AdvanceJobStep(ctx, job.ID, model.StepEnrichment))
		require.NoError(t, s.AdvanceJobStep(ctx, job.ID, model.StepZips))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StepEnrichment, got.CurrentStep)
	})

	t.Run("CountersAccumulateAndHeartbeat", func(t *testing.T) {
		s := newStore(t)
		job := newTestJob(t, s)
		before, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		require.NoError(t, s.AddJobCounters(ctx, job.ID, model.JobCounters{ZipsProcessed: 3, PlacesCalls: 3}))
		require.NoError(t, s.AddJobCounters(ctx, job.ID, model.JobCounters{ZipsProcessed: 2, BusinessesFound: 9}))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Counters.ZipsProcessed)
		assert.Equal(t, 9, got.Counters.BusinessesFound)
		assert.Equal(t, 3, got.Counters.PlacesCalls)
		assert.True(t, got.LastProgressAt.After(before.LastProgressAt))
	})

	t.Run("RecordErrorKeepsCheckpoint", func(t *testing.T) {
		s := newStore(t)
		job := newTestJob(t, s)
		require.NoError(t, s.AdvanceJobStep(ctx, job.ID, model.StepPlaces))
		require.NoError(t, s.RecordJobError(ctx, job.ID, "places adapter: quota exceeded"))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		assert.Equal(t, model.StepPlaces, got.CurrentStep)
		assert.Contains(t, got.ErrorLog, "quota exceeded")
	})

	t.Run("ResetStalledJobs", func(t *testing.T) {
		s := newStore(t)
		job := newTestJob(t, s)
		claimed, err := s.ClaimPendingJobs(ctx, 1)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		// Heartbeat is fresh: nothing to reset.
		n, err := s.ResetStalledJobs(ctx, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		// With a zero-tolerance timeout the running job counts as stalled.
		time.Sleep(10 * time.Millisecond)
		n, err = s.ResetStalledJobs(ctx, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
	})

	t.Run("UpsertDedupByPlaceID", func(t *testing.T) {
		s := newStore(t)
		jobA := newTestJob(t, s)
		jobB := newTestJob(t, s)

		businesses := []model.Business{
			{PlaceID: "place-1", Name: "Acme Chiro"},
			{PlaceID: "place-2", Name: "Back In Line"},
		}
		stats, err := s.UpsertBusinesses(ctx, jobA.ID, jobA.UserID, businesses)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Created)
		assert.Equal(t, 0, stats.Reused)

		// Second job rediscovers one of the places: reused, not duplicated.
		stats, err = s.UpsertBusinesses(ctx, jobB.ID, jobB.UserID, []model.Business{
			{PlaceID: "place-1", Name: "Acme Chiro"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Created)
		assert.Equal(t, 1, stats.Reused)

		listA, err := s.ListJobBusinesses(ctx, jobA.ID)
		require.NoError(t, err)
		assert.Len(t, listA, 2)
		listB, err := s.ListJobBusinesses(ctx, jobB.ID)
		require.NoError(t, err)
		require.Len(t, listB, 1)

		// Both jobs see the same row for the shared place id.
		var sharedID string
		for _, b := range listA {
			if b.PlaceID == "place-1" {
				sharedID = b.ID
			}
		}
		require.NotEmpty(t, sharedID)
		assert.Equal(t, sharedID, listB[0].ID)
	})

	t.Run("MarkZipProcessedOncePerJob", func(t *testing.T) {
		s := newStore(t)
		jobA := newTestJob(t, s)
		jobB := newTestJob(t, s)

		newly, err := s.MarkZipProcessed(ctx, jobA.ID, "75001")
		require.NoError(t, err)
		assert.True(t, newly)

		// Re-marking reports the zip as already done.
		newly, err = s.MarkZipProcessed(ctx, jobA.ID, "75001")
		require.NoError(t, err)
		assert.False(t, newly)

		// Completion is scoped per job.
		newly, err = s.MarkZipProcessed(ctx, jobB.ID, "75001")
		require.NoError(t, err)
		assert.True(t, newly)

		_, err = s.MarkZipProcessed(ctx, jobA.ID, "78701")
		require.NoError(t, err)

		processed, err := s.ListProcessedZips(ctx, jobA.ID)
		require.NoError(t, err)
		assert.Len(t, processed, 2)
		assert.Contains(t, processed, "75001")
		assert.Contains(t, processed, "78701")
	})

	t.Run("EnrichmentWorkSetAndIdempotence", func(t *testing.T) {
		s := newStore(t)
		job := newTestJob(t, s)
		_, err := s.UpsertBusinesses(ctx, job.ID, job.UserID, []model.Business{
			{PlaceID: "p1", Name: "One"},
			{PlaceID: "p2", Name: "Two"},
		})
		require.NoError(t, err)

		pending, err := s.ListUnenriched(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, pending, 2)

		require.NoError(t, s.SaveEnrichment(ctx, pending[0].ID, model.Enrichment{
			Domain: "one.com", DomainConfidence: 90,
		}))

		// Work set shrinks: re-running the stage only sees unfilled rows.
		pending2, err := s.ListUnenriched(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, pending2, 1)
		assert.Equal(t, "p2", pending2[0].PlaceID)

		// A second write against an enriched row is a no-op.
		require.NoError(t, s.SaveEnrichment(ctx, pending[0].ID, model.Enrichment{
			Domain: "evil.com", DomainConfidence: 10,
		}))
		all, err := s.ListJobBusinesses(ctx, job.ID)
		require.NoError(t, err)
		for _, b := range all {
			if b.PlaceID == "p1" {
				assert.Equal(t, "one.com", b.Enrichment.Domain)
			}
		}
	})

	t.Run("ScrapeCandidatesRespectConfidenceGate", func(t *testing.T) {
		s := newStore(t)
		job := newTestJob(t, s)
		_, err := s.UpsertBusinesses(ctx, job.ID, job.UserID, []model.Business{
			{PlaceID: "hi", Name: "High"},
			{PlaceID: "lo", Name: "Low"},
			{PlaceID: "none", Name: "NoDomain"},
		})
		require.NoError(t, err)

		all, err := s.ListJobBusinesses(ctx, job.ID)
		require.NoError(t, err)
		for _, b := range all {
			switch b.PlaceID {
			case "hi":
				require.NoError(t, s.SaveEnrichment(ctx, b.ID, model.Enrichment{Domain: "high.com", DomainConfidence: 85}))
			case "lo":
				require.NoError(t, s.SaveEnrichment(ctx, b.ID, model.Enrichment{Domain: "low.com", DomainConfidence: 30}))
			case "none":
				require.NoError(t, s.SaveEnrichment(ctx, b.ID, model.Enrichment{}))
			}
		}

		candidates, err := s.ListScrapeCandidates(ctx, job.ID, 70)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "hi", candidates[0].PlaceID)
	})

	t.Run("ScrapeFirstSuccessWins", func(t *testing.T) {
		s := newStore(t)
		job := newTestJob(t, s)
		_, err := s.UpsertBusinesses(ctx, job.ID, job.UserID, []model.Business{{PlaceID: "p", Name: "P"}})
		require.NoError(t, err)
		all, err := s.ListJobBusinesses(ctx, job.ID)
		require.NoError(t, err)
		id := all[0].ID

		require.NoError(t, s.SaveScrape(ctx, id, model.ScrapeRecord{Email: "info@p.com", Phone: "(212) 555-0100"}))
		require.NoError(t, s.SaveScrape(ctx, id, model.ScrapeRecord{Email: "other@p.com"}))

		all, err = s.ListJobBusinesses(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "info@p.com", all[0].Scrape.Email)
		assert.Equal(t, "(212) 555-0100", all[0].Scrape.Phone)
	})

	t.Run("TopZipTiles", func(t *testing.T) {
		s := newStore(t)
		tiles := []model.ZipTile{
			{Zip: "75001", State: "TX", Population: 50000},
			{Zip: "75002", State: "TX", Population: 90000},
			{Zip: "75003", State: "TX", Population: 10000},
			{Zip: "75004", State: "TX", Population: 70000},
			{Zip: "10001", State: "NY", Population: 99000},
		}
		n, err := s.InsertZipTiles(ctx, tiles)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		// Top 50% of 4 TX tiles = 2, highest population first.
		top, err := s.TopZipTiles(ctx, []string{"TX"}, 50, 0)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "75002", top[0].Zip)
		assert.Equal(t, "75004", top[1].Zip)

		// Nationwide includes NY; cap applies after the percent cut.
		top, err = s.TopZipTiles(ctx, nil, 100, 3)
		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, "10001", top[0].Zip)

		_, err = s.TopZipTiles(ctx, nil, 0, 0)
		assert.Error(t, err)
	})
}
