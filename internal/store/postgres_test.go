package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresUpdateJobStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs("completed", "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateJobStatus(context.Background(), "job-1", model.JobStatusCompleted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateJobStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs("running", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateJobStatus(context.Background(), "missing", model.JobStatusRunning)
	assert.Error(t, err)
}

func TestPostgresAdvanceJobStep_GuardsRegression(t *testing.T) {
	s, mock := newMockStore(t)

	// The WHERE clause carries the regression guard; a regressing advance
	// simply matches zero rows.
	mock.ExpectExec("UPDATE jobs SET current_step").
		WithArgs("places", "job-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.AdvanceJobStep(context.Background(), "job-1", model.StepPlaces)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResetStalledJobs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET status = 'pending'").
		WithArgs("120 seconds").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := s.ResetStalledJobs(context.Background(), 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveScrape_FirstSuccessGuard(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE businesses SET scrape_email").
		WithArgs("info@x.com", "(212) 555-0100", "", pgxmock.AnyArg(), "biz-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SaveScrape(context.Background(), "biz-1", model.ScrapeRecord{
		Email: "info@x.com",
		Phone: "(212) 555-0100",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddJobCounters(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET").
		WithArgs(0, 5, 12, 0, 0, 5, 0, 0, "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.AddJobCounters(context.Background(), "job-1", model.JobCounters{
		ZipsProcessed:   5,
		BusinessesFound: 12,
		PlacesCalls:     5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkZipProcessed_ConflictIsNotNew(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO job_zips").
		WithArgs("job-1", "75001").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO job_zips").
		WithArgs("job-1", "75001").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	newly, err := s.MarkZipProcessed(context.Background(), "job-1", "75001")
	require.NoError(t, err)
	assert.True(t, newly)

	newly, err = s.MarkZipProcessed(context.Background(), "job-1", "75001")
	require.NoError(t, err)
	assert.False(t, newly)
	assert.NoError(t, mock.ExpectationsWereMet())
}
