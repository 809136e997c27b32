package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL,
	business_type         TEXT NOT NULL,
	geography             TEXT NOT NULL,
	zip_percentage        INTEGER NOT NULL,
	min_domain_confidence INTEGER NOT NULL DEFAULT 0,
	status                TEXT NOT NULL DEFAULT 'pending',
	current_step          TEXT NOT NULL DEFAULT 'pending',
	zips_total            INTEGER NOT NULL DEFAULT 0,
	zips_processed        INTEGER NOT NULL DEFAULT 0,
	businesses_found      INTEGER NOT NULL DEFAULT 0,
	businesses_enriched   INTEGER NOT NULL DEFAULT 0,
	businesses_scraped    INTEGER NOT NULL DEFAULT 0,
	places_calls          INTEGER NOT NULL DEFAULT 0,
	serp_calls            INTEGER NOT NULL DEFAULT 0,
	llm_calls             INTEGER NOT NULL DEFAULT 0,
	estimated_cost        REAL NOT NULL DEFAULT 0,
	error_log             TEXT NOT NULL DEFAULT '',
	last_progress_at      DATETIME NOT NULL,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS businesses (
	id               TEXT PRIMARY KEY,
	place_id         TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	address          TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	zip              TEXT NOT NULL DEFAULT '',
	latitude         REAL NOT NULL DEFAULT 0,
	longitude        REAL NOT NULL DEFAULT 0,
	website          TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	serp_domain      TEXT NOT NULL DEFAULT '',
	serp_domain_conf INTEGER NOT NULL DEFAULT 0,
	serp_email       TEXT NOT NULL DEFAULT '',
	serp_email_conf  INTEGER NOT NULL DEFAULT 0,
	serp_phone       TEXT NOT NULL DEFAULT '',
	serp_phone_conf  INTEGER NOT NULL DEFAULT 0,
	enriched_at      DATETIME,
	scrape_email     TEXT NOT NULL DEFAULT '',
	scrape_phone     TEXT NOT NULL DEFAULT '',
	scrape_error     TEXT NOT NULL DEFAULT '',
	scraped_at       DATETIME,
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS job_businesses (
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	business_id TEXT NOT NULL REFERENCES businesses(id),
	was_reused  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (job_id, business_id)
);

CREATE TABLE IF NOT EXISTS user_businesses (
	user_id     TEXT NOT NULL,
	business_id TEXT NOT NULL REFERENCES businesses(id),
	PRIMARY KEY (user_id, business_id)
);

CREATE TABLE IF NOT EXISTS job_zips (
	job_id TEXT NOT NULL REFERENCES jobs(id),
	zip    TEXT NOT NULL,
	PRIMARY KEY (job_id, zip)
);

CREATE TABLE IF NOT EXISTS zip_tiles (
	zip        TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	population INTEGER NOT NULL DEFAULT 0,
	latitude   REAL NOT NULL DEFAULT 0,
	longitude  REAL NOT NULL DEFAULT 0,
	radius_m   REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_businesses_enriched ON businesses(enriched_at);
CREATE INDEX IF NOT EXISTS idx_job_businesses_job ON job_businesses(job_id);
CREATE INDEX IF NOT EXISTS idx_zip_tiles_state ON zip_tiles(state, population);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusPending
	job.CurrentStep = model.StepPending
	job.CreatedAt = now
	job.UpdatedAt = now
	job.LastProgressAt = now

	geo, err := json.Marshal(job.Geography)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal geography")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, user_id, business_type, geography, zip_percentage, min_domain_confidence,
			status, current_step, last_progress_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.BusinessType, string(geo), job.ZipPercentage, job.MinDomainConfidence,
		string(job.Status), job.CurrentStep.String(), now, now, now,
	)
	return eris.Wrap(err, "sqlite: insert job")
}

const jobColumns = `id, user_id, business_type, geography, zip_percentage, min_domain_confidence,
	status, current_step, zips_total, zips_processed, businesses_found, businesses_enriched,
	businesses_scraped, places_calls, serp_calls, llm_calls, estimated_cost, error_log,
	last_progress_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	var geo, status, step string
	err := row.Scan(&j.ID, &j.UserID, &j.BusinessType, &geo, &j.ZipPercentage, &j.MinDomainConfidence,
		&status, &step, &j.Counters.ZipsTotal, &j.Counters.ZipsProcessed, &j.Counters.BusinessesFound,
		&j.Counters.BusinessesEnriched, &j.Counters.BusinessesScraped, &j.Counters.PlacesCalls,
		&j.Counters.SerpCalls, &j.Counters.LLMCalls, &j.EstimatedCost, &j.ErrorLog,
		&j.LastProgressAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(geo), &j.Geography); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal geography")
	}
	j.Status = model.JobStatus(status)
	j.CurrentStep = model.ParseStep(step)
	return &j, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: job %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get job")
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *SQLiteStore) ClaimPendingJobs(ctx context.Context, limit int) ([]model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin claim")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: select pending")
	}
	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan pending")
		}
		jobs = append(jobs, *j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate pending")
	}

	now := time.Now().UTC()
	for i := range jobs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = 'running', last_progress_at = ?, updated_at = ? WHERE id = ?`,
			now, now, jobs[i].ID); err != nil {
			return nil, eris.Wrap(err, "sqlite: claim job")
		}
		jobs[i].Status = model.JobStatusRunning
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit claim")
	}
	return jobs, nil
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "sqlite: update job status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: job %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) AdvanceJobStep(ctx context.Context, id string, step model.Step) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	// Checkpoints never regress.
	if job.CurrentStep.Done(step) {
		return nil
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET current_step = ?, last_progress_at = ?, updated_at = ? WHERE id = ?`,
		step.String(), now, now, id)
	return eris.Wrap(err, "sqlite: advance job step")
}

func (s *SQLiteStore) AddJobCounters(ctx context.Context, id string, delta model.JobCounters) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET
			zips_total = zips_total + ?,
			zips_processed = zips_processed + ?,
			businesses_found = businesses_found + ?,
			businesses_enriched = businesses_enriched + ?,
			businesses_scraped = businesses_scraped + ?,
			places_calls = places_calls + ?,
			serp_calls = serp_calls + ?,
			llm_calls = llm_calls + ?,
			last_progress_at = ?,
			updated_at = ?
		WHERE id = ?`,
		delta.ZipsTotal, delta.ZipsProcessed, delta.BusinessesFound, delta.BusinessesEnriched,
		delta.BusinessesScraped, delta.PlacesCalls, delta.SerpCalls, delta.LLMCalls,
		now, now, id)
	return eris.Wrap(err, "sqlite: add job counters")
}

func (s *SQLiteStore) SetJobCost(ctx context.Context, id string, cost float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET estimated_cost = ?, updated_at = ? WHERE id = ?`,
		cost, time.Now().UTC(), id)
	return eris.Wrap(err, "sqlite: set job cost")
}

func (s *SQLiteStore) RecordJobError(ctx context.Context, id string, msg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'failed', error_log = ?, updated_at = ? WHERE id = ?`,
		msg, time.Now().UTC(), id)
	return eris.Wrap(err, "sqlite: record job error")
}

func (s *SQLiteStore) ResetStalledJobs(ctx context.Context, stallTimeout time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-stallTimeout)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'pending', updated_at = ? WHERE status = 'running' AND last_progress_at < ?`,
		time.Now().UTC(), cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset stalled jobs")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) UpsertBusinesses(ctx context.Context, jobID, userID string, businesses []model.Business) (UpsertStats, error) {
	var stats UpsertStats
	if len(businesses) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, b := range businesses {
		var existingID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM businesses WHERE place_id = ?`, b.PlaceID).Scan(&existingID)
		reused := err == nil
		if err != nil && err != sql.ErrNoRows {
			return stats, eris.Wrap(err, "sqlite: lookup place id")
		}

		id := existingID
		if !reused {
			id = uuid.New().String()
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO businesses (id, place_id, name, address, city, state, zip, latitude, longitude, website, phone, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, b.PlaceID, b.Name, b.Address, b.City, b.State, b.Zip, b.Latitude, b.Longitude, b.Website, b.Phone, now,
			); err != nil {
				return stats, eris.Wrap(err, "sqlite: insert business")
			}
			stats.Created++
		} else {
			stats.Reused++
		}

		wasReused := 0
		if reused {
			wasReused = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO job_businesses (job_id, business_id, was_reused) VALUES (?, ?, ?)`,
			jobID, id, wasReused); err != nil {
			return stats, eris.Wrap(err, "sqlite: insert job business")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_businesses (user_id, business_id) VALUES (?, ?)`,
			userID, id); err != nil {
			return stats, eris.Wrap(err, "sqlite: insert user business")
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, eris.Wrap(err, "sqlite: commit upsert")
	}
	return stats, nil
}

const businessColumns = `b.id, b.place_id, b.name, b.address, b.city, b.state, b.zip, b.latitude, b.longitude,
	b.website, b.phone, b.serp_domain, b.serp_domain_conf, b.serp_email, b.serp_email_conf,
	b.serp_phone, b.serp_phone_conf, b.enriched_at, b.scrape_email, b.scrape_phone, b.scrape_error,
	b.scraped_at, b.created_at`

func scanBusiness(row rowScanner) (*model.Business, error) {
	var b model.Business
	var enrichedAt, scrapedAt sql.NullTime
	var scrapeErr string
	err := row.Scan(&b.ID, &b.PlaceID, &b.Name, &b.Address, &b.City, &b.State, &b.Zip,
		&b.Latitude, &b.Longitude, &b.Website, &b.Phone,
		&b.Enrichment.Domain, &b.Enrichment.DomainConfidence,
		&b.Enrichment.Email, &b.Enrichment.EmailConfidence,
		&b.Enrichment.Phone, &b.Enrichment.PhoneConfidence, &enrichedAt,
		&b.Scrape.Email, &b.Scrape.Phone, &scrapeErr, &scrapedAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if enrichedAt.Valid {
		t := enrichedAt.Time
		b.Enrichment.EnrichedAt = &t
	}
	if scrapedAt.Valid {
		t := scrapedAt.Time
		b.Scrape.ScrapedAt = &t
	}
	b.Scrape.ErrorCode = model.ScrapeErrorCode(scrapeErr)
	return &b, nil
}

func (s *SQLiteStore) queryBusinesses(ctx context.Context, query string, args ...any) ([]model.Business, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query businesses")
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business")
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListUnenriched(ctx context.Context, jobID string) ([]model.Business, error) {
	return s.queryBusinesses(ctx, `
		SELECT `+businessColumns+` FROM businesses b
		JOIN job_businesses jb ON jb.business_id = b.id
		WHERE jb.job_id = ? AND b.enriched_at IS NULL
		ORDER BY b.created_at ASC`, jobID)
}

func (s *SQLiteStore) ListScrapeCandidates(ctx context.Context, jobID string, minDomainConfidence int) ([]model.Business, error) {
	return s.queryBusinesses(ctx, `
		SELECT `+businessColumns+` FROM businesses b
		JOIN job_businesses jb ON jb.business_id = b.id
		WHERE jb.job_id = ?
			AND b.scraped_at IS NULL
			AND b.serp_domain != ''
			AND b.serp_domain_conf >= ?
		ORDER BY b.created_at ASC`, jobID, minDomainConfidence)
}

func (s *SQLiteStore) SaveEnrichment(ctx context.Context, businessID string, e model.Enrichment) error {
	enrichedAt := time.Now().UTC()
	if e.EnrichedAt != nil {
		enrichedAt = e.EnrichedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE businesses SET
			serp_domain = ?, serp_domain_conf = ?,
			serp_email = ?, serp_email_conf = ?,
			serp_phone = ?, serp_phone_conf = ?,
			enriched_at = ?
		WHERE id = ? AND enriched_at IS NULL`,
		e.Domain, e.DomainConfidence, e.Email, e.EmailConfidence, e.Phone, e.PhoneConfidence,
		enrichedAt, businessID)
	return eris.Wrap(err, "sqlite: save enrichment")
}

func (s *SQLiteStore) SaveScrape(ctx context.Context, businessID string, r model.ScrapeRecord) error {
	scrapedAt := time.Now().UTC()
	if r.ScrapedAt != nil {
		scrapedAt = r.ScrapedAt.UTC()
	}
	// First success wins: never overwrite a recorded email.
	_, err := s.db.ExecContext(ctx, `
		UPDATE businesses SET scrape_email = ?, scrape_phone = ?, scrape_error = ?, scraped_at = ?
		WHERE id = ? AND scrape_email = ''`,
		r.Email, r.Phone, string(r.ErrorCode), scrapedAt, businessID)
	return eris.Wrap(err, "sqlite: save scrape")
}

func (s *SQLiteStore) ListJobBusinesses(ctx context.Context, jobID string) ([]model.Business, error) {
	return s.queryBusinesses(ctx, `
		SELECT `+businessColumns+` FROM businesses b
		JOIN job_businesses jb ON jb.business_id = b.id
		WHERE jb.job_id = ?
		ORDER BY b.created_at ASC`, jobID)
}

func (s *SQLiteStore) MarkZipProcessed(ctx context.Context, jobID, zip string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO job_zips (job_id, zip) VALUES (?, ?)`, jobID, zip)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: mark zip processed")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) ListProcessedZips(ctx context.Context, jobID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT zip FROM job_zips WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list processed zips")
	}
	defer rows.Close()

	processed := make(map[string]struct{})
	for rows.Next() {
		var zip string
		if err := rows.Scan(&zip); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan processed zip")
		}
		processed[zip] = struct{}{}
	}
	return processed, rows.Err()
}

func (s *SQLiteStore) InsertZipTiles(ctx context.Context, tiles []model.ZipTile) (int64, error) {
	if len(tiles) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin zip insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO zip_tiles (zip, state, population, latitude, longitude, radius_m)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(zip) DO UPDATE SET
			state = excluded.state,
			population = excluded.population,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			radius_m = excluded.radius_m`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare zip insert")
	}
	defer stmt.Close()

	var n int64
	for _, t := range tiles {
		if _, err := stmt.ExecContext(ctx, t.Zip, t.State, t.Population, t.Latitude, t.Longitude, t.RadiusMeters); err != nil {
			return n, eris.Wrapf(err, "sqlite: insert zip %s", t.Zip)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit zip insert")
	}
	return n, nil
}

func (s *SQLiteStore) TopZipTiles(ctx context.Context, states []string, percent int, maxTiles int) ([]model.ZipTile, error) {
	if percent <= 0 || percent > 100 {
		return nil, eris.Errorf("sqlite: percent must be 1-100, got %d", percent)
	}

	where := ""
	var args []any
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, st := range states {
			placeholders[i] = "?"
			args = append(args, st)
		}
		where = " WHERE state IN (" + strings.Join(placeholders, ", ") + ")"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM zip_tiles`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count zip tiles")
	}

	limit := (total*percent + 99) / 100
	if maxTiles > 0 && limit > maxTiles {
		limit = maxTiles
	}
	if limit == 0 {
		return nil, nil
	}

	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT zip, state, population, latitude, longitude, radius_m FROM zip_tiles`+where+
			` ORDER BY population DESC LIMIT ?`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top zip tiles")
	}
	defer rows.Close()

	var tiles []model.ZipTile
	for rows.Next() {
		var t model.ZipTile
		if err := rows.Scan(&t.Zip, &t.State, &t.Population, &t.Latitude, &t.Longitude, &t.RadiusMeters); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zip tile")
		}
		tiles = append(tiles, t)
	}
	return tiles, rows.Err()
}
