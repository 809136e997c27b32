package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/db"
	"github.com/sells-group/prospector/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL,
	business_type         TEXT NOT NULL,
	geography             JSONB NOT NULL,
	zip_percentage        INT NOT NULL,
	min_domain_confidence INT NOT NULL DEFAULT 0,
	status                TEXT NOT NULL DEFAULT 'pending',
	current_step          TEXT NOT NULL DEFAULT 'pending',
	zips_total            INT NOT NULL DEFAULT 0,
	zips_processed        INT NOT NULL DEFAULT 0,
	businesses_found      INT NOT NULL DEFAULT 0,
	businesses_enriched   INT NOT NULL DEFAULT 0,
	businesses_scraped    INT NOT NULL DEFAULT 0,
	places_calls          INT NOT NULL DEFAULT 0,
	serp_calls            INT NOT NULL DEFAULT 0,
	llm_calls             INT NOT NULL DEFAULT 0,
	estimated_cost        DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_log             TEXT NOT NULL DEFAULT '',
	last_progress_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS businesses (
	id               TEXT PRIMARY KEY,
	place_id         TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	address          TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	zip              TEXT NOT NULL DEFAULT '',
	latitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
	website          TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	serp_domain      TEXT NOT NULL DEFAULT '',
	serp_domain_conf INT NOT NULL DEFAULT 0,
	serp_email       TEXT NOT NULL DEFAULT '',
	serp_email_conf  INT NOT NULL DEFAULT 0,
	serp_phone       TEXT NOT NULL DEFAULT '',
	serp_phone_conf  INT NOT NULL DEFAULT 0,
	enriched_at      TIMESTAMPTZ,
	scrape_email     TEXT NOT NULL DEFAULT '',
	scrape_phone     TEXT NOT NULL DEFAULT '',
	scrape_error     TEXT NOT NULL DEFAULT '',
	scraped_at       TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_businesses (
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	business_id TEXT NOT NULL REFERENCES businesses(id),
	was_reused  BOOLEAN NOT NULL DEFAULT false,
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
	population INT NOT NULL DEFAULT 0,
	latitude   DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
	radius_m   DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_businesses_enriched ON businesses(enriched_at);
CREATE INDEX IF NOT EXISTS idx_job_businesses_job ON job_businesses(job_id);
CREATE INDEX IF NOT EXISTS idx_zip_tiles_state ON zip_tiles(state, population DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.Job) error {
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
		return eris.Wrap(err, "postgres: marshal geography")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, user_id, business_type, geography, zip_percentage, min_domain_confidence,
			status, current_step, last_progress_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.UserID, job.BusinessType, geo, job.ZipPercentage, job.MinDomainConfidence,
		string(job.Status), job.CurrentStep.String(), now, now, now,
	)
	return eris.Wrap(err, "postgres: insert job")
}

const pgJobColumns = `id, user_id, business_type, geography, zip_percentage, min_domain_confidence,
	status, current_step, zips_total, zips_processed, businesses_found, businesses_enriched,
	businesses_scraped, places_calls, serp_calls, llm_calls, estimated_cost, error_log,
	last_progress_at, created_at, updated_at`

func scanPgJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var geo []byte
	var status, step string
	err := row.Scan(&j.ID, &j.UserID, &j.BusinessType, &geo, &j.ZipPercentage, &j.MinDomainConfidence,
		&status, &step, &j.Counters.ZipsTotal, &j.Counters.ZipsProcessed, &j.Counters.BusinessesFound,
		&j.Counters.BusinessesEnriched, &j.Counters.BusinessesScraped, &j.Counters.PlacesCalls,
		&j.Counters.SerpCalls, &j.Counters.LLMCalls, &j.EstimatedCost, &j.ErrorLog,
		&j.LastProgressAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(geo, &j.Geography); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal geography")
	}
	j.Status = model.JobStatus(status)
	j.CurrentStep = model.ParseStep(step)
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgJobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanPgJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: job %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get job")
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + pgJobColumns + ` FROM jobs`
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) ClaimPendingJobs(ctx context.Context, limit int) ([]model.Job, error) {
	// FOR UPDATE SKIP LOCKED makes concurrent workers claim disjoint jobs.
	rows, err := s.pool.Query(ctx, `
		UPDATE jobs SET status = 'running', last_progress_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM jobs WHERE status = 'pending'
			ORDER BY created_at ASC LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+pgJobColumns, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim pending jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan claimed job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return eris.Wrap(err, "postgres: update job status")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: job %s not found", id)
	}
	return nil
}

// stepOrder mirrors the Step enum for SQL-side regression checks.
var stepOrder = map[string]int{
	"pending": 0, "zips": 1, "places": 2, "enrichment": 3, "scraping": 4, "completed": 5,
}

func (s *PostgresStore) AdvanceJobStep(ctx context.Context, id string, step model.Step) error {
	// The CASE ladder keeps the no-regression check inside a single UPDATE.
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET current_step = $1, last_progress_at = now(), updated_at = now()
		WHERE id = $2 AND
			CASE current_step
				WHEN 'pending' THEN 0 WHEN 'zips' THEN 1 WHEN 'places' THEN 2
				WHEN 'enrichment' THEN 3 WHEN 'scraping' THEN 4 ELSE 5
			END < $3`,
		step.String(), id, stepOrder[step.String()])
	return eris.Wrap(err, "postgres: advance job step")
}

func (s *PostgresStore) AddJobCounters(ctx context.Context, id string, delta model.JobCounters) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			zips_total = zips_total + $1,
			zips_processed = zips_processed + $2,
			businesses_found = businesses_found + $3,
			businesses_enriched = businesses_enriched + $4,
			businesses_scraped = businesses_scraped + $5,
			places_calls = places_calls + $6,
			serp_calls = serp_calls + $7,
			llm_calls = llm_calls + $8,
			last_progress_at = now(),
			updated_at = now()
		WHERE id = $9`,
		delta.ZipsTotal, delta.ZipsProcessed, delta.BusinessesFound, delta.BusinessesEnriched,
		delta.BusinessesScraped, delta.PlacesCalls, delta.SerpCalls, delta.LLMCalls, id)
	return eris.Wrap(err, "postgres: add job counters")
}

func (s *PostgresStore) SetJobCost(ctx context.Context, id string, cost float64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET estimated_cost = $1, updated_at = now() WHERE id = $2`, cost, id)
	return eris.Wrap(err, "postgres: set job cost")
}

func (s *PostgresStore) RecordJobError(ctx context.Context, id string, msg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', error_log = $1, updated_at = now() WHERE id = $2`, msg, id)
	return eris.Wrap(err, "postgres: record job error")
}

func (s *PostgresStore) ResetStalledJobs(ctx context.Context, stallTimeout time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'pending', updated_at = now()
		WHERE status = 'running' AND last_progress_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(stallTimeout.Seconds())))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset stalled jobs")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) UpsertBusinesses(ctx context.Context, jobID, userID string, businesses []model.Business) (UpsertStats, error) {
	var stats UpsertStats
	if len(businesses) == 0 {
		return stats, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx)

	for _, b := range businesses {
		id := uuid.New().String()
		var insertedID string
		err := tx.QueryRow(ctx, `
			INSERT INTO businesses (id, place_id, name, address, city, state, zip, latitude, longitude, website, phone)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (place_id) DO NOTHING
			RETURNING id`,
			id, b.PlaceID, b.Name, b.Address, b.City, b.State, b.Zip, b.Latitude, b.Longitude, b.Website, b.Phone,
		).Scan(&insertedID)

		reused := false
		switch {
		case err == nil:
			stats.Created++
		case errors.Is(err, pgx.ErrNoRows):
			reused = true
			stats.Reused++
			if err := tx.QueryRow(ctx,
				`SELECT id FROM businesses WHERE place_id = $1`, b.PlaceID).Scan(&insertedID); err != nil {
				return stats, eris.Wrap(err, "postgres: lookup place id")
			}
		default:
			return stats, eris.Wrap(err, "postgres: insert business")
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO job_businesses (job_id, business_id, was_reused)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			jobID, insertedID, reused); err != nil {
			return stats, eris.Wrap(err, "postgres: insert job business")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_businesses (user_id, business_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, insertedID); err != nil {
			return stats, eris.Wrap(err, "postgres: insert user business")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, eris.Wrap(err, "postgres: commit upsert")
	}
	return stats, nil
}

const pgBusinessColumns = `b.id, b.place_id, b.name, b.address, b.city, b.state, b.zip, b.latitude, b.longitude,
	b.website, b.phone, b.serp_domain, b.serp_domain_conf, b.serp_email, b.serp_email_conf,
	b.serp_phone, b.serp_phone_conf, b.enriched_at, b.scrape_email, b.scrape_phone, b.scrape_error,
	b.scraped_at, b.created_at`

func scanPgBusiness(row pgx.Row) (*model.Business, error) {
	var b model.Business
	var enrichedAt, scrapedAt *time.Time
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
	b.Enrichment.EnrichedAt = enrichedAt
	b.Scrape.ScrapedAt = scrapedAt
	b.Scrape.ErrorCode = model.ScrapeErrorCode(scrapeErr)
	return &b, nil
}

func (s *PostgresStore) queryBusinesses(ctx context.Context, query string, args ...any) ([]model.Business, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query businesses")
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanPgBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListUnenriched(ctx context.Context, jobID string) ([]model.Business, error) {
	return s.queryBusinesses(ctx, `
		SELECT `+pgBusinessColumns+` FROM businesses b
		JOIN job_businesses jb ON jb.business_id = b.id
		WHERE jb.job_id = $1 AND b.enriched_at IS NULL
		ORDER BY b.created_at ASC`, jobID)
}

func (s *PostgresStore) ListScrapeCandidates(ctx context.Context, jobID string, minDomainConfidence int) ([]model.Business, error) {
	return s.queryBusinesses(ctx, `
		SELECT `+pgBusinessColumns+` FROM businesses b
		JOIN job_businesses jb ON jb.business_id = b.id
		WHERE jb.job_id = $1
			AND b.scraped_at IS NULL
			AND b.serp_domain != ''
			AND b.serp_domain_conf >= $2
		ORDER BY b.created_at ASC`, jobID, minDomainConfidence)
}

func (s *PostgresStore) SaveEnrichment(ctx context.Context, businessID string, e model.Enrichment) error {
	enrichedAt := time.Now().UTC()
	if e.EnrichedAt != nil {
		enrichedAt = e.EnrichedAt.UTC()
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE businesses SET
			serp_domain = $1, serp_domain_conf = $2,
			serp_email = $3, serp_email_conf = $4,
			serp_phone = $5, serp_phone_conf = $6,
			enriched_at = $7
		WHERE id = $8 AND enriched_at IS NULL`,
		e.Domain, e.DomainConfidence, e.Email, e.EmailConfidence, e.Phone, e.PhoneConfidence,
		enrichedAt, businessID)
	return eris.Wrap(err, "postgres: save enrichment")
}

func (s *PostgresStore) SaveScrape(ctx context.Context, businessID string, r model.ScrapeRecord) error {
	scrapedAt := time.Now().UTC()
	if r.ScrapedAt != nil {
		scrapedAt = r.ScrapedAt.UTC()
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE businesses SET scrape_email = $1, scrape_phone = $2, scrape_error = $3, scraped_at = $4
		WHERE id = $5 AND scrape_email = ''`,
		r.Email, r.Phone, string(r.ErrorCode), scrapedAt, businessID)
	return eris.Wrap(err, "postgres: save scrape")
}

func (s *PostgresStore) ListJobBusinesses(ctx context.Context, jobID string) ([]model.Business, error) {
	return s.queryBusinesses(ctx, `
		SELECT `+pgBusinessColumns+` FROM businesses b
		JOIN job_businesses jb ON jb.business_id = b.id
		WHERE jb.job_id = $1
		ORDER BY b.created_at ASC`, jobID)
}

func (s *PostgresStore) MarkZipProcessed(ctx context.Context, jobID, zip string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO job_zips (job_id, zip) VALUES ($1, $2) ON CONFLICT DO NOTHING`, jobID, zip)
	if err != nil {
		return false, eris.Wrap(err, "postgres: mark zip processed")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListProcessedZips(ctx context.Context, jobID string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT zip FROM job_zips WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list processed zips")
	}
	defer rows.Close()

	processed := make(map[string]struct{})
	for rows.Next() {
		var zip string
		if err := rows.Scan(&zip); err != nil {
			return nil, eris.Wrap(err, "postgres: scan processed zip")
		}
		processed[zip] = struct{}{}
	}
	return processed, rows.Err()
}

func (s *PostgresStore) InsertZipTiles(ctx context.Context, tiles []model.ZipTile) (int64, error) {
	if len(tiles) == 0 {
		return 0, nil
	}
	// Stage through a temp table then merge so reloads update in place.
	rows := make([][]any, len(tiles))
	for i, t := range tiles {
		rows[i] = []any{t.Zip, t.State, t.Population, t.Latitude, t.Longitude, t.RadiusMeters}
	}

	if _, err := s.pool.Exec(ctx, `
		CREATE TEMP TABLE IF NOT EXISTS zip_tiles_stage
		(LIKE zip_tiles INCLUDING ALL) ON COMMIT PRESERVE ROWS`); err != nil {
		return 0, eris.Wrap(err, "postgres: create zip stage")
	}

	n, err := db.CopyFrom(ctx, s.pool, "zip_tiles_stage",
		[]string{"zip", "state", "population", "latitude", "longitude", "radius_m"}, rows)
	if err != nil {
		return 0, err
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO zip_tiles (zip, state, population, latitude, longitude, radius_m)
		SELECT zip, state, population, latitude, longitude, radius_m FROM zip_tiles_stage
		ON CONFLICT (zip) DO UPDATE SET
			state = EXCLUDED.state,
			population = EXCLUDED.population,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			radius_m = EXCLUDED.radius_m`); err != nil {
		return 0, eris.Wrap(err, "postgres: merge zip tiles")
	}
	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS zip_tiles_stage`); err != nil {
		return 0, eris.Wrap(err, "postgres: drop zip stage")
	}
	return n, nil
}

func (s *PostgresStore) TopZipTiles(ctx context.Context, states []string, percent int, maxTiles int) ([]model.ZipTile, error) {
	if percent <= 0 || percent > 100 {
		return nil, eris.Errorf("postgres: percent must be 1-100, got %d", percent)
	}

	where := ""
	var args []any
	if len(states) > 0 {
		args = append(args, states)
		where = " WHERE state = ANY($1)"
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM zip_tiles`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: count zip tiles")
	}

	limit := (total*percent + 99) / 100
	if maxTiles > 0 && limit > maxTiles {
		limit = maxTiles
	}
	if limit == 0 {
		return nil, nil
	}

	args = append(args, limit)
	rows, err := s.pool.Query(ctx,
		`SELECT zip, state, population, latitude, longitude, radius_m FROM zip_tiles`+where+
			fmt.Sprintf(` ORDER BY population DESC LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top zip tiles")
	}
	defer rows.Close()

	var tiles []model.ZipTile
	for rows.Next() {
		var t model.ZipTile
		if err := rows.Scan(&t.Zip, &t.State, &t.Population, &t.Latitude, &t.Longitude, &t.RadiusMeters); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zip tile")
		}
		tiles = append(tiles, t)
	}
	return tiles, rows.Err()
}
