package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/etl-service/internal/model"
)

const pgCreateTable = `
	CREATE TABLE IF NOT EXISTS job_data (
		id SERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		company TEXT,
		location TEXT,
		description TEXT,
		skills TEXT,
		experience_years_min INTEGER,
		experience_years_max INTEGER,
		experience_level TEXT,
		created_date TIMESTAMP NOT NULL,
		job_source TEXT NOT NULL,
		external_id TEXT NOT NULL,
		raw_data JSONB,
		CONSTRAINT unique_job UNIQUE (external_id, job_source)
	)`

const pgUpsert = `
	INSERT INTO job_data (title, company, location, description, skills,
	                      experience_years_min, experience_years_max, experience_level,
	                      created_date, job_source, external_id, raw_data)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
	ON CONFLICT (external_id, job_source) DO UPDATE SET
		title                = EXCLUDED.title,
		company              = EXCLUDED.company,
		location             = EXCLUDED.location,
		description          = EXCLUDED.description,
		skills               = EXCLUDED.skills,
		experience_years_min = EXCLUDED.experience_years_min,
		experience_years_max = EXCLUDED.experience_years_max,
		experience_level     = EXCLUDED.experience_level,
		raw_data             = EXCLUDED.raw_data,
		created_date         = EXCLUDED.created_date
	RETURNING id`

const pgList = `
	SELECT id, title, COALESCE(company, ''), COALESCE(location, ''), COALESCE(description, ''),
	       COALESCE(skills, ''), experience_years_min, experience_years_max,
	       COALESCE(experience_level, 'unspecified'), created_date, job_source, external_id,
	       COALESCE(raw_data, 'null'::jsonb)
	FROM job_data
	ORDER BY id DESC
	LIMIT $1`

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgres wraps an already verified pool. The Store owns the pool from here on.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

func (p *Postgres) CreateTable(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, pgCreateTable); err != nil {
		return fmt.Errorf("create job_data: %w", err)
	}
	return nil
}

func (p *Postgres) args(j model.NormalizedJob) []any {
	return []any{
		j.Title, j.Company, j.Location, j.Description, j.Skills,
		j.ExperienceYearsMin, j.ExperienceYearsMax, string(j.ExperienceLevel),
		createdOr(j.CreatedDate, p.now), j.JobSource, j.ExternalID, rawJSON(j.RawData),
	}
}

func (p *Postgres) Upsert(ctx context.Context, j model.NormalizedJob) (int64, error) {
	var id int64
	if err := p.pool.QueryRow(ctx, pgUpsert, p.args(j)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert %s/%s: %w", j.JobSource, j.ExternalID, err)
	}
	return id, nil
}

func (p *Postgres) UpsertBatch(ctx context.Context, jobs []model.NormalizedJob) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(pgUpsert, p.args(j)...)
	}

	br := tx.SendBatch(ctx, batch)
	written := 0
	for _, j := range jobs {
		var id int64
		if err := br.QueryRow().Scan(&id); err != nil {
			br.Close()
			return 0, fmt.Errorf("upsert %s/%s: %w", j.JobSource, j.ExternalID, err)
		}
		written++
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("batch close: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (p *Postgres) ListJobs(ctx context.Context, limit int) ([]model.NormalizedJob, error) {
	rows, err := p.pool.Query(ctx, pgList, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list job_data: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.NormalizedJob, 0)
	for rows.Next() {
		var (
			j     model.NormalizedJob
			level string
			raw   []byte
		)
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Company, &j.Location, &j.Description,
			&j.Skills, &j.ExperienceYearsMin, &j.ExperienceYearsMax,
			&level, &j.CreatedDate, &j.JobSource, &j.ExternalID, &raw,
		); err != nil {
			return nil, fmt.Errorf("scan job_data: %w", err)
		}
		j.ExperienceLevel = levelOrUnspecified(level)
		j.RawData = raw
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// rawJSON returns raw_data as a string for the ::jsonb cast; an empty value is SQL NULL.
func rawJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func levelOrUnspecified(s string) model.ExperienceLevel {
	l, err := model.ParseLevel(s)
	if err != nil {
		return model.LevelUnspecified
	}
	return l
}
