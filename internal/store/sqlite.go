package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"jobmate/etl-service/internal/model"
)

const sqliteCreateTable = `
CREATE TABLE IF NOT EXISTS job_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	company TEXT,
	location TEXT,
	description TEXT,
	skills TEXT,
	experience_years_min INTEGER,
	experience_years_max INTEGER,
	experience_level TEXT,
	created_date TEXT NOT NULL,
	job_source TEXT NOT NULL,
	external_id TEXT NOT NULL,
	raw_data TEXT,
	CONSTRAINT unique_job UNIQUE (external_id, job_source)
);`

const sqliteUpsert = `
INSERT INTO job_data (title, company, location, description, skills,
                      experience_years_min, experience_years_max, experience_level,
                      created_date, job_source, external_id, raw_data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (external_id, job_source) DO UPDATE SET
	title                = excluded.title,
	company              = excluded.company,
	location             = excluded.location,
	description          = excluded.description,
	skills               = excluded.skills,
	experience_years_min = excluded.experience_years_min,
	experience_years_max = excluded.experience_years_max,
	experience_level     = excluded.experience_level,
	raw_data             = excluded.raw_data,
	created_date         = excluded.created_date
RETURNING id;`

const sqliteList = `
SELECT id, title, COALESCE(company, ''), COALESCE(location, ''), COALESCE(description, ''),
       COALESCE(skills, ''), experience_years_min, experience_years_max,
       COALESCE(experience_level, 'unspecified'), created_date, job_source, external_id,
       COALESCE(raw_data, '')
FROM job_data
ORDER BY id DESC
LIMIT ?;`

// SQLite is the modernc.org/sqlite-backed Store used for local runs and tests.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path. ":memory:" is accepted.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = ":memory:"
	}

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// one writer; also keeps an in-memory database alive on a single connection
	pool.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	return &SQLite{db: pool, now: time.Now}, nil
}

func (s *SQLite) CreateTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteCreateTable); err != nil {
		return fmt.Errorf("create job_data: %w", err)
	}
	return nil
}

func (s *SQLite) args(j model.NormalizedJob) []any {
	var raw any
	if len(j.RawData) > 0 {
		raw = string(j.RawData)
	}
	return []any{
		j.Title, j.Company, j.Location, j.Description, j.Skills,
		j.ExperienceYearsMin, j.ExperienceYearsMax, string(j.ExperienceLevel),
		createdOr(j.CreatedDate, s.now).Format(time.RFC3339Nano), j.JobSource, j.ExternalID, raw,
	}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) upsert(ctx context.Context, q queryRower, j model.NormalizedJob) (int64, error) {
	var id int64
	if err := q.QueryRowContext(ctx, sqliteUpsert, s.args(j)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert %s/%s: %w", j.JobSource, j.ExternalID, err)
	}
	return id, nil
}

func (s *SQLite) Upsert(ctx context.Context, j model.NormalizedJob) (int64, error) {
	return s.upsert(ctx, s.db, j)
}

func (s *SQLite) UpsertBatch(ctx context.Context, jobs []model.NormalizedJob) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, j := range jobs {
		if _, err := s.upsert(ctx, tx, j); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(jobs), nil
}

func (s *SQLite) ListJobs(ctx context.Context, limit int) ([]model.NormalizedJob, error) {
	rows, err := s.db.QueryContext(ctx, sqliteList, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list job_data: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.NormalizedJob, 0)
	for rows.Next() {
		var (
			j           model.NormalizedJob
			yMin, yMax  sql.NullInt64
			level, when string
			raw         string
		)
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Company, &j.Location, &j.Description,
			&j.Skills, &yMin, &yMax, &level, &when, &j.JobSource, &j.ExternalID, &raw,
		); err != nil {
			return nil, fmt.Errorf("scan job_data: %w", err)
		}
		j.ExperienceYearsMin = intPtr(yMin)
		j.ExperienceYearsMax = intPtr(yMax)
		j.ExperienceLevel = levelOrUnspecified(level)
		if t, err := time.Parse(time.RFC3339Nano, when); err == nil {
			j.CreatedDate = t
		}
		if raw != "" {
			j.RawData = []byte(raw)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
