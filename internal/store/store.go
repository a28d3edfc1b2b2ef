// Package store persists normalized jobs into the job_data table.
//
// Rows are upserted on (external_id, job_source): loading the same listing
// twice updates the existing row instead of inserting a duplicate.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobmate/etl-service/internal/db"
	"jobmate/etl-service/internal/model"
)

// Store is the storage collaborator of the pipeline.
type Store interface {
	// CreateTable creates job_data if it does not exist.
	CreateTable(ctx context.Context) error
	// Upsert inserts or updates one job and returns its row id.
	Upsert(ctx context.Context, job model.NormalizedJob) (int64, error)
	// UpsertBatch upserts jobs in a single transaction and returns the number of rows written.
	UpsertBatch(ctx context.Context, jobs []model.NormalizedJob) (int, error)
	// ListJobs returns the most recently written rows, newest first.
	ListJobs(ctx context.Context, limit int) ([]model.NormalizedJob, error)
	Ping(ctx context.Context) error
	Close() error
}

const sqlitePrefix = "sqlite://"

// Open picks the backend from the URL scheme: sqlite://<path> (":memory:"
// allowed) opens SQLite, anything else is handed to pgx.
func Open(ctx context.Context, databaseURL string, maxConns int32) (Store, error) {
	if path, ok := strings.CutPrefix(databaseURL, sqlitePrefix); ok {
		return OpenSQLite(path)
	}
	pool, err := db.NewPostgresPool(ctx, databaseURL, maxConns)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return NewPostgres(pool), nil
}

// createdOr substitutes the load time for a listing without a source date;
// created_date is NOT NULL.
func createdOr(t time.Time, now func() time.Time) time.Time {
	if t.IsZero() {
		return now().UTC()
	}
	return t.UTC()
}

// DefaultListLimit applies when ListJobs is called with a non-positive limit.
const DefaultListLimit = 50

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
