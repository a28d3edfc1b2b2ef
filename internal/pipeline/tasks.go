package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"jobmate/etl-service/internal/model"
	"jobmate/etl-service/internal/normalize"
	"jobmate/etl-service/internal/scraper"
)

// Extraction is the output of Extract.
type Extraction struct {
	Listings   []model.RawListing
	Filtered   int // dropped by an exclusion term
	Duplicates int // dropped as a repeated external id
}

// CreateTable makes sure job_data exists.
func (p *Pipeline) CreateTable(ctx context.Context) error {
	return p.store.CreateTable(ctx)
}

// Extract fetches every configured role, bounded by Concurrency. Results keep
// the configured role order so that dedup is deterministic. Any role failing
// fails the whole task.
func (p *Pipeline) Extract(ctx context.Context) (Extraction, error) {
	perRole := make([][]model.RawListing, len(p.opts.Roles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, role := range p.opts.Roles {
		g.Go(func() error {
			listings, err := p.fetcher.Fetch(gctx, scraper.Query{What: role, Where: p.opts.Where})
			if err != nil {
				return fmt.Errorf("fetch %q: %w", role, err)
			}
			p.log.Debug().Str("role", role).Int("listings", len(listings)).Msg("role fetched")
			perRole[i] = listings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Extraction{}, err
	}

	var all []model.RawListing
	for _, listings := range perRole {
		all = append(all, listings...)
	}

	unique := scraper.Dedup(all)
	ex := Extraction{Duplicates: len(all) - len(unique)}
	ex.Listings = make([]model.RawListing, 0, len(unique))
	for _, l := range unique {
		if scraper.ContainsExcludedTerm(l, p.opts.ExcludeTerms) {
			ex.Filtered++
			continue
		}
		ex.Listings = append(ex.Listings, l)
	}
	return ex, nil
}

// Transform normalizes every listing. Listings that cannot be normalized are
// logged and skipped; level/years disagreements only produce a warning.
func (p *Pipeline) Transform(listings []model.RawListing) []model.NormalizedJob {
	jobs := make([]model.NormalizedJob, 0, len(listings))
	for i := range listings {
		job, err := p.norm.Normalize(&listings[i])
		if err != nil {
			p.log.Warn().Err(err).Str("external_id", listings[i].ID).Msg("listing skipped")
			continue
		}
		if exp := normalize.ExperienceOf(job); exp.Inconsistent() {
			p.log.Warn().
				Str("external_id", job.ExternalID).
				Str("level", string(job.ExperienceLevel)).
				Interface("years_min", job.ExperienceYearsMin).
				Interface("years_max", job.ExperienceYearsMax).
				Msg("experience level disagrees with years")
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// Load upserts jobs in batches of BatchSize, each batch retried on its own.
// It returns the rows written before any failure.
func (p *Pipeline) Load(ctx context.Context, jobs []model.NormalizedJob) (int, error) {
	written := 0
	for start := 0; start < len(jobs); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(jobs))
		batch := jobs[start:end]

		var n int
		err := p.retry(ctx, "load", func(ctx context.Context) error {
			var err error
			n, err = p.store.UpsertBatch(ctx, batch)
			return err
		})
		if err != nil {
			return written, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		written += n
	}
	return written, nil
}
