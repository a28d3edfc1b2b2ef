// Package pipeline composes the four ETL tasks into one run:
//
//	CreateTable ──► Extract ──► Transform ──► Load
//
// Each task receives the previous task's typed output. A run's progress is
// tracked by a dag.Run so the admin API can report the current stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobmate/etl-service/internal/dag"
	"jobmate/etl-service/internal/logger"
	"jobmate/etl-service/internal/model"
	"jobmate/etl-service/internal/normalize"
	"jobmate/etl-service/internal/scraper"
	"jobmate/etl-service/internal/store"
)

// ErrRunInProgress is returned by Run while another run is active.
var ErrRunInProgress = errors.New("pipeline: a run is already in progress")

// DefaultRoles are the searches a run issues when none are configured.
var DefaultRoles = []string{"Software Engineer", "Data Scientist", "Web Developer"}

const (
	defaultWhere       = "us"
	defaultBatchSize   = 50
	defaultConcurrency = 3
)

// Fetcher is the listing source. *scraper.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q scraper.Query) ([]model.RawListing, error)
}

// Options tunes a Pipeline. Zero values fall back to the defaults above.
type Options struct {
	Roles          []string
	Where          string
	ExcludeTerms   []string
	BatchSize      int
	Concurrency    int // roles fetched in parallel
	TaskRetries    int // extra attempts per task after the first
	TaskRetryDelay time.Duration
}

// Report summarises one run. It is what GET /api/v1/runs/last returns.
type Report struct {
	RunID       string           `json:"runId"`
	Stage       dag.Stage        `json:"stage"`
	History     []dag.Transition `json:"history"`
	Extracted   int              `json:"extracted"`
	Filtered    int              `json:"filtered"`
	Duplicates  int              `json:"duplicates"`
	Transformed int              `json:"transformed"`
	Loaded      int              `json:"loaded"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  time.Time        `json:"finishedAt"`
	Err         string           `json:"error,omitempty"`
}

// Pipeline runs the ETL tasks against its collaborators. Only one run may be
// active at a time.
type Pipeline struct {
	store   store.Store
	fetcher Fetcher
	norm    *normalize.Normalizer
	events  EventPublisher
	opts    Options
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	current *dag.Run
	last    *Report
}

// New wires a Pipeline. norm may be nil (default skill set); events may be
// nil (no notifications).
func New(st store.Store, f Fetcher, norm *normalize.Normalizer, events EventPublisher, opts Options) *Pipeline {
	if len(opts.Roles) == 0 {
		opts.Roles = DefaultRoles
	}
	if opts.Where == "" {
		opts.Where = defaultWhere
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.TaskRetries < 0 {
		opts.TaskRetries = 0
	}
	if norm == nil {
		norm = normalize.New(nil)
	}
	return &Pipeline{
		store:   st,
		fetcher: f,
		norm:    norm,
		events:  events,
		opts:    opts,
		log:     logger.Component("pipeline"),
		now:     time.Now,
	}
}

// Normalizer exposes the skill set the pipeline transforms with.
func (p *Pipeline) Normalizer() *normalize.Normalizer { return p.norm }

// Running reports whether a run is active and, if so, its current stage.
func (p *Pipeline) Running() (bool, dag.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.current == nil {
		return false, ""
	}
	return true, p.current.Stage()
}

// LastReport returns a copy of the most recent finished run's report.
func (p *Pipeline) LastReport() (Report, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Report{}, false
	}
	rep := *p.last
	rep.History = append([]dag.Transition(nil), p.last.History...)
	return rep, true
}

func (p *Pipeline) begin() (*dag.Run, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil, ErrRunInProgress
	}
	p.running = true
	p.current = dag.NewRun()
	return p.current, nil
}

func (p *Pipeline) finish(rep *Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.last = rep
}

// Run executes one full pass. The returned report is non-nil whenever the
// run started, including failed runs.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	run, err := p.begin()
	if err != nil {
		return nil, err
	}

	rep := &Report{RunID: uuid.NewString(), StartedAt: p.now().UTC()}
	log := p.log.With().Str("run_id", rep.RunID).Logger()
	log.Info().Strs("roles", p.opts.Roles).Msg("run started")

	err = p.execute(ctx, run, rep)
	if err != nil {
		run.Fail()
		rep.Err = err.Error()
		log.Error().Err(err).Str("stage", string(rep.Stage)).Msg("run failed")
	}

	rep.Stage = run.Stage()
	rep.History = run.History()
	rep.FinishedAt = p.now().UTC()
	p.finish(rep)

	if err == nil {
		log.Info().
			Int("extracted", rep.Extracted).
			Int("filtered", rep.Filtered).
			Int("duplicates", rep.Duplicates).
			Int("loaded", rep.Loaded).
			Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).
			Msg("run succeeded")
		p.publishLoaded(ctx, rep)
	}
	return rep, err
}

func (p *Pipeline) execute(ctx context.Context, run *dag.Run, rep *Report) error {
	step := func() error {
		st, err := run.Advance()
		rep.Stage = st
		return err
	}

	// ── create_table ─────────────────────────────────────────
	if err := step(); err != nil {
		return err
	}
	if err := p.retry(ctx, "create_table", p.CreateTable); err != nil {
		return err
	}

	// ── extract ──────────────────────────────────────────────
	if err := step(); err != nil {
		return err
	}
	var ex Extraction
	if err := p.retry(ctx, "extract", func(ctx context.Context) error {
		var err error
		ex, err = p.Extract(ctx)
		return err
	}); err != nil {
		return err
	}
	rep.Extracted = len(ex.Listings)
	rep.Filtered = ex.Filtered
	rep.Duplicates = ex.Duplicates

	// ── transform ────────────────────────────────────────────
	if err := step(); err != nil {
		return err
	}
	jobs := p.Transform(ex.Listings)
	rep.Transformed = len(jobs)

	// ── load ─────────────────────────────────────────────────
	if err := step(); err != nil {
		return err
	}
	n, err := p.Load(ctx, jobs)
	rep.Loaded = n
	if err != nil {
		return err
	}

	return step()
}

// retry runs fn up to 1+TaskRetries times, waiting TaskRetryDelay between
// attempts. Context cancellation stops it immediately.
func (p *Pipeline) retry(ctx context.Context, task string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= p.opts.TaskRetries; attempt++ {
		if attempt > 0 {
			p.log.Warn().Err(err).Str("task", task).
				Msgf("retrying in %s (attempt %d/%d)", p.opts.TaskRetryDelay, attempt, p.opts.TaskRetries)
			select {
			case <-time.After(p.opts.TaskRetryDelay):
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", task, ctx.Err())
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%s: %w", task, err)
}
