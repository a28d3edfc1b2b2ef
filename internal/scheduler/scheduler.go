// Package scheduler wires up the cron job that periodically triggers a
// pipeline run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"jobmate/etl-service/internal/logger"
	"jobmate/etl-service/internal/pipeline"
)

// Runner is the job the scheduler fires. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// Scheduler wraps robfig/cron and manages the run loop.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	spec       string // cron spec, e.g. "@daily"
	runOnStart bool
	log        zerolog.Logger
	wg         sync.WaitGroup
}

// New validates spec and returns a stopped Scheduler. A tick that fires while
// the previous scheduled run is still going is skipped.
func New(runner Runner, spec string, runOnStart bool) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", spec, err)
	}
	log := logger.Component("scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner:     runner,
		spec:       spec,
		runOnStart: runOnStart,
		log:        log,
	}, nil
}

// Start registers the job and starts the scheduler. With runOnStart it also
// runs once immediately so the table is filled without waiting for the
// first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx, "cron") }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("cron started")

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runOnce(ctx, "startup")
		}()
	}
	return nil
}

// Stop stops the cron and waits for running jobs, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	waited := make(chan struct{})
	go func() {
		<-done.Done()
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		s.log.Info().Msg("cron stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("cron stop timed out with a run still active")
	}
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	log := s.log.With().Str("trigger", trigger).Logger()
	rep, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		log.Info().Msg("run already in progress, tick skipped")
	case err != nil:
		log.Error().Err(err).Msg("scheduled run failed")
	default:
		log.Info().Str("run_id", rep.RunID).Int("loaded", rep.Loaded).Msg("scheduled run complete")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
