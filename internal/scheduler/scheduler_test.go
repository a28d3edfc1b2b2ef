package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"jobmate/etl-service/internal/pipeline"
)

type fakeRunner struct {
	calls int32
	err   error
	ran   chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (*pipeline.Report, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.ran != nil {
		f.ran <- struct{}{}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Report{RunID: "r1", Loaded: 2}, nil
}

func TestNew_RejectsBadCronExpression(t *testing.T) {
	if _, err := New(&fakeRunner{}, "every now and then", false); err == nil {
		t.Error("expected error for invalid cron spec")
	}
	for _, spec := range []string{"@daily", "@every 6h", "0 3 * * *"} {
		if _, err := New(&fakeRunner{}, spec, false); err != nil {
			t.Errorf("spec %q rejected: %v", spec, err)
		}
	}
}

func TestStart_RunsOnStartup(t *testing.T) {
	r := &fakeRunner{ran: make(chan struct{}, 1)}
	s, err := New(r, "@daily", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not happen")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if got := atomic.LoadInt32(&r.calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestStart_NoStartupRun(t *testing.T) {
	r := &fakeRunner{}
	s, _ := New(r, "@daily", false)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if got := atomic.LoadInt32(&r.calls); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}

func TestRunOnce_ToleratesErrors(t *testing.T) {
	for _, err := range []error{pipeline.ErrRunInProgress, errors.New("boom")} {
		r := &fakeRunner{err: err}
		s, _ := New(r, "@daily", false)
		s.runOnce(context.Background(), "test")
		if atomic.LoadInt32(&r.calls) != 1 {
			t.Errorf("runner not called for %v", err)
		}
	}
}
