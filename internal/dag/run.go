package dag

import (
	"fmt"
	"sync"
	"time"
)

// Transition is one entry of a run's history log.
type Transition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}

// Run tracks the current stage of one pipeline run. It is safe for
// concurrent use: the admin API reads it while the pipeline advances it.
type Run struct {
	mu      sync.Mutex
	stage   Stage
	history []Transition
	now     func() time.Time
}

// NewRun returns a Run in PENDING.
func NewRun() *Run {
	return &Run{stage: StagePending, now: time.Now}
}

// Stage returns the current stage.
func (r *Run) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// History returns a copy of the transitions so far.
func (r *Run) History() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.history...)
}

// MoveTo transitions the run, rejecting moves the graph does not allow.
func (r *Run) MoveTo(to Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !IsTransitionAllowed(r.stage, to) {
		return fmt.Errorf("transition %s → %s is not allowed", r.stage, to)
	}
	r.history = append(r.history, Transition{From: r.stage, To: to, At: r.now().UTC()})
	r.stage = to
	return nil
}

// Advance moves one step forward.
func (r *Run) Advance() (Stage, error) {
	r.mu.Lock()
	n, ok := next[r.stage]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("run already finished in %s", r.Stage())
	}
	return n, r.MoveTo(n)
}

// Fail moves the run to FAILED. Failing a finished run is a no-op.
func (r *Run) Fail() {
	_ = r.MoveTo(StageFailed)
}
