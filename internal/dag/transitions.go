// Package dag defines the stage state machine of one pipeline run.
//
// Valid stage graph:
//
//	PENDING ──► CREATE_TABLE ──► EXTRACT ──► TRANSFORM ──► LOAD ──► SUCCEEDED
//	   │             │              │            │           │
//	   └─────────────┴──────────────┴────────────┴───────────┴──► FAILED
//
// SUCCEEDED and FAILED are terminal states.
package dag

import "fmt"

// Stage values are also what the admin API reports for a run.
type Stage string

const (
	StagePending     Stage = "PENDING"
	StageCreateTable Stage = "CREATE_TABLE"
	StageExtract     Stage = "EXTRACT"
	StageTransform   Stage = "TRANSFORM"
	StageLoad        Stage = "LOAD"
	StageSucceeded   Stage = "SUCCEEDED"
	StageFailed      Stage = "FAILED"
)

// next lists the single forward successor of every non-terminal stage.
var next = map[Stage]Stage{
	StagePending:     StageCreateTable,
	StageCreateTable: StageExtract,
	StageExtract:     StageTransform,
	StageTransform:   StageLoad,
	StageLoad:        StageSucceeded,
}

// ParseStage converts a raw string to a Stage, returning an error for
// unknown values.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	switch st {
	case StagePending, StageCreateTable, StageExtract, StageTransform, StageLoad, StageSucceeded, StageFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown run stage %q", s)
}

// Next returns the forward successor of s, or false for terminal stages.
func Next(s Stage) (Stage, bool) {
	n, ok := next[s]
	return n, ok
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Stage) bool { return s == StageSucceeded || s == StageFailed }

// IsTransitionAllowed returns true when moving from → to is permitted:
// one step forward, or to FAILED from any non-terminal stage.
func IsTransitionAllowed(from, to Stage) bool {
	n, ok := next[from]
	if !ok {
		return false
	}
	return to == n || to == StageFailed
}
