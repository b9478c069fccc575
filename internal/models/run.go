package models

import "time"

// RunState is the persisted lifecycle state of a run.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateCancelled RunState = "cancelled"
	RunStateFailed    RunState = "failed"
)

// Terminal reports whether the run has finished.
func (s RunState) Terminal() bool {
	return s == RunStateCompleted || s == RunStateCancelled || s == RunStateFailed
}

// Run is the history record of one sequence run.
type Run struct {
	ID        string     `json:"id"`
	Sequence  string     `json:"sequence"`
	State     RunState   `json:"state"`
	Step      int        `json:"step"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
