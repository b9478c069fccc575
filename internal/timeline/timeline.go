// Package timeline runs ordered lists of timed steps on a shared logical
// timeline. A Sequence executes its steps one after another, waiting each
// step's delay on a one-shot timer before running its action.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opencode-ai/cadence/internal/clock"
)

// Timeline errors.
var (
	ErrNoSteps        = errors.New("sequence has no steps")
	ErrInvalidStep    = errors.New("invalid step")
	ErrAlreadyRunning = errors.New("sequence already running")
	ErrActionFailed   = errors.New("action failed")
	ErrUnknownPolicy  = errors.New("unknown re-entrancy policy")
)

// Action is the side effect of a step. The context is cancelled when the
// run is cancelled.
type Action func(ctx context.Context) error

// Step is one (delay, action) unit of a sequence. Delay is waited before
// the action runs, so a first step with zero delay fires on Start.
type Step struct {
	Name   string
	Delay  time.Duration
	Action Action
}

// State is the lifecycle state of a run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// Policy decides what a trigger does while a run is already active.
type Policy string

const (
	// PolicyConcurrent starts an independent run for every trigger.
	PolicyConcurrent Policy = "concurrent"
	// PolicyIgnore drops triggers while a run is active.
	PolicyIgnore Policy = "ignore"
	// PolicyRestart cancels active runs before starting a new one.
	PolicyRestart Policy = "restart"
)

// ParsePolicy parses a policy name. Empty selects PolicyConcurrent.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyConcurrent:
		return PolicyConcurrent, nil
	case PolicyIgnore:
		return PolicyIgnore, nil
	case PolicyRestart:
		return PolicyRestart, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, value)
	}
}

// ActionError reports a step action that returned an error or panicked.
type ActionError struct {
	RunID    string
	Sequence string
	Step     int
	Name     string
	Err      error
}

func (e *ActionError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("#%d", e.Step)
	}
	return fmt.Sprintf("sequence %q step %s: %v", e.Sequence, name, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Is matches ErrActionFailed.
func (e *ActionError) Is(target error) bool {
	return target == ErrActionFailed
}

// Timeline serializes action dispatch for every sequence attached to it.
// A chain of zero-delay steps runs to completion before any other step on
// the same timeline fires.
type Timeline struct {
	clock    clock.Clock
	dispatch sync.Mutex
}

// NewTimeline creates a timeline driven by c. A nil clock uses the system
// clock.
func NewTimeline(c clock.Clock) *Timeline {
	if c == nil {
		c = clock.System
	}
	return &Timeline{clock: c}
}

// Clock returns the timeline's clock.
func (t *Timeline) Clock() clock.Clock {
	return t.clock
}

type runIDKey struct{}

// RunIDFromContext returns the ID of the run whose action received ctx.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Offsets returns the time of each step relative to the start of a run.
func Offsets(steps []Step) []time.Duration {
	offsets := make([]time.Duration, len(steps))
	var total time.Duration
	for i, step := range steps {
		total += step.Delay
		offsets[i] = total
	}
	return offsets
}
