package timeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/cadence/internal/clock"
)

// Run is one execution of a Sequence. It is owned by the sequence that
// created it and becomes inert once it reaches a terminal state.
type Run struct {
	id         string
	seq        *Sequence
	ctx        context.Context
	cancelCtx  context.CancelFunc
	stopOnDone func() bool

	mu        sync.Mutex
	state     State
	step      int
	startedAt time.Time
	endedAt   time.Time
	err       error
	timer     clock.Timer
	done      chan struct{}
}

// RunInfo is a point-in-time copy of a run's state.
type RunInfo struct {
	ID        string
	Sequence  string
	State     State
	Step      int
	StartedAt time.Time
	EndedAt   time.Time
	Err       error
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the failure that aborted the run, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Snapshot returns a copy of the run's state.
func (r *Run) Snapshot() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunInfo{
		ID:        r.id,
		Sequence:  r.seq.name,
		State:     r.state,
		Step:      r.step,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		Err:       r.err,
	}
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run ends or ctx is done. It returns the run's
// failure, or ctx's error if ctx ended first.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the run. No step is dispatched after Cancel returns. A step
// whose dispatch had already begun still runs its action, with the action
// context cancelled. Cancelling a finished run is a no-op.
func (r *Run) Cancel() {
	if r.finish(StateCancelled, nil) {
		r.seq.logger.Info().Str("run_id", r.id).Int("step", r.Snapshot().Step).Msg("run cancelled")
	}
}

// scheduleLocked moves the run to step i. It reports whether the step is
// due immediately; otherwise a timer has been armed. Caller holds r.mu.
func (r *Run) scheduleLocked(i int) bool {
	r.step = i
	delay := r.seq.steps[i].Delay
	if delay == 0 {
		return true
	}
	r.timer = r.seq.timeline.clock.AfterFunc(delay, func() { r.fire(i) })
	return false
}

func (r *Run) fire(i int) {
	r.seq.timeline.dispatch.Lock()
	defer r.seq.timeline.dispatch.Unlock()
	_ = r.runFrom(i)
}

// runFrom executes step i and every following zero-delay step, then arms
// the timer for the next delayed step. Caller holds the timeline dispatch
// lock.
func (r *Run) runFrom(i int) error {
	for {
		r.mu.Lock()
		if r.state != StateRunning || r.step != i {
			r.mu.Unlock()
			return nil
		}
		r.timer = nil
		r.mu.Unlock()

		// Dispatch is committed: a Cancel from here on only cancels r.ctx.
		step := r.seq.steps[i]
		if err := r.invoke(i, step); err != nil {
			if !r.finish(StateFailed, err) {
				// Cancelled while the action ran.
				return nil
			}
			r.seq.logger.Error().Err(err).Str("run_id", r.id).Int("step", i).Msg("run failed")
			return err
		}
		if r.State() != StateRunning {
			return nil
		}
		r.seq.logger.Debug().Str("run_id", r.id).Int("step", i).Str("step_name", step.Name).Msg("step fired")
		r.seq.emit(r.event(EventStepFired, i, nil))

		next := i + 1
		if next == len(r.seq.steps) {
			if r.finish(StateCompleted, nil) {
				r.seq.logger.Info().Str("run_id", r.id).Msg("run completed")
			}
			return nil
		}

		r.mu.Lock()
		if r.state != StateRunning {
			r.mu.Unlock()
			return nil
		}
		due := r.scheduleLocked(next)
		r.mu.Unlock()
		if !due {
			return nil
		}
		i = next
	}
}

func (r *Run) invoke(i int, step Step) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ActionError{RunID: r.id, Sequence: r.seq.name, Step: i, Name: step.Name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	if actionErr := step.Action(r.ctx); actionErr != nil {
		return &ActionError{RunID: r.id, Sequence: r.seq.name, Step: i, Name: step.Name, Err: actionErr}
	}
	return nil
}

// finish moves the run into a terminal state. It reports false if the run
// had already finished.
func (r *Run) finish(state State, err error) bool {
	r.mu.Lock()
	if r.state.Terminal() {
		r.mu.Unlock()
		return false
	}
	r.state = state
	r.err = err
	r.endedAt = r.seq.timeline.clock.Now()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	step := r.step
	stop := r.stopOnDone
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	r.cancelCtx()
	r.seq.remove(r)

	var eventType EventType
	switch state {
	case StateCompleted:
		eventType = EventRunCompleted
	case StateCancelled:
		eventType = EventRunCancelled
	default:
		eventType = EventRunFailed
	}
	// Observers see the terminal event before waiters are released.
	r.seq.emit(r.event(eventType, step, err))
	close(r.done)
	return true
}

func (r *Run) event(eventType EventType, step int, err error) RunEvent {
	r.mu.Lock()
	state := r.state
	r.mu.Unlock()

	var name string
	if step >= 0 && step < len(r.seq.steps) {
		name = r.seq.steps[step].Name
	}
	return RunEvent{
		Type:      eventType,
		RunID:     r.id,
		Sequence:  r.seq.name,
		Step:      step,
		StepName:  name,
		State:     state,
		Timestamp: r.seq.timeline.clock.Now(),
		Err:       err,
	}
}
