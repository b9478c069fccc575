package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/opencode-ai/cadence/internal/clock"
	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/rs/zerolog"
)

// Sequence is a fixed, ordered list of timed steps that can be started
// any number of times. Each start creates a Run.
type Sequence struct {
	name     string
	steps    []Step
	policy   Policy
	timeline *Timeline
	observer Observer
	logger   zerolog.Logger

	mu     sync.Mutex
	active []*Run
}

// Option configures a Sequence.
type Option func(*Sequence)

// WithPolicy sets the re-entrancy policy.
func WithPolicy(p Policy) Option {
	return func(s *Sequence) {
		s.policy = p
	}
}

// WithTimeline attaches the sequence to a shared timeline.
func WithTimeline(t *Timeline) Option {
	return func(s *Sequence) {
		if t != nil {
			s.timeline = t
		}
	}
}

// WithClock runs the sequence on a private timeline driven by c.
func WithClock(c clock.Clock) Option {
	return func(s *Sequence) {
		s.timeline = NewTimeline(c)
	}
}

// WithObserver registers an observer for run events.
func WithObserver(o Observer) Option {
	return func(s *Sequence) {
		s.observer = o
	}
}

// New creates a sequence. Steps are copied; delays must be non-negative
// and every step needs an action.
func New(name string, steps []Step, opts ...Option) (*Sequence, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	for i, step := range steps {
		if step.Delay < 0 {
			return nil, fmt.Errorf("%w: step %d has negative delay %s", ErrInvalidStep, i, step.Delay)
		}
		if step.Action == nil {
			return nil, fmt.Errorf("%w: step %d has no action", ErrInvalidStep, i)
		}
	}

	s := &Sequence{
		name:   name,
		steps:  append([]Step(nil), steps...),
		policy: PolicyConcurrent,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeline == nil {
		s.timeline = NewTimeline(nil)
	}
	policy, err := ParsePolicy(string(s.policy))
	if err != nil {
		return nil, err
	}
	s.policy = policy
	s.logger = logging.Component("timeline").With().Str("sequence", name).Logger()

	return s, nil
}

// Name returns the sequence name.
func (s *Sequence) Name() string {
	return s.name
}

// Policy returns the re-entrancy policy.
func (s *Sequence) Policy() Policy {
	return s.policy
}

// Steps returns a copy of the step list.
func (s *Sequence) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// Start begins a new run from step 0. Leading zero-delay steps execute
// before Start returns. If one of them fails, the run is returned together
// with its *ActionError. Under PolicyIgnore, Start returns
// ErrAlreadyRunning while another run is active.
//
// Cancelling ctx cancels the run.
func (s *Sequence) Start(ctx context.Context) (*Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var superseded []*Run
	if len(s.active) > 0 {
		switch s.policy {
		case PolicyIgnore:
			s.mu.Unlock()
			return nil, ErrAlreadyRunning
		case PolicyRestart:
			superseded = append(superseded, s.active...)
		}
	}
	run := s.newRun(ctx)
	s.active = append(s.active, run)
	s.mu.Unlock()

	for _, old := range superseded {
		s.logger.Debug().Str("run_id", old.id).Msg("restarting: cancelling active run")
		old.Cancel()
	}

	s.logger.Info().
		Str("run_id", run.id).
		Int("steps", len(s.steps)).
		Msg("run started")
	s.emit(run.event(EventRunStarted, 0, nil))

	stop := context.AfterFunc(ctx, run.Cancel)
	run.mu.Lock()
	run.stopOnDone = stop
	run.mu.Unlock()

	s.timeline.dispatch.Lock()
	defer s.timeline.dispatch.Unlock()

	run.mu.Lock()
	due := run.scheduleLocked(0)
	run.mu.Unlock()
	if !due {
		return run, nil
	}
	return run, run.runFrom(0)
}

// OnTriggerEvent starts a run in response to an external trigger.
func (s *Sequence) OnTriggerEvent() {
	run, err := s.Start(context.Background())
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		s.logger.Debug().Msg("trigger ignored: run in progress")
	case err != nil:
		event := s.logger.Warn().Err(err)
		if run != nil {
			event = event.Str("run_id", run.id)
		}
		event.Msg("triggered run failed")
	}
}

// Cancel cancels every active run of the sequence.
func (s *Sequence) Cancel() {
	for _, run := range s.Active() {
		run.Cancel()
	}
}

// Active returns the active runs in start order.
func (s *Sequence) Active() []*Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Run(nil), s.active...)
}

func (s *Sequence) newRun(parent context.Context) *Run {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.WithValue(parent, runIDKey{}, id))
	return &Run{
		id:        id,
		seq:       s,
		ctx:       ctx,
		cancelCtx: cancel,
		state:     StateRunning,
		startedAt: s.timeline.clock.Now(),
		done:      make(chan struct{}),
	}
}

func (s *Sequence) remove(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, candidate := range s.active {
		if candidate == run {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}

func (s *Sequence) emit(event RunEvent) {
	if s.observer != nil {
		s.observer.OnRunEvent(event)
	}
}
