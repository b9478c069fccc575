// Package events records timeline run events into the run history.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/opencode-ai/cadence/internal/models"
	"github.com/opencode-ai/cadence/internal/timeline"
	"github.com/rs/zerolog"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// RunStore is the minimal interface needed to write run records.
type RunStore interface {
	Create(ctx context.Context, run *models.Run) error
	Update(ctx context.Context, run *models.Run) error
}

// LogRunEvent records a single timeline event.
func LogRunEvent(ctx context.Context, repo Repository, event timeline.RunEvent) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if event.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	var payload any
	switch event.Type {
	case timeline.EventStepFired:
		payload = models.StepPayload{StepName: event.StepName}
	case timeline.EventRunFailed:
		failure := models.FailurePayload{StepName: event.StepName}
		if event.Err != nil {
			failure.Error = event.Err.Error()
		}
		payload = failure
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		raw = data
	}

	return repo.Create(ctx, &models.Event{
		Timestamp: event.Timestamp,
		Type:      models.EventType(event.Type),
		RunID:     event.RunID,
		Sequence:  event.Sequence,
		Step:      event.Step,
		Payload:   raw,
	})
}

// Recorder persists run lifecycle events. It implements timeline.Observer.
// Storage errors are logged and never affect the run.
type Recorder struct {
	runs    RunStore
	events  Repository
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	active map[string]*models.Run
}

// NewRecorder creates a Recorder writing to runs and events.
func NewRecorder(runs RunStore, events Repository) *Recorder {
	return &Recorder{
		runs:    runs,
		events:  events,
		timeout: 5 * time.Second,
		logger:  logging.Component("events"),
		active:  make(map[string]*models.Run),
	}
}

// OnRunEvent implements timeline.Observer.
func (r *Recorder) OnRunEvent(event timeline.RunEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.updateRun(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("run_id", event.RunID).Str("event", string(event.Type)).Msg("failed to record run")
	}
	if err := LogRunEvent(ctx, r.events, event); err != nil {
		r.logger.Warn().Err(err).Str("run_id", event.RunID).Str("event", string(event.Type)).Msg("failed to record event")
	}
}

func (r *Recorder) updateRun(ctx context.Context, event timeline.RunEvent) error {
	if event.Type == timeline.EventRunStarted {
		run := &models.Run{
			ID:        event.RunID,
			Sequence:  event.Sequence,
			State:     models.RunStateRunning,
			StartedAt: event.Timestamp,
		}
		r.mu.Lock()
		r.active[run.ID] = run
		snapshot := *run
		r.mu.Unlock()
		return r.runs.Create(ctx, &snapshot)
	}

	r.mu.Lock()
	run, ok := r.active[event.RunID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("run %s was not started by this recorder", event.RunID)
	}
	run.Step = event.Step
	switch event.Type {
	case timeline.EventRunCompleted:
		run.State = models.RunStateCompleted
	case timeline.EventRunCancelled:
		run.State = models.RunStateCancelled
	case timeline.EventRunFailed:
		run.State = models.RunStateFailed
		if event.Err != nil {
			run.Error = event.Err.Error()
		}
	}
	if run.State.Terminal() {
		ended := event.Timestamp
		run.EndedAt = &ended
		delete(r.active, run.ID)
	}
	snapshot := *run
	r.mu.Unlock()

	return r.runs.Update(ctx, &snapshot)
}
