// Package models defines the records persisted by cadence.
package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EventType categorizes events in the run history.
type EventType string

const (
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunStep      EventType = "run.step"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunCancelled EventType = "run.cancelled"
	EventTypeRunFailed    EventType = "run.failed"
)

// Event represents an append-only log entry about a run.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// RunID is the run the event belongs to.
	RunID string `json:"run_id"`

	// Sequence is the name of the run's sequence.
	Sequence string `json:"sequence"`

	// Step is the step index the event refers to.
	Step int `json:"step"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the event is valid.
func (e *Event) Validate() error {
	var errs []error
	if strings.TrimSpace(string(e.Type)) == "" {
		errs = append(errs, errors.New("event type is required"))
	}
	if strings.TrimSpace(e.RunID) == "" {
		errs = append(errs, errors.New("event run_id is required"))
	}
	if strings.TrimSpace(e.Sequence) == "" {
		errs = append(errs, errors.New("event sequence is required"))
	}
	if e.Step < 0 {
		errs = append(errs, errors.New("event step must not be negative"))
	}
	return errors.Join(errs...)
}

// StepPayload is the payload for run.step events.
type StepPayload struct {
	StepName string `json:"step_name,omitempty"`
}

// FailurePayload is the payload for run.failed events.
type FailurePayload struct {
	StepName string `json:"step_name,omitempty"`
	Error    string `json:"error"`
}
