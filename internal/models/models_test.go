package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	valid := &Event{Type: EventTypeRunStarted, RunID: "r1", Sequence: "demo"}
	require.NoError(t, valid.Validate())

	err := (&Event{Step: -1}).Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "type is required")
	require.Contains(t, err.Error(), "run_id is required")
	require.Contains(t, err.Error(), "step must not be negative")
}

func TestRunDuration(t *testing.T) {
	start := time.Unix(100, 0)
	run := &Run{StartedAt: start}
	require.Zero(t, run.Duration())

	end := start.Add(9 * time.Second)
	run.EndedAt = &end
	require.Equal(t, 9*time.Second, run.Duration())
	require.True(t, RunStateCancelled.Terminal())
	require.False(t, RunStateRunning.Terminal())
}
