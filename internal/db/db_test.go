package db

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencode-ai/cadence/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestOpenFileDatabaseIsReusable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cadence.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	repo := NewRunRepository(first)
	if err := repo.Create(ctx, &models.Run{ID: "r1", Sequence: "demo", State: models.RunStateRunning}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if second.Path() != path {
		t.Fatalf("expected path %q, got %q", path, second.Path())
	}
	if _, err := NewRunRepository(second).Get(ctx, "r1"); err != nil {
		t.Fatalf("expected run to survive reopen: %v", err)
	}
}

func TestRunRepositoryLifecycle(t *testing.T) {
	database := openTestDB(t)
	repo := NewRunRepository(database)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	run := &models.Run{ID: "run-1", Sequence: "coroutine-time", State: models.RunStateRunning, StartedAt: started}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ended := started.Add(9 * time.Second)
	run.State = models.RunStateCompleted
	run.Step = 2
	run.EndedAt = &ended
	if err := repo.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != models.RunStateCompleted || got.Step != 2 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if !got.StartedAt.Equal(started) || got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Fatalf("unexpected timestamps: %v %v", got.StartedAt, got.EndedAt)
	}
	if got.Duration() != 9*time.Second {
		t.Fatalf("unexpected duration %s", got.Duration())
	}
}

func TestRunRepositoryErrors(t *testing.T) {
	database := openTestDB(t)
	repo := NewRunRepository(database)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := repo.Update(ctx, &models.Run{ID: "missing", State: models.RunStateFailed}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on update, got %v", err)
	}
	if err := repo.Create(ctx, &models.Run{State: models.RunStateRunning}); !errors.Is(err, ErrInvalidRun) {
		t.Fatalf("expected ErrInvalidRun, got %v", err)
	}
}

func TestRunRepositoryList(t *testing.T) {
	database := openTestDB(t)
	repo := NewRunRepository(database)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	fixtures := []struct {
		id    string
		seq   string
		state models.RunState
	}{
		{"a", "alpha", models.RunStateCompleted},
		{"b", "beta", models.RunStateCancelled},
		{"c", "alpha", models.RunStateFailed},
		{"d", "alpha", models.RunStateCompleted},
	}
	for i, f := range fixtures {
		run := &models.Run{ID: f.id, Sequence: f.seq, State: f.state, StartedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("Create %s: %v", f.id, err)
		}
	}

	completed := models.RunStateCompleted
	tests := []struct {
		name  string
		query RunQuery
		want  []string
	}{
		{"all newest first", RunQuery{}, []string{"d", "c", "b", "a"}},
		{"by sequence", RunQuery{Sequence: "alpha"}, []string{"d", "c", "a"}},
		{"by state", RunQuery{State: &completed}, []string{"d", "a"}},
		{"limited", RunQuery{Limit: 2}, []string{"d", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := repo.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var ids []string
			for _, run := range runs {
				ids = append(ids, run.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("List() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("List() = %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

func TestEventRepository(t *testing.T) {
	database := openTestDB(t)
	repo := NewEventRepository(database)
	ctx := context.Background()

	payload, err := json.Marshal(models.StepPayload{StepName: "start"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	events := []*models.Event{
		{Type: models.EventTypeRunStarted, RunID: "r1", Sequence: "demo", Timestamp: at},
		{Type: models.EventTypeRunStep, RunID: "r1", Sequence: "demo", Timestamp: at, Payload: payload, Metadata: map[string]string{"k": "v"}},
		{Type: models.EventTypeRunCompleted, RunID: "r1", Sequence: "demo", Timestamp: at.Add(time.Second)},
		{Type: models.EventTypeRunStarted, RunID: "r2", Sequence: "demo", Timestamp: at},
	}
	for _, event := range events {
		if err := repo.Create(ctx, event); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if event.ID == "" {
			t.Fatal("expected event id to be assigned")
		}
	}

	got, err := repo.ListByRun(ctx, "r1")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	wantTypes := []models.EventType{models.EventTypeRunStarted, models.EventTypeRunStep, models.EventTypeRunCompleted}
	for i, event := range got {
		if event.Type != wantTypes[i] {
			t.Fatalf("event %d: expected %s, got %s", i, wantTypes[i], event.Type)
		}
	}
	if got[1].Metadata["k"] != "v" {
		t.Fatalf("expected metadata to round trip, got %v", got[1].Metadata)
	}
	var step models.StepPayload
	if err := json.Unmarshal(got[1].Payload, &step); err != nil || step.StepName != "start" {
		t.Fatalf("unexpected payload %s: %v", got[1].Payload, err)
	}

	if err := repo.Create(ctx, &models.Event{RunID: "r1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}
