package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencode-ai/cadence/internal/models"
)

// Run repository errors.
var (
	ErrRunNotFound = errors.New("run not found")
	ErrInvalidRun  = errors.New("invalid run")
)

// RunRepository handles run history persistence.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// RunQuery defines filters for listing runs.
type RunQuery struct {
	Sequence string           // Filter by sequence name
	State    *models.RunState // Filter by state
	Limit    int              // Max results, newest first
}

// Create inserts a new run.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if strings.TrimSpace(run.Sequence) == "" || run.State == "" {
		return ErrInvalidRun
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, sequence, state, step, started_at, ended_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Sequence,
		string(run.State),
		run.Step,
		run.StartedAt.UTC().Format(timeFormat),
		formatOptionalTime(run.EndedAt),
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Update writes a run's mutable fields.
func (r *RunRepository) Update(ctx context.Context, run *models.Run) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, step = ?, ended_at = ?, error_message = ?
		WHERE id = ?
	`,
		string(run.State),
		run.Step,
		formatOptionalTime(run.EndedAt),
		nullString(run.Error),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sequence, state, step, started_at, ended_at, error_message
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// List returns runs matching q, newest first.
func (r *RunRepository) List(ctx context.Context, q RunQuery) ([]*models.Run, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, sequence, state, step, started_at, ended_at, error_message FROM runs WHERE 1=1`
	args := []any{}

	if q.Sequence != "" {
		query += ` AND sequence = ?`
		args = append(args, q.Sequence)
	}
	if q.State != nil {
		query += ` AND state = ?`
		args = append(args, string(*q.State))
	}

	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var state, startedAt string
	var endedAt, errorMessage sql.NullString

	if err := row.Scan(&run.ID, &run.Sequence, &state, &run.Step, &startedAt, &endedAt, &errorMessage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.State = models.RunState(state)
	if t, err := time.Parse(timeFormat, startedAt); err == nil {
		run.StartedAt = t
	}
	if endedAt.Valid {
		if t, err := time.Parse(timeFormat, endedAt.String); err == nil {
			run.EndedAt = &t
		}
	}
	if errorMessage.Valid {
		run.Error = errorMessage.String
	}
	return &run, nil
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
