// Package db provides SQLite storage for cadence run history.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite connection pool.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path and applies
// migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	return open(ctx, dsn, path, 0)
}

// OpenInMemory opens a private in-memory database, mainly for tests.
func OpenInMemory(ctx context.Context) (*DB, error) {
	return open(ctx, ":memory:", ":memory:", 1)
}

func open(ctx context.Context, dsn, path string, maxConns int) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}

	db := &DB{
		DB:     sqlDB,
		path:   path,
		logger: logging.Component("db"),
	}
	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database location.
func (db *DB) Path() string {
	return db.path
}

// migrations holds the statements of each schema version in order.
var migrations = [][]string{
	{
		`CREATE TABLE runs (
			id TEXT PRIMARY KEY,
			sequence TEXT NOT NULL,
			state TEXT NOT NULL,
			step INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			error_message TEXT
		)`,
		`CREATE INDEX idx_runs_sequence ON runs(sequence, started_at)`,
		`CREATE TABLE events (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			type TEXT NOT NULL,
			run_id TEXT NOT NULL,
			sequence TEXT NOT NULL,
			step INTEGER NOT NULL DEFAULT 0,
			payload_json TEXT,
			metadata_json TEXT
		)`,
		`CREATE INDEX idx_events_run ON events(run_id, timestamp)`,
	},
}

func (db *DB) migrate(ctx context.Context) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		for _, stmt := range migrations[i] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply migration %d: %w", i+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
		db.logger.Debug().Int("version", i+1).Msg("applied migration")
	}
	return nil
}
