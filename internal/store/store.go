// Package store persists run history to SQLite: one row per run plus the
// task executions and validation outcomes that produced it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	topic       TEXT NOT NULL,
	status      TEXT NOT NULL,
	iterations  INTEGER NOT NULL DEFAULT 0,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	cost_usd    REAL NOT NULL DEFAULT 0,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS task_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(run_id),
	role        TEXT NOT NULL,
	success     INTEGER NOT NULL,
	degraded    INTEGER NOT NULL DEFAULT 0,
	model       TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	tokens      INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS validations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL REFERENCES runs(run_id),
	iteration      INTEGER NOT NULL,
	approved       INTEGER NOT NULL,
	verified_ratio REAL NOT NULL,
	live_sources   INTEGER NOT NULL,
	citation_count INTEGER NOT NULL,
	reasons        TEXT,
	created_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_results_run ON task_results(run_id);
CREATE INDEX IF NOT EXISTS idx_validations_run ON validations(run_id);
`

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID      string       `db:"run_id"`
	Topic      string       `db:"topic"`
	Status     string       `db:"status"`
	Iterations int          `db:"iterations"`
	TokensUsed int          `db:"tokens_used"`
	CostUSD    float64      `db:"cost_usd"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

// Store is the run-history database handle.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// SQLite writes serialize anyway; a single connection avoids
	// SQLITE_BUSY churn under concurrent activities.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun inserts the initial row for a run.
func (s *Store) BeginRun(ctx context.Context, runID, topic string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, topic, status, started_at) VALUES (?, ?, ?, ?)`,
		runID, topic, string(models.RunStatusRunning), startedAt.UTC())
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// FinishRun records the terminal state of a run.
func (s *Store) FinishRun(ctx context.Context, outcome models.RunOutcome, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, iterations = ?, tokens_used = ?, cost_usd = ?, finished_at = ? WHERE run_id = ?`,
		string(outcome.Status), outcome.Iterations, outcome.TokensUsed, outcome.CostUSD,
		finishedAt.UTC(), outcome.RunID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", outcome.RunID, err)
	}
	return nil
}

// RecordTask appends one task execution.
func (s *Store) RecordTask(ctx context.Context, runID string, r models.TaskResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_results (run_id, role, success, degraded, model, duration_ms, tokens, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Role, boolInt(r.Success), boolInt(r.Degraded), r.Model,
		r.DurationMs, r.Usage.Total(), r.Error, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record task %s/%s: %w", runID, r.Role, err)
	}
	return nil
}

// RecordValidation appends one validation outcome.
func (s *Store) RecordValidation(ctx context.Context, runID string, iteration int, v models.ValidationResult) error {
	reasons := ""
	for i, r := range v.Reasons {
		if i > 0 {
			reasons += ","
		}
		reasons += r
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO validations (run_id, iteration, approved, verified_ratio, live_sources, citation_count, reasons, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, iteration, boolInt(v.Approved), v.VerifiedRatio, v.LiveSources,
		v.CitationCount, reasons, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record validation %s: %w", runID, err)
	}
	return nil
}

// GetRun loads one run row.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	if err := s.db.GetContext(ctx, &rec, `SELECT * FROM runs WHERE run_id = ?`, runID); err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []RunRecord
	if err := s.db.SelectContext(ctx, &recs,
		`SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return recs, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
