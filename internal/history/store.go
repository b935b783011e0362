// Package history persists runs and their step outcomes in a SQLite file so
// past runs can be listed after the process exits.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/specialistvlad/stepgridgo/internal/step"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the recorded state of a run.
type RunStatus string

const (
	// RunRunning means the run has started and not yet finished.
	RunRunning RunStatus = "running"
	// RunSucceeded means every step succeeded.
	RunSucceeded RunStatus = "succeeded"
	// RunFailed means the run finished but at least one step failed.
	RunFailed RunStatus = "failed"
	// RunErrored means the run itself could not finish.
	RunErrored RunStatus = "error"
)

// StepStatus classifies a recorded outcome.
type StepStatus string

const (
	// StepSucceeded means the step ran and its output met the expectation.
	StepSucceeded StepStatus = "succeeded"
	// StepFailed means the step ran and failed.
	StepFailed StepStatus = "failed"
	// StepSkipped means the step never ran because a dependency failed.
	StepSkipped StepStatus = "skipped"
)

// StatusOf classifies an outcome.
func StatusOf(o step.Outcome) StepStatus {
	switch {
	case o.Skipped():
		return StepSkipped
	case o.Failed():
		return StepFailed
	default:
		return StepSucceeded
	}
}

// Run is one recorded scheduler run.
type Run struct {
	ID         string
	Workflow   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	Error      string

	// Counts are derived from the recorded steps.
	Steps     int
	Failed    int
	Skipped   int
	Succeeded int
}

// StepRecord is one step outcome within a run.
type StepRecord struct {
	RunID    string
	Index    int
	Name     string
	Status   StepStatus
	Output   string
	Error    string
	Duration time.Duration
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema. The
// path ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		workflow TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL REFERENCES runs(id),
		idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		output TEXT NOT NULL,
		error TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateRun records the start of a run.
func (s *Store) CreateRun(ctx context.Context, id, workflow string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow, started_at, status) VALUES (?, ?, ?, ?)`,
		id, workflow, startedAt.UnixMilli(), RunRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", id, err)
	}
	return nil
}

// RecordStep stores the outcome of step index of run id. Recording the same
// index twice replaces the earlier row.
func (s *Store) RecordStep(ctx context.Context, runID string, index int, name string, outcome step.Outcome) error {
	var errText string
	if outcome.Err != nil {
		errText = outcome.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO steps (run_id, idx, name, status, output, error, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, index, name, StatusOf(outcome), outcome.Output, errText, outcome.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record step %q of run %s: %w", name, runID, err)
	}
	return nil
}

// FinishRun marks a run as finished. runErr is the error that stopped the
// run, if any.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, finishedAt time.Time, runErr error) error {
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		finishedAt.UnixMilli(), status, errText, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `
	r.id, r.workflow, r.started_at, r.finished_at, r.status, r.error,
	COUNT(s.idx),
	COALESCE(SUM(s.status = 'failed'), 0),
	COALESCE(SUM(s.status = 'skipped'), 0),
	COALESCE(SUM(s.status = 'succeeded'), 0)
	FROM runs r LEFT JOIN steps s ON s.run_id = r.id`

// GetRun returns a single run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` WHERE r.id = ? GROUP BY r.id`, id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` GROUP BY r.id ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Steps returns the recorded steps of a run in index order.
func (s *Store) Steps(ctx context.Context, runID string) ([]*StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, name, status, output, error, duration_ns
		 FROM steps WHERE run_id = ? ORDER BY idx`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps of run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []*StepRecord
	for rows.Next() {
		var rec StepRecord
		var durationNS int64
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Name, &rec.Status, &rec.Output, &rec.Error, &durationNS); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationNS)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var startedAt int64
	var finishedAt sql.NullInt64

	err := row.Scan(
		&run.ID, &run.Workflow, &startedAt, &finishedAt, &run.Status, &run.Error,
		&run.Steps, &run.Failed, &run.Skipped, &run.Succeeded,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		run.FinishedAt = &t
	}
	return &run, nil
}
