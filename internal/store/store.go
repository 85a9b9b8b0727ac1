// Package store archives finished test runs in a local SQLite
// database so past results survive across invocations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/fikri/webpilot/pkg/runner"
)

// Store is the run history archive.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// RunRecord is one archived run.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	TestName     string    `json:"test_name"`
	Environment  string    `json:"environment"`
	Success      bool      `json:"success"`
	StartedAt    time.Time `json:"started_at"`
	TotalSeconds float64   `json:"total_seconds"`
	Attempts     int       `json:"attempts"`
	FinalMessage string    `json:"final_message"`
}

// Open opens (or creates) the archive at dbPath.
func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			test_name TEXT NOT NULL,
			environment TEXT,
			success INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			total_seconds REAL NOT NULL,
			final_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_runs_test ON runs(test_name);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

		CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step_number INTEGER NOT NULL,
			title TEXT,
			success INTEGER NOT NULL,
			execution_seconds REAL NOT NULL,
			error_message TEXT,
			screenshot_path TEXT,
			intervention_used INTEGER NOT NULL,
			intervention_json TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun archives a run result and all its step attempts.
func (s *Store) SaveRun(ctx context.Context, result *runner.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, test_name, environment, success, started_at, total_seconds, final_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.TestName, result.Environment, boolToInt(result.Success),
		result.StartedAt.Unix(), result.TotalTime.Seconds(), result.FinalMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, sr := range result.StepResults {
		var interventionJSON []byte
		if sr.Intervention != nil {
			interventionJSON, err = json.Marshal(sr.Intervention)
			if err != nil {
				return fmt.Errorf("failed to marshal intervention: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attempts (run_id, step_number, title, success, execution_seconds,
				error_message, screenshot_path, intervention_used, intervention_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, sr.StepNumber, sr.Title, boolToInt(sr.Success), sr.ExecutionTime.Seconds(),
			sr.ErrorMessage, sr.ScreenshotPath, boolToInt(sr.InterventionUsed), string(interventionJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert attempt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug().Str("run_id", result.RunID).Int("attempts", len(result.StepResults)).Msg("Run archived")
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.test_name, COALESCE(r.environment, ''), r.success, r.started_at,
			r.total_seconds, COALESCE(r.final_message, ''),
			(SELECT COUNT(*) FROM attempts a WHERE a.run_id = r.run_id)
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var success int
		var startedAt int64
		if err := rows.Scan(&rec.RunID, &rec.TestName, &rec.Environment, &success,
			&startedAt, &rec.TotalSeconds, &rec.FinalMessage, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Success = success != 0
		rec.StartedAt = time.Unix(startedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadAttempts returns the archived step attempts of one run in
// execution order.
func (s *Store) LoadAttempts(ctx context.Context, runID string) ([]runner.StepResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_number, COALESCE(title, ''), success, execution_seconds,
			COALESCE(error_message, ''), COALESCE(screenshot_path, ''),
			intervention_used, COALESCE(intervention_json, '')
		FROM attempts
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var results []runner.StepResult
	for rows.Next() {
		var sr runner.StepResult
		var success, interventionUsed int
		var seconds float64
		var interventionJSON string
		if err := rows.Scan(&sr.StepNumber, &sr.Title, &success, &seconds,
			&sr.ErrorMessage, &sr.ScreenshotPath, &interventionUsed, &interventionJSON); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		sr.Success = success != 0
		sr.InterventionUsed = interventionUsed != 0
		sr.ExecutionTime = time.Duration(seconds * float64(time.Second))
		if interventionJSON != "" {
			if err := json.Unmarshal([]byte(interventionJSON), &sr.Intervention); err != nil {
				return nil, fmt.Errorf("failed to unmarshal intervention: %w", err)
			}
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

// Close closes the archive.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
