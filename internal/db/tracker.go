// Package db keeps the conversion history in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	// SQLite driver for database/sql
	_ "github.com/mattn/go-sqlite3"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// Tracker stores one row per conversion job. Attempt logs are not kept.
type Tracker struct {
	db *sql.DB
}

// New opens (and creates if needed) the history database at dbPath.
func New(dbPath string) (*Tracker, error) {
	if dbPath != ":memory:" {
		if err := utils.EnsureDir(filepath.Dir(dbPath)); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// the CLI writes from several worker goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	tracker := &Tracker{db: db}
	if err := tracker.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return tracker, nil
}

func (t *Tracker) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		output_path TEXT,
		category TEXT,
		detected_format TEXT,
		confidence TEXT,
		target_ext TEXT,
		state TEXT NOT NULL,
		progress INTEGER DEFAULT 0,
		backend TEXT,
		degraded BOOLEAN DEFAULT 0,
		note TEXT,
		error_kind TEXT,
		error_message TEXT,
		output_size INTEGER,
		output_checksum TEXT,
		retry_count INTEGER DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`

	_, err := t.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// RecordResult inserts or updates a job row. The retry count and creation
// time of an existing row are preserved.
func (t *Tracker) RecordResult(rec *models.JobRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("job record has no id")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := t.db.Exec(`
		INSERT INTO jobs (
			id, input_path, output_path, category, detected_format, confidence,
			target_ext, state, progress, backend, degraded, note, error_kind,
			error_message, output_size, output_checksum, retry_count,
			created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			output_path = excluded.output_path,
			category = excluded.category,
			detected_format = excluded.detected_format,
			confidence = excluded.confidence,
			target_ext = excluded.target_ext,
			state = excluded.state,
			progress = excluded.progress,
			backend = excluded.backend,
			degraded = excluded.degraded,
			note = excluded.note,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message,
			output_size = excluded.output_size,
			output_checksum = excluded.output_checksum,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, rec.ID, rec.InputPath, rec.OutputPath, rec.Category, rec.DetectedFormat, rec.Confidence,
		rec.TargetExt, rec.State, rec.Progress, rec.Backend, rec.Degraded, rec.Note, rec.ErrorKind,
		rec.ErrorMessage, rec.OutputSize, rec.OutputChecksum, rec.RetryCount,
		createdAt, rec.StartedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}
	return nil
}

const jobColumns = `
	id, input_path, COALESCE(output_path, ''), COALESCE(category, ''),
	COALESCE(detected_format, ''), COALESCE(confidence, ''), COALESCE(target_ext, ''),
	state, progress, COALESCE(backend, ''), degraded, COALESCE(note, ''),
	COALESCE(error_kind, ''), COALESCE(error_message, ''), COALESCE(output_size, 0),
	COALESCE(output_checksum, ''), retry_count, created_at, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.JobRecord, error) {
	var rec models.JobRecord
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.InputPath, &rec.OutputPath, &rec.Category,
		&rec.DetectedFormat, &rec.Confidence, &rec.TargetExt,
		&rec.State, &rec.Progress, &rec.Backend, &rec.Degraded, &rec.Note,
		&rec.ErrorKind, &rec.ErrorMessage, &rec.OutputSize,
		&rec.OutputChecksum, &rec.RetryCount, &rec.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return &rec, nil
}

// GetJobByID retrieves a job. A missing job wraps sql.ErrNoRows.
func (t *Tracker) GetJobByID(jobID string) (*models.JobRecord, error) {
	rec, err := scanJob(t.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to scan job row: %w", err)
	}
	return rec, nil
}

// ListJobs returns the newest jobs first. An empty state matches every state;
// a limit of zero or less uses constants.DefaultHistoryLimit.
func (t *Tracker) ListJobs(state string, limit int) ([]*models.JobRecord, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	return t.queryJobs(query, args...)
}

// GetRetryable returns failed and cancelled jobs, oldest first.
func (t *Tracker) GetRetryable(limit int) ([]*models.JobRecord, error) {
	if limit <= 0 {
		limit = constants.DefaultRetryLimit
	}
	return t.queryJobs(`SELECT `+jobColumns+` FROM jobs
		WHERE state IN (?, ?)
		ORDER BY created_at ASC, id LIMIT ?`,
		constants.JobStateFailed, constants.JobStateCancelled, limit)
}

func (t *Tracker) queryJobs(query string, args ...any) ([]*models.JobRecord, error) {
	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("Failed to close rows", "error", err)
		}
	}()

	var jobs []*models.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// IncrementRetry bumps the retry count of a job. A missing job wraps sql.ErrNoRows.
func (t *Tracker) IncrementRetry(jobID string) error {
	result, err := t.db.Exec(`UPDATE jobs SET retry_count = retry_count + 1 WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to update retry count: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, sql.ErrNoRows)
	}
	return nil
}

// GetJobStats returns the number of jobs per state plus "degraded" and "total".
func (t *Tracker) GetJobStats() (map[string]int, error) {
	stats := make(map[string]int)

	rows, err := t.db.Query(`
		SELECT state, COUNT(*) as count, COALESCE(SUM(degraded), 0)
		FROM jobs
		GROUP BY state
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query job stats: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("Failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var state string
		var count, degraded int
		if err := rows.Scan(&state, &count, &degraded); err != nil {
			slog.Warn("Failed to scan job stats row", "error", err)
			continue
		}
		stats[state] = count
		stats["degraded"] += degraded
		stats["total"] += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job stats rows: %w", err)
	}

	return stats, nil
}

// BackendStats returns, per backend that produced an output, how many jobs it
// served and how many of those were degraded.
func (t *Tracker) BackendStats() (map[string]map[string]int, error) {
	rows, err := t.db.Query(`
		SELECT backend, COUNT(*), COALESCE(SUM(degraded), 0)
		FROM jobs
		WHERE state = ? AND backend IS NOT NULL AND backend != ''
		GROUP BY backend
	`, constants.JobStateSucceeded)
	if err != nil {
		return nil, fmt.Errorf("failed to query backend stats: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("Failed to close rows", "error", err)
		}
	}()

	stats := make(map[string]map[string]int)
	for rows.Next() {
		var backend string
		var served, degraded int
		if err := rows.Scan(&backend, &served, &degraded); err != nil {
			return nil, fmt.Errorf("failed to scan backend stats row: %w", err)
		}
		stats[backend] = map[string]int{"served": served, "degraded": degraded}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backend stats rows: %w", err)
	}
	return stats, nil
}

// Close closes the database connection
func (t *Tracker) Close() error {
	if err := t.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
