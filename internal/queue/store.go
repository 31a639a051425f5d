// Package queue persists jobs and their output units in SQLite and enforces
// the job state machine: forward-only status transitions, monotonic progress,
// and idempotent unit appends.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"clipforge/internal/config"
)

var (
	// ErrInvalidTransition is returned for illegal status moves. Callers
	// must not retry these.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrProgressRegression is returned when an update would move progress
	// backwards or out of [0,100].
	ErrProgressRegression = errors.New("progress update rejected")
	// ErrJobNotFound is returned when the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")
)

const (
	writeRetryAttempts = 3
	writeRetryDelay    = 100 * time.Millisecond
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.WorkDir, "jobs.db"))
}

// OpenPath opens the job database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// NewJobParams carries the submission inputs for a job.
type NewJobParams struct {
	Kind        Kind
	InputRef    string
	UnitCount   int
	AspectW     int
	AspectH     int
	PayloadJSON string
}

// CreateJob inserts a pending job and returns it. A fresh correlation id is
// assigned for external reference.
func (s *Store) CreateJob(ctx context.Context, params NewJobParams) (*Job, error) {
	if params.InputRef == "" {
		return nil, errors.New("create job: input reference required")
	}
	if params.UnitCount <= 0 {
		params.UnitCount = 1
	}
	if params.AspectW <= 0 || params.AspectH <= 0 {
		params.AspectW, params.AspectH = 9, 16
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	correlationID := uuid.NewString()

	var id int64
	err := s.withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(
			ctx,
			`INSERT INTO jobs (
                correlation_id, kind, status, progress, input_ref, unit_count,
                aspect_w, aspect_h, payload_json, units_produced, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			correlationID,
			params.Kind,
			StatusPending,
			0.0,
			params.InputRef,
			params.UnitCount,
			params.AspectW,
			params.AspectH,
			nullableString(params.PayloadJSON),
			0,
			timestamp,
			timestamp,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

const jobColumns = `id, correlation_id, kind, status, progress, current_step,
    input_ref, unit_count, aspect_w, aspect_h, payload_json, error_message,
    units_produced, created_at, updated_at, started_at, completed_at`

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByCorrelationID fetches a job by its external-facing identifier.
func (s *Store) GetByCorrelationID(ctx context.Context, correlationID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE correlation_id = ?`, correlationID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by correlation id: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextPending returns the oldest pending job, or nil when the queue is idle.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusPending)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return job, nil
}

// Transition moves a job to a new status, enforcing the forward-only state
// machine. Moving to processing stamps started_at; terminal states stamp
// completed_at. A move to failed requires a non-empty message.
func (s *Store) Transition(ctx context.Context, id int64, to Status, message string) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: id %d", ErrJobNotFound, id)
	}
	if !CanTransition(job.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s (job %d)", ErrInvalidTransition, job.Status, to, id)
	}
	if to == StatusFailed && strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("transition job %d: failed status requires an error message", id)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	query := `UPDATE jobs SET status = ?, updated_at = ?`
	args := []any{to, timestamp}
	switch {
	case to == StatusProcessing:
		query += `, started_at = ?`
		args = append(args, timestamp)
	case to == StatusCompleted:
		query += `, completed_at = ?, progress = 100, current_step = ?`
		args = append(args, timestamp, nullableString(message))
	case to == StatusFailed:
		query += `, completed_at = ?, error_message = ?`
		args = append(args, timestamp, message)
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, job.Status)

	err = s.withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// Lost a race with another writer; surface as illegal.
			return fmt.Errorf("%w: job %d changed concurrently", ErrInvalidTransition, id)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("transition job %d: %w", id, err)
	}
	return s.GetByID(ctx, id)
}

// SetProgress records a progress update for a processing job. Percent must
// stay within [0,100] and never regress.
func (s *Store) SetProgress(ctx context.Context, id int64, percent float64, step string) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: percent %.1f out of range", ErrProgressRegression, percent)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	return s.withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET progress = ?, current_step = ?, updated_at = ?
             WHERE id = ? AND progress <= ?`,
			percent, nullableString(step), timestamp, id, percent)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			job, getErr := s.GetByID(ctx, id)
			if getErr == nil && job == nil {
				return fmt.Errorf("%w: id %d", ErrJobNotFound, id)
			}
			return fmt.Errorf("%w: percent %.1f below recorded progress", ErrProgressRegression, percent)
		}
		return nil
	})
}

// AppendUnit persists one output unit. Retrying the same unit index updates
// the existing record instead of duplicating it, and the job's produced-unit
// counter reflects distinct indices.
func (s *Store) AppendUnit(ctx context.Context, unit Unit) error {
	if unit.JobID == 0 {
		return errors.New("append unit: job id required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	return s.withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO units (job_id, unit_index, start_sec, end_sec, asset_uri, caption_uri, preview, size_bytes, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT (job_id, unit_index) DO UPDATE SET
                 start_sec = excluded.start_sec,
                 end_sec = excluded.end_sec,
                 asset_uri = excluded.asset_uri,
                 caption_uri = excluded.caption_uri,
                 preview = excluded.preview,
                 size_bytes = excluded.size_bytes`,
			unit.JobID, unit.Index, unit.Start, unit.End,
			nullableString(unit.AssetURI), nullableString(unit.CaptionURI),
			nullableString(unit.Preview), unit.SizeBytes, timestamp)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET units_produced = (SELECT COUNT(1) FROM units WHERE job_id = ?), updated_at = ?
             WHERE id = ?`,
			unit.JobID, timestamp, unit.JobID)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Units returns a job's persisted units in index order.
func (s *Store) Units(ctx context.Context, jobID int64) ([]*Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, unit_index, start_sec, end_sec, asset_uri, caption_uri, preview, size_bytes, created_at
         FROM units WHERE job_id = ? ORDER BY unit_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []*Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// withWriteRetry retries transient write failures with a delay that grows by
// attempt count. Non-transient errors surface immediately.
func (s *Store) withWriteRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= writeRetryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientSQLiteError(lastErr) {
			return lastErr
		}
		if attempt == writeRetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(writeRetryDelay * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("write failed after %d attempts: %w", writeRetryAttempts, lastErr)
}

func isTransientSQLiteError(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database table is locked") ||
		strings.Contains(message, "busy")
}

func makePlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
