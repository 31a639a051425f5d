package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// StuckJobMessage is the standardized diagnostic recorded when the reaper
// fails an abandoned job.
const StuckJobMessage = "Processing timed out - likely due to insufficient memory. " +
	"The video may be too large or complex. Please try with a shorter video " +
	"or contact support for assistance with large files."

// ReapStuck fails every processing job whose started_at is older than the
// cutoff. The sweep commits as one transaction; on conflict nothing is
// applied and the caller retries the whole batch. Returns the ids of jobs it
// failed.
func (s *Store) ReapStuck(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var reaped []int64
	err := s.withWriteRetry(ctx, func() error {
		reaped = reaped[:0]
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM jobs WHERE status = ? AND started_at IS NOT NULL AND started_at < ?`,
			StatusProcessing, cutoff.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			reaped = append(reaped, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(reaped) == 0 {
			return tx.Commit()
		}

		timestamp := time.Now().UTC().Format(time.RFC3339Nano)
		for _, id := range reaped {
			if _, err := tx.ExecContext(ctx,
				`UPDATE jobs SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
                 WHERE id = ? AND status = ?`,
				StatusFailed, StuckJobMessage, timestamp, timestamp, id, StatusProcessing); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("reap stuck jobs: %w", err)
	}
	return reaped, nil
}

// RetryFailed resets a failed job to pending so the workflow picks it up
// again. Progress, error detail, and timestamps are cleared; persisted units
// survive so a rerun overwrites them by index.
func (s *Store) RetryFailed(ctx context.Context, id int64) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: id %d", ErrJobNotFound, id)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("retry job %d: status is %s, only failed jobs can be retried", id, job.Status)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	err = s.withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, progress = 0, current_step = NULL, error_message = NULL,
                 started_at = NULL, completed_at = NULL, updated_at = ?
             WHERE id = ?`,
			StatusPending, timestamp, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("retry job %d: %w", id, err)
	}
	return s.GetByID(ctx, id)
}

// ClearCompleted deletes completed jobs and their units, returning the number
// of jobs removed.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	var removed int64
	err := s.withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return removed, nil
}

// Stats returns a count of jobs grouped by lifecycle state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending += count
		case StatusProcessing:
			stats.Processing += count
		case StatusCompleted:
			stats.Completed += count
		case StatusFailed:
			stats.Failed += count
		}
	}
	return stats, rows.Err()
}

// CheckHealth returns diagnostic information about the job database.
func (s *Store) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{
		DBPath:        s.path,
		SchemaVersion: strconv.Itoa(schemaVersion),
	}

	if s.path == "" {
		return health, errors.New("job database path is unknown")
	}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat job database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("job database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping job database: %w", err)
	}
	health.DatabaseReadable = true

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("integrity check: %w", err)
		}
	}
	health.IntegrityCheck = integrity == "ok"

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM jobs").Scan(&health.TotalJobs); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count jobs: %w", err)
	}
	return health, nil
}
