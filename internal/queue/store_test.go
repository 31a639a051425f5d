package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestJob(t *testing.T, store *Store) *Job {
	t.Helper()
	job, err := store.CreateJob(context.Background(), NewJobParams{
		Kind:      KindClip,
		InputRef:  "/videos/source.mp4",
		UnitCount: 3,
		AspectW:   9,
		AspectH:   16,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestCreateJobDefaults(t *testing.T) {
	store := openTestStore(t)
	job := createTestJob(t, store)

	if job.Status != StatusPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}
	if job.CorrelationID == "" {
		t.Fatalf("correlation id not assigned")
	}
	if job.Progress != 0 || job.UnitsProduced != 0 {
		t.Fatalf("fresh job carries progress %v, units %d", job.Progress, job.UnitsProduced)
	}
	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Fatalf("fresh job has timestamps set")
	}

	byCorrelation, err := store.GetByCorrelationID(context.Background(), job.CorrelationID)
	if err != nil || byCorrelation == nil || byCorrelation.ID != job.ID {
		t.Fatalf("lookup by correlation id failed: %v", err)
	}
}

func TestTransitionEnforcesForwardOnly(t *testing.T) {
	store := openTestStore(t)
	job := createTestJob(t, store)
	ctx := context.Background()

	// pending -> completed skips processing and must be rejected.
	if _, err := store.Transition(ctx, job.ID, StatusCompleted, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending->completed err = %v, want ErrInvalidTransition", err)
	}

	processing, err := store.Transition(ctx, job.ID, StatusProcessing, "")
	if err != nil {
		t.Fatalf("pending->processing failed: %v", err)
	}
	if processing.StartedAt == nil {
		t.Fatalf("started_at not stamped")
	}

	completed, err := store.Transition(ctx, job.ID, StatusCompleted, "done")
	if err != nil {
		t.Fatalf("processing->completed failed: %v", err)
	}
	if completed.CompletedAt == nil || completed.Progress != 100 {
		t.Fatalf("completed job = %+v", completed)
	}
	if completed.StartedAt.After(*completed.CompletedAt) {
		t.Fatalf("started_at after completed_at")
	}

	// Terminal states have no exits.
	if _, err := store.Transition(ctx, job.ID, StatusProcessing, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed->processing err = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionFailedRequiresMessage(t *testing.T) {
	store := openTestStore(t)
	job := createTestJob(t, store)
	ctx := context.Background()

	if _, err := store.Transition(ctx, job.ID, StatusProcessing, ""); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if _, err := store.Transition(ctx, job.ID, StatusFailed, ""); err == nil {
		t.Fatalf("expected error for failed transition without message")
	}
	failed, err := store.Transition(ctx, job.ID, StatusFailed, "selection unavailable")
	if err != nil {
		t.Fatalf("to failed: %v", err)
	}
	if failed.ErrorMessage != "selection unavailable" || failed.CompletedAt == nil {
		t.Fatalf("failed job = %+v", failed)
	}
}

func TestSetProgressMonotonic(t *testing.T) {
	store := openTestStore(t)
	job := createTestJob(t, store)
	ctx := context.Background()

	if err := store.SetProgress(ctx, job.ID, 25, "transcribing"); err != nil {
		t.Fatalf("progress 25: %v", err)
	}
	if err := store.SetProgress(ctx, job.ID, 60, "rendering"); err != nil {
		t.Fatalf("progress 60: %v", err)
	}
	if err := store.SetProgress(ctx, job.ID, 40, "backwards"); !errors.Is(err, ErrProgressRegression) {
		t.Fatalf("regression err = %v, want ErrProgressRegression", err)
	}
	if err := store.SetProgress(ctx, job.ID, 140, "overflow"); !errors.Is(err, ErrProgressRegression) {
		t.Fatalf("overflow err = %v, want ErrProgressRegression", err)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Progress != 60 || got.CurrentStep != "rendering" {
		t.Fatalf("job = progress %v step %q", got.Progress, got.CurrentStep)
	}
}

func TestAppendUnitIdempotent(t *testing.T) {
	store := openTestStore(t)
	job := createTestJob(t, store)
	ctx := context.Background()

	unit := Unit{JobID: job.ID, Index: 1, Start: 10, End: 70, AssetURI: "file:///a.mp4", SizeBytes: 1000}
	if err := store.AppendUnit(ctx, unit); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Retrying the same index must update, not duplicate.
	unit.SizeBytes = 2000
	if err := store.AppendUnit(ctx, unit); err != nil {
		t.Fatalf("append retry: %v", err)
	}
	if err := store.AppendUnit(ctx, Unit{JobID: job.ID, Index: 2, Start: 100, End: 160}); err != nil {
		t.Fatalf("append second: %v", err)
	}

	units, err := store.Units(ctx, job.ID)
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}
	if units[0].SizeBytes != 2000 {
		t.Fatalf("retried unit size = %d, want updated 2000", units[0].SizeBytes)
	}

	got, _ := store.GetByID(ctx, job.ID)
	if got.UnitsProduced != 2 {
		t.Fatalf("units_produced = %d, want 2", got.UnitsProduced)
	}
}

func TestNextPendingOrdersByCreation(t *testing.T) {
	store := openTestStore(t)
	first := createTestJob(t, store)
	time.Sleep(5 * time.Millisecond)
	createTestJob(t, store)

	next, err := store.NextPending(context.Background())
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("next = %+v, want job %d", next, first.ID)
	}
}

func TestReapStuckFailsOldProcessingJobs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stuck := createTestJob(t, store)
	if _, err := store.Transition(ctx, stuck.ID, StatusProcessing, ""); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	// Backdate started_at by 40 minutes.
	old := time.Now().UTC().Add(-40 * time.Minute).Format(time.RFC3339Nano)
	if _, err := store.db.ExecContext(ctx, `UPDATE jobs SET started_at = ? WHERE id = ?`, old, stuck.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	fresh := createTestJob(t, store)
	if _, err := store.Transition(ctx, fresh.ID, StatusProcessing, ""); err != nil {
		t.Fatalf("to processing: %v", err)
	}

	cutoff := time.Now().Add(-30 * time.Minute)
	reaped, err := store.ReapStuck(ctx, cutoff)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(reaped) != 1 || reaped[0] != stuck.ID {
		t.Fatalf("reaped = %v, want [%d]", reaped, stuck.ID)
	}

	got, _ := store.GetByID(ctx, stuck.ID)
	if got.Status != StatusFailed || got.ErrorMessage != StuckJobMessage {
		t.Fatalf("stuck job = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatalf("completed_at not stamped")
	}
	if got.ProcessingDuration() < 39*time.Minute {
		t.Fatalf("processing duration = %v", got.ProcessingDuration())
	}

	untouched, _ := store.GetByID(ctx, fresh.ID)
	if untouched.Status != StatusProcessing {
		t.Fatalf("fresh job status = %s", untouched.Status)
	}
}

func TestReapStuckIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := createTestJob(t, store)
	if _, err := store.Transition(ctx, job.ID, StatusProcessing, ""); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	old := time.Now().UTC().Add(-40 * time.Minute).Format(time.RFC3339Nano)
	if _, err := store.db.ExecContext(ctx, `UPDATE jobs SET started_at = ? WHERE id = ?`, old, job.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	cutoff := time.Now().Add(-30 * time.Minute)
	if _, err := store.ReapStuck(ctx, cutoff); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	after, _ := store.GetByID(ctx, job.ID)

	// A second sweep must not touch the already-failed job.
	reaped, err := store.ReapStuck(ctx, cutoff)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(reaped) != 0 {
		t.Fatalf("second sweep reaped %v", reaped)
	}
	again, _ := store.GetByID(ctx, job.ID)
	if !again.CompletedAt.Equal(*after.CompletedAt) || again.ErrorMessage != after.ErrorMessage {
		t.Fatalf("second sweep altered the job: %+v vs %+v", again, after)
	}
}

func TestRetryFailedResetsJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := createTestJob(t, store)
	if _, err := store.Transition(ctx, job.ID, StatusProcessing, ""); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if err := store.SetProgress(ctx, job.ID, 50, "halfway"); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if _, err := store.Transition(ctx, job.ID, StatusFailed, "boom"); err != nil {
		t.Fatalf("to failed: %v", err)
	}

	reset, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if reset.Status != StatusPending || reset.Progress != 0 || reset.ErrorMessage != "" {
		t.Fatalf("reset job = %+v", reset)
	}
	if reset.StartedAt != nil || reset.CompletedAt != nil {
		t.Fatalf("timestamps not cleared")
	}

	// Only failed jobs can be retried.
	if _, err := store.RetryFailed(ctx, job.ID); err == nil {
		t.Fatalf("expected error retrying pending job")
	}
}

func TestStatsAndClearCompleted(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	done := createTestJob(t, store)
	if _, err := store.Transition(ctx, done.ID, StatusProcessing, ""); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if _, err := store.Transition(ctx, done.ID, StatusCompleted, "done"); err != nil {
		t.Fatalf("to completed: %v", err)
	}
	createTestJob(t, store)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Completed != 1 || stats.Pending != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
}
