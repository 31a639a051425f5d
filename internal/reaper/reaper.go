// Package reaper periodically fails processing jobs whose workers stopped
// reporting, so the queue never accumulates jobs stuck in flight.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
)

// Reaper sweeps the queue for stuck processing jobs on an interval.
type Reaper struct {
	store      *queue.Store
	logger     *slog.Logger
	notifier   notifications.Service
	interval   time.Duration
	stuckAfter time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a reaper from configuration.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reaper{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "reaper"),
		notifier:   notifications.NewService(cfg),
		interval:   time.Duration(cfg.Reaper.SweepInterval) * time.Second,
		stuckAfter: time.Duration(cfg.Reaper.StuckAfterMinute) * time.Minute,
	}
}

// SetNotifier overrides the notification service. Useful in tests.
func (r *Reaper) SetNotifier(notifier notifications.Service) {
	if notifier == nil {
		return
	}
	r.notifier = notifier
}

// Start begins background sweeping.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("reaper already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.run(runCtx)
	return nil
}

// Stop terminates background sweeping and waits for completion.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("sweep failed", logging.Error(err))
			}
		}
	}
}

// Sweep fails every processing job that started before the stuck threshold
// and returns the affected job IDs.
func (r *Reaper) Sweep(ctx context.Context) ([]int64, error) {
	cutoff := time.Now().UTC().Add(-r.stuckAfter)
	reaped, err := r.store.ReapStuck(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, id := range reaped {
		r.logger.Warn("stuck job failed by reaper",
			logging.Int64("job_id", id),
			logging.Duration("stuck_after", r.stuckAfter),
		)
		r.publishStuck(ctx, id)
	}
	return reaped, nil
}

func (r *Reaper) publishStuck(ctx context.Context, id int64) {
	if r.notifier == nil {
		return
	}
	payload := notifications.Payload{"id": strconv.FormatInt(id, 10)}
	if job, err := r.store.GetByID(ctx, id); err == nil {
		payload["kind"] = string(job.Kind)
		payload["input"] = job.InputRef
	}
	if err := r.notifier.Publish(ctx, notifications.EventJobStuck, payload); err != nil {
		r.logger.Warn("notification delivery failed", logging.Error(err))
	}
}
