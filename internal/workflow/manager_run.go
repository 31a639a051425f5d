package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow pipelines not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextPending(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch next job", logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
			}
			continue
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.pollInterval):
			}
			continue
		}

		if err := m.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
		}
	}
}

// processJob runs one job through its pipeline and records the outcome.
func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, job.CorrelationID)
	log := logging.WithContext(ctx, m.logger).With(logging.String("kind", string(job.Kind)))
	m.setLastJob(job)

	m.mu.RLock()
	handler := m.handlers[job.Kind]
	m.mu.RUnlock()
	if handler == nil {
		message := fmt.Sprintf("No pipeline registered for %s jobs", job.Kind)
		if _, err := m.store.Transition(ctx, job.ID, queue.StatusProcessing, ""); err != nil {
			return err
		}
		_, err := m.store.Transition(ctx, job.ID, queue.StatusFailed, message)
		return err
	}

	claimed, err := m.store.Transition(ctx, job.ID, queue.StatusProcessing, "")
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			// Another worker got there first.
			log.Debug("job claimed elsewhere, skipping")
			return nil
		}
		return err
	}
	log.Info("job started")

	if err := handler.Prepare(ctx, claimed); err != nil {
		log.Error("job preparation failed", logging.Error(err))
		_, ferr := m.store.Transition(ctx, claimed.ID, queue.StatusFailed, failureMessage(err))
		m.notify(ctx, log, notifications.EventJobFailed, claimed, notifications.Payload{
			"error": failureMessage(err),
		})
		return errors.Join(err, ferr)
	}

	execErr := m.executeWithRetry(ctx, log, handler, claimed)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			return execErr
		}
		log.Error("job failed", logging.Error(execErr))
		_, ferr := m.store.Transition(ctx, claimed.ID, queue.StatusFailed, failureMessage(execErr))
		m.notify(ctx, log, notifications.EventJobFailed, claimed, notifications.Payload{
			"error": failureMessage(execErr),
		})
		return errors.Join(execErr, ferr)
	}

	completed, err := m.store.Transition(ctx, claimed.ID, queue.StatusCompleted, "complete")
	if err != nil {
		return err
	}
	log.Info("job completed", logging.Duration("elapsed", completed.ProcessingDuration()))
	m.notify(ctx, log, notifications.EventJobCompleted, completed, notifications.Payload{
		"units":    strconv.Itoa(completed.UnitsProduced),
		"duration": completed.ProcessingDuration().Round(time.Second).String(),
	})
	return nil
}

// notify publishes a job event with common fields filled in. Delivery
// failures are logged and otherwise ignored.
func (m *Manager) notify(ctx context.Context, log *slog.Logger, event notifications.Event, job *queue.Job, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if payload == nil {
		payload = notifications.Payload{}
	}
	payload["id"] = strconv.FormatInt(job.ID, 10)
	payload["kind"] = string(job.Kind)
	payload["input"] = job.InputRef
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		log.Warn("notification delivery failed", logging.Error(err))
	}
}

// executeWithRetry reruns the pipeline for retryable failures with a growing
// delay between attempts.
func (m *Manager) executeWithRetry(ctx context.Context, log *slog.Logger, handler stage.Handler, job *queue.Job) error {
	attempts := m.cfg.Workflow.JobRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := time.Duration(m.cfg.Workflow.JobRetryDelay) * time.Second

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = handler.Execute(ctx, job)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || !services.IsRetryable(lastErr) || attempt == attempts {
			return lastErr
		}
		log.Warn("job attempt failed, retrying",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay * time.Duration(attempt)):
		}
	}
	return lastErr
}

func failureMessage(err error) string {
	if err == nil {
		return "unknown failure"
	}
	return err.Error()
}
