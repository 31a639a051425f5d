package workflow

import (
	"context"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running        bool
	LastError      string
	LastJob        *queue.Job
	QueueStats     queue.Stats
	PipelineHealth map[queue.Kind]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	kinds := append([]queue.Kind(nil), m.handlerOrder...)
	handlers := make(map[queue.Kind]stage.Handler, len(kinds))
	for _, kind := range kinds {
		handlers[kind] = m.handlers[kind]
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[queue.Kind]stage.Health, len(kinds))
	for _, kind := range kinds {
		if handler := handlers[kind]; handler != nil {
			health[kind] = handler.HealthCheck(ctx)
		}
	}

	summary := StatusSummary{Running: running, QueueStats: stats, PipelineHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
