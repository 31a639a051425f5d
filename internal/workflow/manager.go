// Package workflow coordinates queue processing: it claims pending jobs,
// dispatches them to the registered pipeline for their kind, and records
// the outcome.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
)

// Manager coordinates queue processing using registered pipeline handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service
	handlers     map[queue.Kind]stage.Handler
	handlerOrder []queue.Kind

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		notifier:     notifications.NewService(cfg),
		handlers:     make(map[queue.Kind]stage.Handler),
	}
}

// SetNotifier overrides the notification service. Useful in tests.
func (m *Manager) SetNotifier(notifier notifications.Service) {
	if notifier == nil {
		return
	}
	m.notifier = notifier
}

// Register wires a pipeline handler for a job kind. Registration must finish
// before Start.
func (m *Manager) Register(kind queue.Kind, handler stage.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.handlers[kind]; !exists {
		m.handlerOrder = append(m.handlerOrder, kind)
	}
	m.handlers[kind] = handler
}
