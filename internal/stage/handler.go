package stage

import (
	"context"

	"clipforge/internal/queue"
)

// Handler describes the contract the workflow manager needs from each pipeline.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
