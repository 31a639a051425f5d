package stage

import (
	"encoding/json"

	"clipforge/internal/queue"
	"clipforge/internal/services"
)

// DecodePayload parses a job's payload document into the pipeline's own
// parameter type. On failure it returns a services.ErrValidation suitable
// for pipeline Execute methods.
func DecodePayload[T any](job *queue.Job) (T, error) {
	var payload T
	if job.PayloadJSON == "" {
		return payload, nil
	}
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return payload, services.Wrap(
			services.ErrValidation, "stage", "decode payload",
			"Job payload missing or invalid; resubmit the job", err)
	}
	return payload, nil
}
