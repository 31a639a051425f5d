package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/config"
)

const userAgent = "Clipforge-Go/0.1.0"

// Event identifies a job lifecycle milestone worth announcing.
type Event string

const (
	// EventJobStarted fires when the workflow claims a job. Suppressed by
	// the ntfy notifier to avoid chatty feeds.
	EventJobStarted Event = "job_started"
	// EventJobCompleted fires when a job reaches the completed status.
	EventJobCompleted Event = "job_completed"
	// EventJobFailed fires when a job reaches the failed status.
	EventJobFailed Event = "job_failed"
	// EventJobStuck fires when the reaper fails a stalled job.
	EventJobStuck Event = "job_stuck"
	// EventTest exercises the notification transport end to end.
	EventTest Event = "test"
)

// Payload carries event-specific fields used to render the message.
type Payload map[string]string

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.NtfyRequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// Publish renders the event into an ntfy message and posts it. Events with no
// rendering are silently dropped.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	kind := strings.TrimSpace(payload["kind"])
	if kind == "" {
		kind = "job"
	}
	label := strings.TrimSpace(payload["input"])
	if label == "" {
		label = fmt.Sprintf("#%s", payload["id"])
	}

	switch event {
	case EventJobCompleted:
		body := fmt.Sprintf("Finished %s job: %s", kind, label)
		if units := strings.TrimSpace(payload["units"]); units != "" {
			body = fmt.Sprintf("%s (%s clip(s))", body, units)
		}
		if duration := strings.TrimSpace(payload["duration"]); duration != "" {
			body = fmt.Sprintf("%s in %s", body, duration)
		}
		return message{
			title: "Clipforge - Job Complete",
			body:  body,
			tags:  []string{"clipforge", kind, "completed"},
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("Failed %s job: %s", kind, label)
		if reason := strings.TrimSpace(payload["error"]); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title:    "Clipforge - Job Failed",
			body:     body,
			tags:     []string{"clipforge", kind, "failed"},
			priority: "high",
		}, true
	case EventJobStuck:
		return message{
			title:    "Clipforge - Job Stuck",
			body:     fmt.Sprintf("Reaper failed stalled %s job: %s", kind, label),
			tags:     []string{"clipforge", kind, "stuck"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Clipforge - Test",
			body:     "Notification system test",
			tags:     []string{"clipforge", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
