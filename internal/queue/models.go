package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// forwardTransitions enumerates the only legal status moves. Terminal
// states have no exits.
var forwardTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, allowed := range forwardTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Kind distinguishes the two job families.
type Kind string

const (
	// KindClip extracts highlight clips from an existing long-form video.
	KindClip Kind = "clip"
	// KindScene generates a narrated-scene video from a short brief.
	KindScene Kind = "scene"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if normalized == KindClip || normalized == KindScene {
		return normalized, true
	}
	return "", false
}

// Job is one unit-producing pipeline run persisted in SQLite.
type Job struct {
	ID            int64
	CorrelationID string
	Kind          Kind
	Status        Status
	Progress      float64
	CurrentStep   string
	InputRef      string
	UnitCount     int
	AspectW       int
	AspectH       int
	PayloadJSON   string
	ErrorMessage  string
	UnitsProduced int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// ProcessingDuration returns completed_at - started_at, or zero when either
// timestamp is missing.
func (j *Job) ProcessingDuration() time.Duration {
	if j == nil || j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// Unit is one persisted output artifact of a job.
type Unit struct {
	ID         int64
	JobID      int64
	Index      int
	Start      float64
	End        float64
	AssetURI   string
	CaptionURI string
	Preview    string
	SizeBytes  int64
	CreatedAt  time.Time
}

// Duration returns the unit's source time range length.
func (u *Unit) Duration() float64 {
	return u.End - u.Start
}

// Stats aggregates job counts per lifecycle state.
type Stats struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Health captures diagnostic information about the queue database.
type Health struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
