package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	var problems []string

	switch c.Storage.Backend {
	case "local", "rclone":
	default:
		problems = append(problems, fmt.Sprintf("storage.backend must be \"local\" or \"rclone\", got %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "rclone" && strings.TrimSpace(c.Storage.RcloneRemote) == "" {
		problems = append(problems, "storage.rclone_remote is required when storage.backend is \"rclone\"")
	}
	if c.Storage.SignedURLTTL <= 0 {
		problems = append(problems, "storage.signed_url_ttl must be positive")
	}

	if c.Selection.MinDuration <= 0 {
		problems = append(problems, "selection.min_duration must be positive")
	}
	if c.Selection.MaxDuration <= c.Selection.MinDuration {
		problems = append(problems, "selection.max_duration must be greater than selection.min_duration")
	}
	if len(c.Selection.Models) == 0 {
		problems = append(problems, "selection.models must list at least one model")
	}
	if c.Selection.Temperature < 0 || c.Selection.Temperature > 2 {
		problems = append(problems, "selection.temperature must be between 0 and 2")
	}

	if c.Framing.SampleFrames <= 0 {
		problems = append(problems, "framing.sample_frames must be positive")
	}
	if c.Framing.MinConfidence < 0 || c.Framing.MinConfidence > 1 {
		problems = append(problems, "framing.min_confidence must be between 0 and 1")
	}
	if c.Framing.SubjectWeight < 1 {
		problems = append(problems, "framing.subject_weight must be at least 1")
	}

	if c.Captions.WordsPerSegment <= 0 {
		problems = append(problems, "captions.words_per_segment must be positive")
	}

	if c.Generation.MaxScenes <= 0 {
		problems = append(problems, "generation.max_scenes must be positive")
	}
	if c.Generation.SpeechRate <= 0 {
		problems = append(problems, "generation.speech_rate must be positive")
	}
	if c.Generation.StoryCharsMin > 0 && c.Generation.StoryCharsMax > 0 &&
		c.Generation.StoryCharsMax < c.Generation.StoryCharsMin {
		problems = append(problems, "generation.story_chars_max must not be less than generation.story_chars_min")
	}

	if c.Workflow.QueuePollInterval <= 0 {
		problems = append(problems, "workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.JobRetryAttempts <= 0 {
		problems = append(problems, "workflow.job_retry_attempts must be positive")
	}

	if c.Reaper.SweepInterval <= 0 {
		problems = append(problems, "reaper.sweep_interval must be positive")
	}
	if c.Reaper.StuckAfterMinute <= 0 {
		problems = append(problems, "reaper.stuck_after_minutes must be positive")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
