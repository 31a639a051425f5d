package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if strings.TrimSpace(c.Storage.RcloneBinary) == "" {
		c.Storage.RcloneBinary = defaultRcloneBinary
	}
	if c.Storage.SignedURLTTL <= 0 {
		c.Storage.SignedURLTTL = defaultSignedURLTTL
	}

	if strings.TrimSpace(c.Selection.APIKey) == "" {
		c.Selection.APIKey = os.Getenv("CLIPFORGE_SELECTION_API_KEY")
	}
	if strings.TrimSpace(c.Generation.APIKey) == "" {
		c.Generation.APIKey = os.Getenv("CLIPFORGE_GENERATION_API_KEY")
	}
	if len(c.Selection.Models) == 0 {
		c.Selection.Models = defaultSelectionModels()
	}
	if c.Selection.MinDuration <= 0 {
		c.Selection.MinDuration = defaultMinClipDuration
	}
	if c.Selection.MaxDuration <= 0 {
		c.Selection.MaxDuration = defaultMaxClipDuration
	}
	if c.Selection.TimeoutSeconds <= 0 {
		c.Selection.TimeoutSeconds = defaultSelectionTimeoutSeconds
	}

	if c.Framing.SampleFrames <= 0 {
		c.Framing.SampleFrames = defaultSampleFrames
	}
	if c.Framing.MinConfidence <= 0 {
		c.Framing.MinConfidence = defaultMinConfidence
	}
	if c.Framing.SubjectWeight <= 0 {
		c.Framing.SubjectWeight = defaultSubjectWeight
	}

	if c.Captions.WordsPerSegment <= 0 {
		c.Captions.WordsPerSegment = defaultWordsPerSegment
	}

	if c.Generation.MaxScenes <= 0 {
		c.Generation.MaxScenes = defaultMaxScenes
	}
	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = defaultGenerationTimeout
	}

	if strings.TrimSpace(c.Media.FFmpegBinary) == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Media.FFprobeBinary) == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}

	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.JobRetryAttempts <= 0 {
		c.Workflow.JobRetryAttempts = defaultJobRetryAttempts
	}
	if c.Workflow.JobRetryDelay <= 0 {
		c.Workflow.JobRetryDelay = defaultJobRetryDelay
	}

	if c.Reaper.SweepInterval <= 0 {
		c.Reaper.SweepInterval = defaultReaperSweepInterval
	}
	if c.Reaper.StuckAfterMinute <= 0 {
		c.Reaper.StuckAfterMinute = defaultStuckAfterMinutes
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyRequestTimeout <= 0 {
		c.Notifications.NtfyRequestTimeout = defaultNtfyRequestTimeout
	}

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
