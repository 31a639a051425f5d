package config

const (
	defaultWorkDir   = "~/.local/share/clipforge/work"
	defaultOutputDir = "~/.local/share/clipforge/output"
	defaultLogDir    = "~/.local/share/clipforge/logs"

	defaultStorageBackend = "local"
	defaultRcloneBinary   = "rclone"
	defaultSignedURLTTL   = 3600

	defaultSelectionBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultSelectionTemperature    = 0.4
	defaultSelectionMaxTokens      = 2000
	defaultSelectionTimeoutSeconds = 60
	defaultMinClipDuration         = 30.0
	defaultMaxClipDuration         = 120.0

	defaultTranscribeBinary = "whisper"
	defaultTranscribeModel  = "base"

	defaultDetectorBinary  = "clipforge-detect"
	defaultDetectorModel   = "yolov8n"
	defaultSampleFrames    = 10
	defaultMinConfidence   = 0.3
	defaultSubjectWeight   = 2.0
	defaultWordsPerSegment = 12

	defaultStoryModel          = "gpt-4o-mini"
	defaultGenerationBaseURL   = "https://api.openai.com/v1"
	defaultMaxScenes           = 14
	defaultSpeechRate          = 1.1
	defaultStoryCharsMin       = 700
	defaultStoryCharsMax       = 800
	defaultGenerationTimeout   = 120
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultQueuePollInterval   = 5
	defaultErrorRetryInterval  = 10
	defaultJobRetryAttempts    = 3
	defaultJobRetryDelay       = 5
	defaultReaperSweepInterval = 300
	defaultStuckAfterMinutes   = 30

	defaultNtfyRequestTimeout = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

func defaultSelectionModels() []string {
	return []string{
		"google/gemini-3-flash-preview",
		"openai/gpt-4o-mini",
		"meta-llama/llama-3.1-70b-instruct",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Storage: Storage{
			Backend:      defaultStorageBackend,
			RcloneBinary: defaultRcloneBinary,
			SignedURLTTL: defaultSignedURLTTL,
		},
		Selection: Selection{
			BaseURL:        defaultSelectionBaseURL,
			Models:         defaultSelectionModels(),
			Temperature:    defaultSelectionTemperature,
			MaxTokens:      defaultSelectionMaxTokens,
			TimeoutSeconds: defaultSelectionTimeoutSeconds,
			MinDuration:    defaultMinClipDuration,
			MaxDuration:    defaultMaxClipDuration,
		},
		Transcription: Transcription{
			Binary: defaultTranscribeBinary,
			Model:  defaultTranscribeModel,
		},
		Framing: Framing{
			DetectorBinary: defaultDetectorBinary,
			DetectorModel:  defaultDetectorModel,
			SampleFrames:   defaultSampleFrames,
			MinConfidence:  defaultMinConfidence,
			SubjectWeight:  defaultSubjectWeight,
		},
		Captions: Captions{
			WordsPerSegment: defaultWordsPerSegment,
		},
		Generation: Generation{
			BaseURL:        defaultGenerationBaseURL,
			StoryModel:     defaultStoryModel,
			MaxScenes:      defaultMaxScenes,
			SpeechRate:     defaultSpeechRate,
			StoryCharsMin:  defaultStoryCharsMin,
			StoryCharsMax:  defaultStoryCharsMax,
			TimeoutSeconds: defaultGenerationTimeout,
		},
		Media: Media{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			JobRetryAttempts:   defaultJobRetryAttempts,
			JobRetryDelay:      defaultJobRetryDelay,
		},
		Reaper: Reaper{
			SweepInterval:    defaultReaperSweepInterval,
			StuckAfterMinute: defaultStuckAfterMinutes,
		},
		Notifications: Notifications{
			NtfyRequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
