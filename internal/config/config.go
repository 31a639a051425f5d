package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Storage configures the asset gateway.
type Storage struct {
	// Backend is "local" or "rclone".
	Backend      string `toml:"backend"`
	RcloneRemote string `toml:"rclone_remote"`
	RcloneBinary string `toml:"rclone_binary"`
	// SignSecret is the HMAC secret used for signed URLs on the local backend.
	SignSecret   string `toml:"sign_secret"`
	SignedURLTTL int    `toml:"signed_url_ttl"`
}

// Selection configures the content-selection provider chain.
type Selection struct {
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	Models         []string `toml:"models"`
	Temperature    float64  `toml:"temperature"`
	MaxTokens      int      `toml:"max_tokens"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MinDuration    float64  `toml:"min_duration"`
	MaxDuration    float64  `toml:"max_duration"`
}

// Transcription configures the speech-to-text provider.
type Transcription struct {
	Binary string `toml:"binary"`
	Model  string `toml:"model"`
}

// Framing configures detection-weighted auto-cropping.
type Framing struct {
	DetectorBinary string  `toml:"detector_binary"`
	DetectorModel  string  `toml:"detector_model"`
	SampleFrames   int     `toml:"sample_frames"`
	MinConfidence  float64 `toml:"min_confidence"`
	SubjectWeight  float64 `toml:"subject_weight"`
}

// Captions configures caption document generation.
type Captions struct {
	WordsPerSegment int `toml:"words_per_segment"`
}

// Generation configures the narrated-scene providers.
type Generation struct {
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	StoryModel      string  `toml:"story_model"`
	ImageEndpoint   string  `toml:"image_endpoint"`
	ImageModel      string  `toml:"image_model"`
	TTSEndpoint     string  `toml:"tts_endpoint"`
	TTSModel        string  `toml:"tts_model"`
	MaxScenes       int     `toml:"max_scenes"`
	SpeechRate      float64 `toml:"speech_rate"`
	StoryCharsMin   int     `toml:"story_chars_min"`
	StoryCharsMax   int     `toml:"story_chars_max"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	SceneAspectRule string  `toml:"scene_aspect_rule"`
}

// Workflow contains daemon timing and retry configuration.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	JobRetryAttempts   int `toml:"job_retry_attempts"`
	JobRetryDelay      int `toml:"job_retry_delay"`
}

// Reaper contains stuck-job sweep configuration.
type Reaper struct {
	SweepInterval    int `toml:"sweep_interval"`
	StuckAfterMinute int `toml:"stuck_after_minutes"`
}

// Notifications contains ntfy push notification configuration.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	NtfyRequestTimeout int    `toml:"ntfy_request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Media contains external encoder/prober binaries.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Config encapsulates all configuration values for clipforge.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Selection     Selection     `toml:"selection"`
	Transcription Transcription `toml:"transcription"`
	Framing       Framing       `toml:"framing"`
	Captions      Captions      `toml:"captions"`
	Generation    Generation    `toml:"generation"`
	Media         Media         `toml:"media"`
	Workflow      Workflow      `toml:"workflow"`
	Reaper        Reaper        `toml:"reaper"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
