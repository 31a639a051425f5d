package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Captions.WordsPerSegment != defaultWordsPerSegment {
		t.Fatalf("words per segment = %d, want default %d", cfg.Captions.WordsPerSegment, defaultWordsPerSegment)
	}
	if cfg.Notifications.NtfyTopic != "" || cfg.Notifications.NtfyRequestTimeout != defaultNtfyRequestTimeout {
		t.Fatalf("notifications defaults = %+v", cfg.Notifications)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
work_dir = "` + filepath.Join(dir, "work") + `"

[selection]
min_duration = 20.0
max_duration = 90.0
models = ["openai/gpt-4o-mini"]

[reaper]
stuck_after_minutes = 45
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected exists=true")
	}
	if cfg.Selection.MinDuration != 20.0 || cfg.Selection.MaxDuration != 90.0 {
		t.Fatalf("duration bounds = %v..%v, want 20..90", cfg.Selection.MinDuration, cfg.Selection.MaxDuration)
	}
	if len(cfg.Selection.Models) != 1 || cfg.Selection.Models[0] != "openai/gpt-4o-mini" {
		t.Fatalf("models = %v", cfg.Selection.Models)
	}
	if cfg.Reaper.StuckAfterMinute != 45 {
		t.Fatalf("stuck_after_minutes = %d, want 45", cfg.Reaper.StuckAfterMinute)
	}
	if cfg.Paths.WorkDir != filepath.Join(dir, "work") {
		t.Fatalf("work dir = %q", cfg.Paths.WorkDir)
	}
	// Sections absent from the file keep defaults.
	if cfg.Framing.SampleFrames != defaultSampleFrames {
		t.Fatalf("sample frames = %d, want default", cfg.Framing.SampleFrames)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "unknown storage backend",
			mutate: func(c *Config) { c.Storage.Backend = "ftp" },
			want:   "storage.backend",
		},
		{
			name:   "rclone without remote",
			mutate: func(c *Config) { c.Storage.Backend = "rclone"; c.Storage.RcloneRemote = "" },
			want:   "rclone_remote",
		},
		{
			name:   "inverted duration bounds",
			mutate: func(c *Config) { c.Selection.MinDuration = 100; c.Selection.MaxDuration = 50 },
			want:   "max_duration",
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatalf("normalize failed: %v", err)
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatalf("expected error writing over existing config")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[selection]") {
		t.Fatalf("sample config missing selection section")
	}
}
