package deps

import (
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unconfigured", Command: "", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available {
		t.Fatal("expected unconfigured command to be unavailable")
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unconfigured command: %s", results[2].Detail)
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: true},
		{Name: "Whisper", Available: false},
		{Name: "Detector", Available: false, Optional: true},
	}

	missing := MissingRequired(statuses)
	if len(missing) != 1 {
		t.Fatalf("expected one missing required dependency, got %d", len(missing))
	}
	if missing[0].Name != "Whisper" {
		t.Fatalf("unexpected missing dependency: %s", missing[0].Name)
	}
}

func TestRequirementsFollowConfiguration(t *testing.T) {
	cfgv := config.Default()
	cfg := &cfgv
	cfg.Framing.DetectorBinary = ""
	cfg.Storage.Backend = "local"

	reqs := Requirements(cfg)
	names := requirementNames(reqs)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requirements, got %d (%v)", len(reqs), names)
	}

	cfg.Framing.DetectorBinary = "detect-subjects"
	cfg.Storage.Backend = "rclone"
	reqs = Requirements(cfg)
	names = requirementNames(reqs)
	if len(reqs) != 5 {
		t.Fatalf("expected 5 requirements, got %d (%v)", len(reqs), names)
	}

	byName := make(map[string]Requirement, len(reqs))
	for _, req := range reqs {
		byName[req.Name] = req
	}
	if !byName["Detector"].Optional {
		t.Fatal("expected detector to be optional")
	}
	if byName["Rclone"].Optional {
		t.Fatal("expected rclone to be required when backend is rclone")
	}
	if byName["FFmpeg"].Command != cfg.Media.FFmpegBinary {
		t.Fatalf("unexpected ffmpeg command: %s", byName["FFmpeg"].Command)
	}
}

func requirementNames(reqs []Requirement) []string {
	names := make([]string, 0, len(reqs))
	for _, req := range reqs {
		names = append(names, req.Name)
	}
	return names
}
