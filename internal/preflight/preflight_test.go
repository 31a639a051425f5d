package preflight_test

import (
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/preflight"
	"clipforge/internal/testsupport"
)

func stubBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub binary: %v", err)
	}
	return path
}

func TestRunAllPassesWithHealthyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	binDir := t.TempDir()
	cfg.Media.FFmpegBinary = stubBinary(t, binDir, "ffmpeg")
	cfg.Media.FFprobeBinary = stubBinary(t, binDir, "ffprobe")
	cfg.Transcription.Binary = stubBinary(t, binDir, "whisper")

	results := preflight.RunAll(cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllReportsMissingToolAndKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	binDir := t.TempDir()
	cfg.Media.FFmpegBinary = stubBinary(t, binDir, "ffmpeg")
	cfg.Media.FFprobeBinary = stubBinary(t, binDir, "ffprobe")
	cfg.Transcription.Binary = "clearly-not-present-binary"
	cfg.Generation.APIKey = ""

	failed := preflight.Failed(preflight.RunAll(cfg))
	if len(failed) != 2 {
		t.Fatalf("failed = %+v, want 2 failures", failed)
	}
	names := map[string]bool{}
	for _, result := range failed {
		names[result.Name] = true
	}
	if !names["Whisper"] || !names["Generation API key"] {
		t.Fatalf("unexpected failure set: %+v", failed)
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if result := preflight.CheckDirectoryAccess("dir", dir); !result.Passed {
		t.Fatalf("expected pass for %s: %+v", dir, result)
	}

	missing := filepath.Join(dir, "missing")
	if result := preflight.CheckDirectoryAccess("dir", missing); result.Passed {
		t.Fatal("expected failure for missing directory")
	}

	file := stubBinary(t, dir, "not-a-dir")
	if result := preflight.CheckDirectoryAccess("dir", file); result.Passed {
		t.Fatal("expected failure for non-directory path")
	}
}
