package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleWhisperJSON = `{
	"text": " Hello world. This is a test.",
	"segments": [
		{
			"text": " Hello world.",
			"start": 0.0,
			"end": 1.5,
			"words": [
				{"word": " Hello", "start": 0.0, "end": 0.6},
				{"word": " world.", "start": 0.7, "end": 1.5}
			]
		},
		{
			"text": " This is a test.",
			"start": 2.0,
			"end": 4.0,
			"words": [
				{"word": " This", "start": 2.0, "end": 2.3},
				{"word": " is", "start": 2.4, "end": 2.5},
				{"word": " a", "start": 2.6, "end": 2.7},
				{"word": " test.", "start": 2.8, "end": 4.0}
			]
		}
	]
}`

func TestTranscribeParsesWhisperOutput(t *testing.T) {
	workDir := t.TempDir()
	provider := NewWhisperProvider("whisper", "base")
	provider.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != "whisper" {
			t.Fatalf("binary = %q", name)
		}
		// Simulate the CLI writing its JSON document.
		return os.WriteFile(filepath.Join(workDir, "interview.json"), []byte(sampleWhisperJSON), 0o644)
	})

	transcript, err := provider.Transcribe(context.Background(), "/videos/interview.mp4", workDir)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "Hello world. This is a test." {
		t.Fatalf("text = %q", transcript.Text)
	}
	if len(transcript.Words) != 6 {
		t.Fatalf("words = %d, want 6", len(transcript.Words))
	}
	if transcript.Words[0].Text != "Hello" || transcript.Words[0].End != 0.6 {
		t.Fatalf("first word = %+v", transcript.Words[0])
	}
	if len(transcript.Segments) != 2 {
		t.Fatalf("segments = %d", len(transcript.Segments))
	}
	if got := transcript.Duration(); got != 4.0 {
		t.Fatalf("duration = %v", got)
	}
}

func TestTranscribeRequiresMediaPath(t *testing.T) {
	provider := NewWhisperProvider("", "")
	if _, err := provider.Transcribe(context.Background(), "", t.TempDir()); err == nil {
		t.Fatalf("expected error for empty media path")
	}
}

func TestTranscribeFailsOnMissingOutput(t *testing.T) {
	provider := NewWhisperProvider("", "")
	provider.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return nil
	})
	if _, err := provider.Transcribe(context.Background(), "/videos/missing.mp4", t.TempDir()); err == nil {
		t.Fatalf("expected error when CLI writes no output")
	}
}
