// Package transcribe produces word-timed transcripts from media files by
// shelling out to a whisper-compatible CLI.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"clipforge/internal/services"
)

// Word is a single transcribed word with absolute source timestamps.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a contiguous transcribed span.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the full transcription of a media file.
type Transcript struct {
	Text     string    `json:"text"`
	Words    []Word    `json:"words"`
	Segments []Segment `json:"segments"`
}

// Duration returns the end timestamp of the last word, or zero for an empty
// transcript.
func (t *Transcript) Duration() float64 {
	if t == nil || len(t.Words) == 0 {
		return 0
	}
	return t.Words[len(t.Words)-1].End
}

// Provider transcribes media files.
type Provider interface {
	Transcribe(ctx context.Context, mediaPath, workDir string) (*Transcript, error)
}

// WhisperProvider runs a whisper CLI with word-level timestamps enabled.
type WhisperProvider struct {
	binary        string
	model         string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisperProvider creates a provider using the given binary and model.
func NewWhisperProvider(binary, model string) *WhisperProvider {
	if binary == "" {
		binary = "whisper"
	}
	if model == "" {
		model = "base"
	}
	return &WhisperProvider{binary: binary, model: model}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *WhisperProvider) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	p.commandRunner = runner
}

// Transcribe runs the whisper CLI against mediaPath and parses the JSON it
// writes into workDir.
func (p *WhisperProvider) Transcribe(ctx context.Context, mediaPath, workDir string) (*Transcript, error) {
	if mediaPath == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "run", "media path required", nil)
	}
	if workDir == "" {
		workDir = filepath.Dir(mediaPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "run", "ensure work dir", err)
	}

	args := []string{
		mediaPath,
		"--model", p.model,
		"--output_dir", workDir,
		"--output_format", "json",
		"--word_timestamps", "True",
	}
	if err := p.run(ctx, p.binary, args...); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "run", "whisper invocation failed", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	jsonPath := filepath.Join(workDir, baseName+".json")
	transcript, err := loadTranscript(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "parse", fmt.Sprintf("load %s", jsonPath), err)
	}
	return transcript, nil
}

func (p *WhisperProvider) run(ctx context.Context, name string, args ...string) error {
	if p.commandRunner != nil {
		return p.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// whisperOutput mirrors the JSON document written by the whisper CLI.
type whisperOutput struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

func loadTranscript(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed whisperOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	transcript := &Transcript{Text: strings.TrimSpace(parsed.Text)}
	for _, segment := range parsed.Segments {
		transcript.Segments = append(transcript.Segments, Segment{
			Text:  strings.TrimSpace(segment.Text),
			Start: segment.Start,
			End:   segment.End,
		})
		for _, word := range segment.Words {
			text := strings.TrimSpace(word.Word)
			if text == "" {
				continue
			}
			transcript.Words = append(transcript.Words, Word{
				Text:  text,
				Start: word.Start,
				End:   word.End,
			})
		}
	}
	return transcript, nil
}
