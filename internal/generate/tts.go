package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/services"
)

// SpeechProvider synthesizes narration audio to a local file.
type SpeechProvider interface {
	Synthesize(ctx context.Context, text, voice, destPath string) error
}

// HTTPSpeechProvider calls a hosted text-to-speech endpoint that streams
// audio back in the response body.
type HTTPSpeechProvider struct {
	endpoint   string
	apiKey     string
	model      string
	speechRate float64
	httpClient *http.Client
}

// NewHTTPSpeechProvider builds a speech provider for the configured endpoint.
func NewHTTPSpeechProvider(endpoint, apiKey, model string, speechRate float64, timeout time.Duration) *HTTPSpeechProvider {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if speechRate <= 0 {
		speechRate = 1.0
	}
	return &HTTPSpeechProvider{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		speechRate: speechRate,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type speechRequest struct {
	Model string  `json:"model"`
	Voice string  `json:"voice"`
	Input string  `json:"input"`
	Speed float64 `json:"speed"`
}

// Synthesize converts text to speech and writes the audio to destPath.
func (p *HTTPSpeechProvider) Synthesize(ctx context.Context, text, voice, destPath string) error {
	if p.endpoint == "" {
		return services.Wrap(services.ErrConfiguration, "generate", "synthesize speech", "Speech endpoint is not configured", nil)
	}
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrValidation, "generate", "synthesize speech", "Narration text is empty", nil)
	}
	if voice == "" {
		voice = "alloy"
	}

	payload, err := json.Marshal(speechRequest{Model: p.model, Voice: voice, Input: text, Speed: p.speechRate})
	if err != nil {
		return fmt.Errorf("encode speech request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "generate", "synthesize speech", "Speech endpoint request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return services.Wrap(services.ErrTransient, "generate", "synthesize speech",
			fmt.Sprintf("Speech endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("write audio file: %w", err)
	}
	return out.Close()
}
