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

// ImageProvider renders a scene illustration to a local file.
type ImageProvider interface {
	Render(ctx context.Context, prompt, style, destPath string) error
}

var imageStylePrompts = map[string]string{
	"photorealistic": "ultra-realistic, high resolution, professional photography, detailed",
	"cinematic":      "cinematic lighting, dramatic composition, film quality, movie scene",
	"anime":          "anime style, vibrant colors, detailed illustration, Japanese animation",
	"comic-book":     "comic book art style, bold lines, dramatic colors, graphic novel",
	"pixar-art":      "3D Pixar animation style, colorful, family-friendly, animated movie",
}

// HTTPImageProvider calls a hosted image-generation endpoint that returns a
// URL to the rendered asset.
type HTTPImageProvider struct {
	endpoint    string
	apiKey      string
	model       string
	aspectRatio string
	httpClient  *http.Client
}

// NewHTTPImageProvider builds an image provider for the configured endpoint.
func NewHTTPImageProvider(endpoint, apiKey, model, aspectRatio string, timeout time.Duration) *HTTPImageProvider {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPImageProvider{
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       model,
		aspectRatio: aspectRatio,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type imageRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

type imageResponse struct {
	URL    string   `json:"url"`
	Output []string `json:"output"`
}

// Render generates the image and downloads it to destPath.
func (p *HTTPImageProvider) Render(ctx context.Context, prompt, style, destPath string) error {
	if p.endpoint == "" {
		return services.Wrap(services.ErrConfiguration, "generate", "render image", "Image endpoint is not configured", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return services.Wrap(services.ErrValidation, "generate", "render image", "Image prompt is empty", nil)
	}

	styled := prompt
	if enhancement, ok := imageStylePrompts[style]; ok {
		styled = fmt.Sprintf("%s, %s style, %s aspect ratio, high quality, detailed", prompt, enhancement, p.aspectRatio)
	} else if style != "" {
		styled = fmt.Sprintf("%s, %s style, %s aspect ratio, high quality, detailed", prompt, style, p.aspectRatio)
	}

	payload, err := json.Marshal(imageRequest{Model: p.model, Prompt: styled, AspectRatio: p.aspectRatio})
	if err != nil {
		return fmt.Errorf("encode image request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "generate", "render image", "Image endpoint request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "generate", "render image", "Reading image endpoint response failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "generate", "render image",
			fmt.Sprintf("Image endpoint returned status %d", resp.StatusCode), nil)
	}

	var decoded imageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return services.Wrap(services.ErrTransient, "generate", "render image", "Image endpoint returned an unparseable response", err)
	}
	imageURL := decoded.URL
	if imageURL == "" && len(decoded.Output) > 0 {
		imageURL = decoded.Output[0]
	}
	if imageURL == "" {
		return services.Wrap(services.ErrTransient, "generate", "render image", "Image endpoint returned no asset URL", nil)
	}
	return p.download(ctx, imageURL, destPath)
}

func (p *HTTPImageProvider) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "generate", "download image", "Image download failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "generate", "download image",
			fmt.Sprintf("Image download returned status %d", resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("write image file: %w", err)
	}
	return out.Close()
}
