// Package scenes builds narrated videos from a story request: storyboard
// generation, per-scene image and speech synthesis, scene composition, and
// caption timing recovered from the rendered narration.
package scenes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"clipforge/internal/captions"
	"clipforge/internal/config"
	"clipforge/internal/generate"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
	"clipforge/internal/storage"
	"clipforge/internal/textutil"
	"clipforge/internal/transcribe"
)

// MediaService is the slice of the media executor the pipeline needs.
type MediaService interface {
	AudioDuration(ctx context.Context, path string) (float64, error)
	ComposeScene(ctx context.Context, imagePath, audioPath, dest string, duration float64) error
	Concat(ctx context.Context, segments []string, dest string) error
}

// StoryWriter produces the narration prose and the storyboard.
type StoryWriter interface {
	Story(ctx context.Context, params generate.StoryParams) (string, error)
	Storyboard(ctx context.Context, story string) ([]generate.Scene, error)
}

// Pipeline implements the narrated-scene stage.
type Pipeline struct {
	cfg         *config.Config
	store       *queue.Store
	writer      StoryWriter
	images      generate.ImageProvider
	speech      generate.SpeechProvider
	media       MediaService
	transcriber transcribe.Provider
	gateway     storage.Gateway
	logger      *slog.Logger
}

// Deps carries the collaborators the pipeline composes.
type Deps struct {
	Writer      StoryWriter
	Images      generate.ImageProvider
	Speech      generate.SpeechProvider
	Media       MediaService
	Transcriber transcribe.Provider
	Gateway     storage.Gateway
}

// NewPipeline builds a scene pipeline from configuration and collaborators.
func NewPipeline(cfg *config.Config, store *queue.Store, deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:         cfg,
		store:       store,
		writer:      deps.Writer,
		images:      deps.Images,
		speech:      deps.Speech,
		media:       deps.Media,
		transcriber: deps.Transcriber,
		gateway:     deps.Gateway,
		logger:      logging.NewComponentLogger(logger, "scenes"),
	}
}

// Prepare validates the job payload before execution starts.
func (p *Pipeline) Prepare(ctx context.Context, job *queue.Job) error {
	params, err := stage.DecodePayload[generate.StoryParams](job)
	if err != nil {
		return err
	}
	if params.Category == "" {
		return services.Wrap(services.ErrValidation, "scenes", "prepare", "Job payload has no story category", nil)
	}
	if params.Category == "custom" && params.Content == "" {
		return services.Wrap(services.ErrValidation, "scenes", "prepare", "Custom stories require content", nil)
	}
	return nil
}

// Execute runs the narrated-scene pipeline for one job. Every scene must
// render; a missing segment would leave a hole in the concatenated video.
func (p *Pipeline) Execute(ctx context.Context, job *queue.Job) error {
	ctx = services.WithStage(ctx, "scenes")
	log := logging.WithContext(ctx, p.logger)
	workDir := p.workDir(job)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create job workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	params, err := stage.DecodePayload[generate.StoryParams](job)
	if err != nil {
		return err
	}

	story, err := p.writer.Story(ctx, params)
	if err != nil {
		return err
	}
	p.progress(ctx, job, 10, "story generated")

	scenes, err := p.writer.Storyboard(ctx, story)
	if err != nil {
		return err
	}
	p.progress(ctx, job, 20, "storyboard created")

	segments := make([]string, 0, len(scenes))
	current := 0.0
	for i := range scenes {
		scene := &scenes[i]
		segment, err := p.renderScene(ctx, workDir, params, scene)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "scenes", "render scene",
				fmt.Sprintf("Scene %d failed to render", scene.Number), err)
		}
		// Narration length wins over the storyboard estimate.
		scene.Start = current
		scene.End = current + scene.Duration
		current = scene.End
		segments = append(segments, segment)

		percent := 20 + float64(55*(i+1))/float64(len(scenes))
		p.progress(ctx, job, percent, fmt.Sprintf("scene %d of %d", scene.Number, len(scenes)))
	}

	finalVideo := filepath.Join(workDir, "final.mp4")
	if err := p.media.Concat(ctx, segments, finalVideo); err != nil {
		return services.Wrap(services.ErrExternalTool, "scenes", "concat", "Joining scene segments failed", err)
	}
	p.progress(ctx, job, 80, "video assembled")

	doc, err := p.buildCaptions(ctx, workDir, scenes, finalVideo)
	if err != nil {
		return err
	}
	captionPath := filepath.Join(workDir, "captions.json")
	if err := writeCaptionFile(captionPath, doc); err != nil {
		return err
	}
	p.progress(ctx, job, 90, "captions generated")

	assetURI, err := p.gateway.Save(ctx, finalVideo, job.CorrelationID+"/video.mp4")
	if err != nil {
		return fmt.Errorf("store video: %w", err)
	}
	captionURI, err := p.gateway.Save(ctx, captionPath, job.CorrelationID+"/video.captions.json")
	if err != nil {
		return fmt.Errorf("store captions: %w", err)
	}

	var size int64
	if meta, err := p.gateway.Stat(ctx, assetURI); err == nil {
		size = meta.Size
	}
	if err := p.store.AppendUnit(ctx, queue.Unit{
		JobID:      job.ID,
		Index:      1,
		Start:      0,
		End:        current,
		AssetURI:   assetURI,
		CaptionURI: captionURI,
		Preview:    textutil.Preview(story, 12),
		SizeBytes:  size,
	}); err != nil {
		return err
	}

	log.Info("scene job complete", logging.Int("scenes", len(scenes)), logging.Float64("duration", current))
	return nil
}

// renderScene produces one composed segment and rewrites the scene duration
// to match the synthesized narration.
func (p *Pipeline) renderScene(ctx context.Context, workDir string, params generate.StoryParams, scene *generate.Scene) (string, error) {
	imagePath := filepath.Join(workDir, fmt.Sprintf("scene_%02d.png", scene.Number))
	if err := p.images.Render(ctx, scene.ImagePrompt, params.Style, imagePath); err != nil {
		return "", fmt.Errorf("render image: %w", err)
	}

	audioPath := filepath.Join(workDir, fmt.Sprintf("audio_%02d.mp3", scene.Number))
	if err := p.speech.Synthesize(ctx, scene.Text, params.Voice, audioPath); err != nil {
		return "", fmt.Errorf("synthesize narration: %w", err)
	}

	duration, err := p.media.AudioDuration(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("measure narration: %w", err)
	}
	if duration > 0 {
		scene.Duration = duration
	}

	segment := filepath.Join(workDir, fmt.Sprintf("segment_%02d.mp4", scene.Number))
	if err := p.media.ComposeScene(ctx, imagePath, audioPath, segment, scene.Duration); err != nil {
		return "", fmt.Errorf("compose segment: %w", err)
	}
	return segment, nil
}

// buildCaptions recovers word timing from the rendered narration and maps it
// back onto the scripted scene text. When transcription fails the scripted
// text is distributed evenly instead.
func (p *Pipeline) buildCaptions(ctx context.Context, workDir string, scenes []generate.Scene, finalVideo string) (captions.Document, error) {
	sceneTexts := make([]captions.SceneText, len(scenes))
	for i, scene := range scenes {
		sceneTexts[i] = captions.SceneText{Text: scene.Text, Start: scene.Start, Duration: scene.Duration}
	}

	transcript, err := p.transcriber.Transcribe(ctx, finalVideo, workDir)
	if err != nil {
		p.logger.Warn("transcription failed, using scripted timing", logging.Error(err))
		return captions.RemapScenes(sceneTexts, nil), nil
	}
	return captions.RemapScenes(sceneTexts, transcript.Words), nil
}

// HealthCheck verifies the external tools and providers are reachable.
func (p *Pipeline) HealthCheck(ctx context.Context) stage.Health {
	const name = "scenes"
	if _, err := exec.LookPath(p.cfg.Media.FFmpegBinary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg not found: %v", err))
	}
	if p.cfg.Generation.ImageEndpoint == "" {
		return stage.Unhealthy(name, "image endpoint not configured")
	}
	if p.cfg.Generation.TTSEndpoint == "" {
		return stage.Unhealthy(name, "speech endpoint not configured")
	}
	if p.gateway == nil {
		return stage.Unhealthy(name, "storage gateway not configured")
	}
	return stage.Healthy(name)
}

func (p *Pipeline) workDir(job *queue.Job) string {
	return filepath.Join(p.cfg.Paths.WorkDir, fmt.Sprintf("job-%d", job.ID))
}

func (p *Pipeline) progress(ctx context.Context, job *queue.Job, percent float64, step string) {
	if err := p.store.SetProgress(ctx, job.ID, percent, step); err != nil {
		p.logger.Warn("progress update failed", logging.Int64("job_id", job.ID), logging.Error(err))
	}
}

func writeCaptionFile(path string, doc captions.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode captions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write captions: %w", err)
	}
	return nil
}
