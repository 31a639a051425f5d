// Package clips turns a source video into a set of short highlight clips:
// transcription, highlight selection, extraction, subject-aware reframing,
// and word-level caption documents.
package clips

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
	"clipforge/internal/framing"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/queue"
	"clipforge/internal/selection"
	"clipforge/internal/services"
	"clipforge/internal/stage"
	"clipforge/internal/storage"
	"clipforge/internal/textutil"
	"clipforge/internal/transcribe"
)

// previewWords is how many leading transcript words identify a clip.
const previewWords = 10

// MediaService is the slice of the media executor the pipeline needs.
type MediaService interface {
	Probe(ctx context.Context, path string) (media.Info, error)
	ExtractClip(ctx context.Context, src, dest string, start, duration float64) error
	RenderCrop(ctx context.Context, src, dest string, width, height, xOffset, yOffset int) error
}

// Selector picks highlight windows from a transcript.
type Selector interface {
	Select(ctx context.Context, transcript string, count int, timelineDuration float64) ([]selection.Candidate, error)
}

// FramePlanner decides the crop geometry for a clip.
type FramePlanner interface {
	Plan(ctx context.Context, videoPath, workDir string, srcWidth, srcHeight int, duration float64, ratioW, ratioH int) (framing.CropPlan, error)
}

// Pipeline implements the clip-generation stage.
type Pipeline struct {
	cfg         *config.Config
	store       *queue.Store
	media       MediaService
	transcriber transcribe.Provider
	selector    Selector
	planner     FramePlanner
	gateway     storage.Gateway
	logger      *slog.Logger
}

// Deps carries the collaborators the pipeline composes.
type Deps struct {
	Media       MediaService
	Transcriber transcribe.Provider
	Selector    Selector
	Planner     FramePlanner
	Gateway     storage.Gateway
}

// NewPipeline builds a clip pipeline from configuration and collaborators.
func NewPipeline(cfg *config.Config, store *queue.Store, deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:         cfg,
		store:       store,
		media:       deps.Media,
		transcriber: deps.Transcriber,
		selector:    deps.Selector,
		planner:     deps.Planner,
		gateway:     deps.Gateway,
		logger:      logging.NewComponentLogger(logger, "clips"),
	}
}

// Prepare validates the job before execution starts.
func (p *Pipeline) Prepare(ctx context.Context, job *queue.Job) error {
	if job.InputRef == "" {
		return services.Wrap(services.ErrValidation, "clips", "prepare", "Job has no input video", nil)
	}
	if _, err := os.Stat(job.InputRef); err != nil {
		return services.Wrap(services.ErrValidation, "clips", "prepare",
			fmt.Sprintf("Input video %s is not readable", job.InputRef), err)
	}
	if job.UnitCount <= 0 {
		return services.Wrap(services.ErrValidation, "clips", "prepare", "Clip count must be positive", nil)
	}
	return nil
}

// Execute runs the clip pipeline for one job. A clip that fails leaves the
// remaining clips untouched; the job only fails when nothing was produced.
func (p *Pipeline) Execute(ctx context.Context, job *queue.Job) error {
	ctx = services.WithStage(ctx, "clips")
	log := logging.WithContext(ctx, p.logger)
	defer os.RemoveAll(p.workDir(job))

	info, err := p.media.Probe(ctx, job.InputRef)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "clips", "probe", "Probing the input video failed", err)
	}
	p.progress(ctx, job, 10, "probing complete")

	transcript, err := p.transcriber.Transcribe(ctx, job.InputRef, p.workDir(job))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "clips", "transcribe", "Transcription failed", err)
	}
	if len(transcript.Words) == 0 {
		return services.Wrap(services.ErrValidation, "clips", "transcribe", "Transcript contains no words", nil)
	}
	p.progress(ctx, job, 30, "transcription complete")

	candidates, err := p.selector.Select(ctx, transcript.Text, job.UnitCount, info.Duration)
	if err != nil {
		return services.Wrap(services.ErrTransient, "clips", "select highlights", "Highlight selection failed", err)
	}
	p.progress(ctx, job, 50, "highlights selected")

	produced := 0
	var lastUnitErr error
	for i, candidate := range candidates {
		index := i + 1
		if err := p.produceClip(services.WithUnitIndex(ctx, index), job, info, transcript, candidate, index); err != nil {
			lastUnitErr = err
			log.Warn("clip failed, continuing with remaining clips",
				logging.Int("clip", index), logging.Error(err))
			continue
		}
		produced++
		percent := 50 + float64(45*(i+1))/float64(len(candidates))
		p.progress(ctx, job, percent, fmt.Sprintf("clip %d of %d", index, len(candidates)))
	}

	if produced == 0 {
		return services.Wrap(services.ErrExternalTool, "clips", "produce clips", "Every clip failed to render", lastUnitErr)
	}
	log.Info("clip job complete", logging.Int("produced", produced), logging.Int("requested", len(candidates)))
	return nil
}

func (p *Pipeline) produceClip(ctx context.Context, job *queue.Job, info media.Info, transcript *transcribe.Transcript, candidate selection.Candidate, index int) error {
	unitDir := filepath.Join(p.workDir(job), fmt.Sprintf("clip-%02d", index))
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return fmt.Errorf("create clip workspace: %w", err)
	}
	defer os.RemoveAll(unitDir)

	extracted := filepath.Join(unitDir, "extract.mp4")
	if err := p.media.ExtractClip(ctx, job.InputRef, extracted, candidate.Start, candidate.Duration()); err != nil {
		return fmt.Errorf("extract clip: %w", err)
	}

	plan, err := p.planner.Plan(ctx, extracted, unitDir, info.Width, info.Height, candidate.Duration(), job.AspectW, job.AspectH)
	if err != nil {
		return fmt.Errorf("plan crop: %w", err)
	}

	rendered := filepath.Join(unitDir, "final.mp4")
	if err := p.media.RenderCrop(ctx, extracted, rendered, plan.Width, plan.Height, plan.XOffset, plan.YOffset); err != nil {
		return fmt.Errorf("render crop: %w", err)
	}

	doc := captions.BuildExact(transcript.Words, candidate.Start, candidate.End, p.cfg.Captions.WordsPerSegment)
	captionPath := filepath.Join(unitDir, "captions.json")
	if err := writeCaptionFile(captionPath, doc); err != nil {
		return err
	}
	// Preview and asset naming come from the clip's own words, not the
	// provider's pitch for it.
	preview := textutil.Preview(doc.Text, previewWords)
	slug := textutil.Slug(preview)

	assetKey := fmt.Sprintf("%s/clip_%02d_%s.mp4", job.CorrelationID, index, slug)
	assetURI, err := p.gateway.Save(ctx, rendered, assetKey)
	if err != nil {
		return fmt.Errorf("store clip: %w", err)
	}
	captionKey := fmt.Sprintf("%s/clip_%02d_%s.captions.json", job.CorrelationID, index, slug)
	captionURI, err := p.gateway.Save(ctx, captionPath, captionKey)
	if err != nil {
		return fmt.Errorf("store captions: %w", err)
	}

	var size int64
	if meta, err := p.gateway.Stat(ctx, assetURI); err == nil {
		size = meta.Size
	}

	return p.store.AppendUnit(ctx, queue.Unit{
		JobID:      job.ID,
		Index:      index,
		Start:      candidate.Start,
		End:        candidate.End,
		AssetURI:   assetURI,
		CaptionURI: captionURI,
		Preview:    preview,
		SizeBytes:  size,
	})
}

// HealthCheck verifies the external tools and storage backend are reachable.
func (p *Pipeline) HealthCheck(ctx context.Context) stage.Health {
	const name = "clips"
	if _, err := exec.LookPath(p.cfg.Media.FFmpegBinary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg not found: %v", err))
	}
	if _, err := exec.LookPath(p.cfg.Media.FFprobeBinary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffprobe not found: %v", err))
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
