// Package framing chooses a crop window for aspect-ratio conversion by
// weighting object detections across sampled frames.
package framing

import (
	"context"
	"log/slog"
	"sort"

	"clipforge/internal/detect"
	"clipforge/internal/logging"
)

// Options tune the planner.
type Options struct {
	// SampleFrames is the number of frames inspected across the clip.
	SampleFrames int
	// SubjectWeight is the extra multiplier applied to detected people.
	SubjectWeight float64
}

// CropPlan is a concrete crop window within the source frame.
type CropPlan struct {
	Width   int
	Height  int
	XOffset int
	YOffset int
	// Centered reports that no subjects were found and the plan fell back
	// to a centered crop.
	Centered bool
}

// FrameSampler extracts frame images from a video at given timestamps.
type FrameSampler interface {
	SampleFrames(ctx context.Context, src, destDir string, timestamps []float64) ([]string, error)
}

// Planner computes crop plans from detections.
type Planner struct {
	detector detect.Detector
	sampler  FrameSampler
	opts     Options
	logger   *slog.Logger
}

// NewPlanner creates a planner. A nil detector disables detection and every
// plan falls back to a centered crop.
func NewPlanner(detector detect.Detector, sampler FrameSampler, opts Options, logger *slog.Logger) *Planner {
	if opts.SampleFrames <= 0 {
		opts.SampleFrames = 10
	}
	if opts.SubjectWeight <= 0 {
		opts.SubjectWeight = 2.0
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{
		detector: detector,
		sampler:  sampler,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "framing"),
	}
}

// TargetDimensions computes the crop size converting srcWidth x srcHeight to
// the ratioW:ratioH aspect without scaling. The wider dimension is cropped.
func TargetDimensions(srcWidth, srcHeight, ratioW, ratioH int) (int, int) {
	targetAspect := float64(ratioW) / float64(ratioH)
	currentAspect := float64(srcWidth) / float64(srcHeight)
	if currentAspect > targetAspect {
		return int(float64(srcHeight) * targetAspect), srcHeight
	}
	return srcWidth, int(float64(srcWidth) / targetAspect)
}

// Plan chooses a crop window for videoPath. Frames are sampled evenly across
// the clip, detections in each frame vote for a horizontal offset weighted by
// confidence, box size, and subject class, and the median offset across
// frames wins. With no usable detections the crop centers.
func (p *Planner) Plan(ctx context.Context, videoPath, workDir string, srcWidth, srcHeight int, duration float64, ratioW, ratioH int) (CropPlan, error) {
	targetWidth, targetHeight := TargetDimensions(srcWidth, srcHeight, ratioW, ratioH)
	plan := CropPlan{
		Width:   targetWidth,
		Height:  targetHeight,
		YOffset: (srcHeight - targetHeight) / 2,
	}

	if p.detector == nil || p.sampler == nil || targetWidth >= srcWidth {
		plan.XOffset = (srcWidth - targetWidth) / 2
		plan.Centered = true
		return plan, nil
	}

	timestamps := sampleTimestamps(duration, p.opts.SampleFrames)
	framePaths, err := p.sampler.SampleFrames(ctx, videoPath, workDir, timestamps)
	if err != nil {
		// Frame sampling is advisory. Without frames the crop centers.
		plan.XOffset = (srcWidth - targetWidth) / 2
		plan.Centered = true
		p.logger.WarnContext(ctx, "frame sampling failed, centering crop",
			logging.Error(err))
		return plan, nil
	}

	var offsets []int
	for _, framePath := range framePaths {
		detections, err := p.detector.Detect(ctx, framePath)
		if err != nil {
			// A failed frame does not sink the plan; remaining frames
			// still vote.
			p.logger.WarnContext(ctx, "frame detection failed",
				logging.String("frame", framePath),
				logging.Error(err))
			continue
		}
		if offset, ok := p.frameOffset(detections, srcWidth, targetWidth); ok {
			offsets = append(offsets, offset)
		}
	}

	if len(offsets) == 0 {
		plan.XOffset = (srcWidth - targetWidth) / 2
		plan.Centered = true
		p.logger.InfoContext(ctx, "no subjects detected, centering crop",
			logging.Int("frames", len(framePaths)))
		return plan, nil
	}

	sort.Ints(offsets)
	plan.XOffset = offsets[len(offsets)/2]
	p.logger.InfoContext(ctx, "crop plan chosen",
		logging.Int("x_offset", plan.XOffset),
		logging.Int("votes", len(offsets)))
	return plan, nil
}

// frameOffset turns one frame's detections into a clamped crop offset vote.
func (p *Planner) frameOffset(detections []detect.Detection, srcWidth, targetWidth int) (int, bool) {
	var weightedSum, totalWeight float64
	for _, det := range detections {
		weight := det.Confidence * det.Area()
		if det.Class == detect.ClassPerson {
			weight *= p.opts.SubjectWeight
		}
		if weight <= 0 {
			continue
		}
		weightedSum += weight * det.CenterX()
		totalWeight += weight
	}
	if totalWeight <= 0 {
		return 0, false
	}

	center := weightedSum / totalWeight
	offset := int(center - float64(targetWidth)/2)
	if offset < 0 {
		offset = 0
	}
	if max := srcWidth - targetWidth; offset > max {
		offset = max
	}
	return offset, true
}

// sampleTimestamps spreads count sample points evenly across the duration,
// avoiding the very first and last instants.
func sampleTimestamps(duration float64, count int) []float64 {
	if count <= 0 || duration <= 0 {
		return nil
	}
	timestamps := make([]float64, 0, count)
	step := duration / float64(count)
	for i := 0; i < count; i++ {
		timestamps = append(timestamps, step*float64(i)+step/2)
	}
	return timestamps
}
