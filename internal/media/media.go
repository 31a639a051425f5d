// Package media shells out to ffmpeg and ffprobe for probing, clip
// extraction, crop rendering, frame sampling, and scene composition.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"clipforge/internal/services"
)

// Info describes the primary video stream of a media file.
type Info struct {
	Width    int
	Height   int
	Duration float64
}

// Executor wraps the ffmpeg and ffprobe binaries.
type Executor struct {
	ffmpegBinary  string
	ffprobeBinary string
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewExecutor creates an executor using the given binaries. Empty values
// fall back to "ffmpeg" and "ffprobe" on PATH.
func NewExecutor(ffmpegBinary, ffprobeBinary string) *Executor {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Executor{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Executor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	e.commandRunner = runner
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the dimensions and duration of a media file.
func (e *Executor) Probe(ctx context.Context, path string) (Info, error) {
	out, err := e.run(ctx, e.ffprobeBinary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	if err != nil {
		return Info{}, services.Wrap(services.ErrExternalTool, "media", "probe", fmt.Sprintf("probe %s", path), err)
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return Info{}, services.Wrap(services.ErrValidation, "media", "probe", "parse ffprobe output", err)
	}

	info := Info{}
	for _, stream := range probed.Streams {
		if stream.CodecType == "video" && stream.Width > 0 {
			info.Width = stream.Width
			info.Height = stream.Height
			break
		}
	}
	if probed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	if info.Duration <= 0 {
		return Info{}, services.Wrap(services.ErrValidation, "media", "probe", fmt.Sprintf("no duration reported for %s", path), nil)
	}
	return info, nil
}

// AudioDuration reads the duration of an audio file in seconds.
func (e *Executor) AudioDuration(ctx context.Context, path string) (float64, error) {
	info, err := e.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// ExtractClip cuts [start, start+duration) out of src into dest, re-encoding
// at near-lossless quality.
func (e *Executor) ExtractClip(ctx context.Context, src, dest string, start, duration float64) error {
	_, err := e.run(ctx, e.ffmpegBinary,
		"-i", src,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-c:v", "libx264",
		"-preset", "slow",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-map_metadata", "-1",
		"-y",
		dest)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "extract",
			fmt.Sprintf("extract %s..%s from %s", formatSeconds(start), formatSeconds(start+duration), src), err)
	}
	return nil
}

// RenderCrop re-encodes src with a crop filter applied.
func (e *Executor) RenderCrop(ctx context.Context, src, dest string, width, height, xOffset, yOffset int) error {
	filter := fmt.Sprintf("crop=%d:%d:%d:%d", width, height, xOffset, yOffset)
	_, err := e.run(ctx, e.ffmpegBinary,
		"-i", src,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		dest)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "crop", fmt.Sprintf("apply %s to %s", filter, src), err)
	}
	return nil
}

// SampleFrames extracts one JPEG per timestamp into destDir and returns the
// written paths in timestamp order.
func (e *Executor) SampleFrames(ctx context.Context, src, destDir string, timestamps []float64) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "media", "frames", "create frame directory", err)
	}
	paths := make([]string, 0, len(timestamps))
	for i, ts := range timestamps {
		dest := filepath.Join(destDir, fmt.Sprintf("frame_%03d.jpg", i))
		_, err := e.run(ctx, e.ffmpegBinary,
			"-ss", formatSeconds(ts),
			"-i", src,
			"-frames:v", "1",
			"-q:v", "2",
			"-y",
			dest)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "media", "frames",
				fmt.Sprintf("extract frame at %s", formatSeconds(ts)), err)
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

// ComposeScene renders a still image plus narration audio into a video
// segment lasting exactly duration seconds.
func (e *Executor) ComposeScene(ctx context.Context, imagePath, audioPath, dest string, duration float64) error {
	_, err := e.run(ctx, e.ffmpegBinary,
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-t", formatSeconds(duration),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-y",
		dest)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "compose",
			fmt.Sprintf("compose scene from %s", filepath.Base(imagePath)), err)
	}
	return nil
}

// Concat stitches the given video segments into dest using the concat
// demuxer. All segments must share codec parameters.
func (e *Executor) Concat(ctx context.Context, segments []string, dest string) error {
	if len(segments) == 0 {
		return services.Wrap(services.ErrValidation, "media", "concat", "no segments to concatenate", nil)
	}

	listFile, err := os.CreateTemp(filepath.Dir(dest), ".concat-*.txt")
	if err != nil {
		return services.Wrap(services.ErrTransient, "media", "concat", "create list file", err)
	}
	defer os.Remove(listFile.Name())
	for _, segment := range segments {
		fmt.Fprintf(listFile, "file '%s'\n", strings.ReplaceAll(segment, "'", `'\''`))
	}
	if err := listFile.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "media", "concat", "flush list file", err)
	}

	_, err = e.run(ctx, e.ffmpegBinary,
		"-f", "concat",
		"-safe", "0",
		"-i", listFile.Name(),
		"-c", "copy",
		"-y",
		dest)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "concat",
			fmt.Sprintf("concatenate %d segments", len(segments)), err)
	}
	return nil
}

func (e *Executor) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, lastOutputLine(out))
	}
	return out, nil
}

func lastOutputLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
