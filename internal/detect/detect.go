// Package detect locates subjects in video frames via an external object
// detection CLI that emits JSON.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"clipforge/internal/services"
)

// ClassPerson is the detector class id for people.
const ClassPerson = 0

// Detection is a single detected object in one frame.
type Detection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Class      int     `json:"class"`
}

// CenterX returns the horizontal center of the detection box.
func (d Detection) CenterX() float64 {
	return (d.X1 + d.X2) / 2
}

// Area returns the box area in square pixels.
func (d Detection) Area() float64 {
	return (d.X2 - d.X1) * (d.Y2 - d.Y1)
}

// Detector finds objects in a single image.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// CLIDetector shells out to a detection binary that prints a JSON array of
// detections on stdout.
type CLIDetector struct {
	binary        string
	model         string
	minConfidence float64
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCLIDetector creates a detector around the given binary and model.
func NewCLIDetector(binary, model string, minConfidence float64) *CLIDetector {
	if binary == "" {
		binary = "clipforge-detect"
	}
	return &CLIDetector{
		binary:        binary,
		model:         model,
		minConfidence: minConfidence,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (d *CLIDetector) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	d.commandRunner = runner
}

// Detect runs the detector against one frame image. Detections below the
// confidence floor are dropped.
func (d *CLIDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	args := []string{
		"--image", imagePath,
		"--format", "json",
	}
	if d.model != "" {
		args = append(args, "--model", d.model)
	}
	if d.minConfidence > 0 {
		args = append(args, "--conf", strconv.FormatFloat(d.minConfidence, 'f', 2, 64))
	}

	out, err := d.run(ctx, d.binary, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "detect", "run",
			fmt.Sprintf("detect objects in %s", imagePath), err)
	}

	var detections []Detection
	if err := json.Unmarshal(out, &detections); err != nil {
		return nil, services.Wrap(services.ErrValidation, "detect", "parse", "parse detector output", err)
	}

	kept := detections[:0]
	for _, det := range detections {
		if det.Confidence >= d.minConfidence {
			kept = append(kept, det)
		}
	}
	return kept, nil
}

func (d *CLIDetector) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if d.commandRunner != nil {
		return d.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		detail := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return out, nil
}
