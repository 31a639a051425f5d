package framing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"clipforge/internal/detect"
)

type stubSampler struct {
	frames []string
	err    error
}

func (s *stubSampler) SampleFrames(_ context.Context, _, _ string, timestamps []float64) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.frames != nil {
		return s.frames, nil
	}
	paths := make([]string, len(timestamps))
	for i := range timestamps {
		paths[i] = fmt.Sprintf("frame_%03d.jpg", i)
	}
	return paths, nil
}

type stubDetector struct {
	byFrame map[string][]detect.Detection
	err     error
}

func (d *stubDetector) Detect(_ context.Context, imagePath string) ([]detect.Detection, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.byFrame[imagePath], nil
}

func TestTargetDimensions(t *testing.T) {
	tests := []struct {
		srcW, srcH, ratioW, ratioH int
		wantW, wantH               int
	}{
		// Landscape to portrait crops the sides.
		{1920, 1080, 9, 16, 607, 1080},
		// Portrait to landscape crops top and bottom.
		{1080, 1920, 16, 9, 1080, 607},
		// Already square.
		{1000, 1000, 1, 1, 1000, 1000},
	}
	for _, tt := range tests {
		gotW, gotH := TargetDimensions(tt.srcW, tt.srcH, tt.ratioW, tt.ratioH)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Fatalf("TargetDimensions(%d, %d, %d:%d) = %dx%d, want %dx%d",
				tt.srcW, tt.srcH, tt.ratioW, tt.ratioH, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

func TestPlanCentersWithoutDetections(t *testing.T) {
	planner := NewPlanner(&stubDetector{}, &stubSampler{}, Options{SampleFrames: 4}, nil)
	plan, err := planner.Plan(context.Background(), "clip.mp4", t.TempDir(), 1920, 1080, 60, 9, 16)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !plan.Centered {
		t.Fatalf("expected centered fallback")
	}
	wantX := (1920 - plan.Width) / 2
	if plan.XOffset != wantX {
		t.Fatalf("x offset = %d, want %d", plan.XOffset, wantX)
	}
}

func TestPlanCentersWhenFrameSamplingFails(t *testing.T) {
	sampler := &stubSampler{err: errors.New("ffmpeg: decode failed")}
	planner := NewPlanner(&stubDetector{}, sampler, Options{SampleFrames: 4}, nil)
	plan, err := planner.Plan(context.Background(), "clip.mp4", t.TempDir(), 1920, 1080, 60, 9, 16)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !plan.Centered {
		t.Fatalf("expected centered fallback, got %+v", plan)
	}
	if plan.XOffset != (1920-plan.Width)/2 {
		t.Fatalf("x offset = %d, want centered", plan.XOffset)
	}
}

func TestPlanFollowsWeightedSubject(t *testing.T) {
	// One high-weight person on the right side of every frame.
	person := detect.Detection{X1: 1300, Y1: 100, X2: 1700, Y2: 900, Confidence: 0.9, Class: detect.ClassPerson}
	// A low-weight object on the far left should barely pull the crop.
	object := detect.Detection{X1: 0, Y1: 500, X2: 60, Y2: 560, Confidence: 0.4, Class: 56}

	byFrame := map[string][]detect.Detection{}
	sampler := &stubSampler{frames: []string{"f0", "f1", "f2"}}
	for _, name := range sampler.frames {
		byFrame[name] = []detect.Detection{person, object}
	}

	planner := NewPlanner(&stubDetector{byFrame: byFrame}, sampler, Options{SampleFrames: 3, SubjectWeight: 2.0}, nil)
	plan, err := planner.Plan(context.Background(), "clip.mp4", t.TempDir(), 1920, 1080, 60, 9, 16)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.Centered {
		t.Fatalf("expected subject-driven plan")
	}
	// The person centers at x=1500; the crop should sit close to the right
	// clamp rather than the frame center.
	if plan.XOffset <= (1920-plan.Width)/2 {
		t.Fatalf("x offset = %d, expected right of center", plan.XOffset)
	}
	if plan.XOffset > 1920-plan.Width {
		t.Fatalf("x offset = %d exceeds clamp %d", plan.XOffset, 1920-plan.Width)
	}
}

func TestPlanUsesMedianAcrossFrames(t *testing.T) {
	// Two frames agree on a left subject, one outlier frame sees a far-right
	// subject. The median must ignore the outlier.
	left := detect.Detection{X1: 200, Y1: 100, X2: 600, Y2: 900, Confidence: 0.9, Class: detect.ClassPerson}
	right := detect.Detection{X1: 1500, Y1: 100, X2: 1900, Y2: 900, Confidence: 0.9, Class: detect.ClassPerson}

	sampler := &stubSampler{frames: []string{"f0", "f1", "f2"}}
	detector := &stubDetector{byFrame: map[string][]detect.Detection{
		"f0": {left},
		"f1": {left},
		"f2": {right},
	}}

	planner := NewPlanner(detector, sampler, Options{SampleFrames: 3}, nil)
	plan, err := planner.Plan(context.Background(), "clip.mp4", t.TempDir(), 1920, 1080, 60, 9, 16)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	// left subject centers at x=400; offset = 400 - width/2 clamped to 0.
	wantOffset := 400 - plan.Width/2
	if wantOffset < 0 {
		wantOffset = 0
	}
	if plan.XOffset != wantOffset {
		t.Fatalf("x offset = %d, want %d", plan.XOffset, wantOffset)
	}
}

func TestPlanClampsOffsets(t *testing.T) {
	// Subject hugging the right edge; offset must clamp to width - targetWidth.
	edge := detect.Detection{X1: 1850, Y1: 0, X2: 1920, Y2: 1080, Confidence: 0.95, Class: detect.ClassPerson}
	sampler := &stubSampler{frames: []string{"f0"}}
	detector := &stubDetector{byFrame: map[string][]detect.Detection{"f0": {edge}}}

	planner := NewPlanner(detector, sampler, Options{SampleFrames: 1}, nil)
	plan, err := planner.Plan(context.Background(), "clip.mp4", t.TempDir(), 1920, 1080, 60, 9, 16)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.XOffset != 1920-plan.Width {
		t.Fatalf("x offset = %d, want clamp %d", plan.XOffset, 1920-plan.Width)
	}
}
