package media

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
)

func TestProbeParsesStreams(t *testing.T) {
	e := NewExecutor("", "")
	e.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("binary = %q", name)
		}
		return []byte(`{
			"streams": [
				{"codec_type": "audio"},
				{"codec_type": "video", "width": 1920, "height": 1080}
			],
			"format": {"duration": "312.500000"}
		}`), nil
	})

	info, err := e.Probe(context.Background(), "/tmp/video.mp4")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Fatalf("dimensions = %dx%d", info.Width, info.Height)
	}
	if info.Duration != 312.5 {
		t.Fatalf("duration = %v", info.Duration)
	}
}

func TestProbeRejectsMissingDuration(t *testing.T) {
	e := NewExecutor("", "")
	e.WithCommandRunner(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(`{"streams": [], "format": {}}`), nil
	})
	if _, err := e.Probe(context.Background(), "/tmp/video.mp4"); err == nil {
		t.Fatalf("expected error for missing duration")
	}
}

func TestExtractClipArgs(t *testing.T) {
	e := NewExecutor("", "")
	var got []string
	e.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffmpeg" {
			t.Fatalf("binary = %q", name)
		}
		got = args
		return nil, nil
	})

	if err := e.ExtractClip(context.Background(), "in.mp4", "out.mp4", 10.5, 42); err != nil {
		t.Fatalf("ExtractClip failed: %v", err)
	}
	for _, want := range []string{"-ss", "10.500", "-t", "42.000", "libx264", "-crf", "18", "192k"} {
		if !slices.Contains(got, want) {
			t.Fatalf("args missing %q: %v", want, got)
		}
	}
}

func TestRenderCropBuildsFilter(t *testing.T) {
	e := NewExecutor("", "")
	var got []string
	e.WithCommandRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		got = args
		return nil, nil
	})

	if err := e.RenderCrop(context.Background(), "in.mp4", "out.mp4", 608, 1080, 656, 0); err != nil {
		t.Fatalf("RenderCrop failed: %v", err)
	}
	if !slices.Contains(got, "crop=608:1080:656:0") {
		t.Fatalf("args = %v", got)
	}
}

func TestSampleFramesWritesSequence(t *testing.T) {
	e := NewExecutor("", "")
	var starts []string
	e.WithCommandRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		starts = append(starts, args[1])
		return nil, nil
	})

	dir := t.TempDir()
	paths, err := e.SampleFrames(context.Background(), "in.mp4", dir, []float64{1, 2.5, 4})
	if err != nil {
		t.Fatalf("SampleFrames failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths = %v", paths)
	}
	if filepath.Base(paths[0]) != "frame_000.jpg" || filepath.Base(paths[2]) != "frame_002.jpg" {
		t.Fatalf("paths = %v", paths)
	}
	if len(starts) != 3 || starts[1] != "2.500" {
		t.Fatalf("seek offsets = %v", starts)
	}
}

func TestConcatRequiresSegments(t *testing.T) {
	e := NewExecutor("", "")
	if err := e.Concat(context.Background(), nil, "out.mp4"); err == nil {
		t.Fatalf("expected error for empty segment list")
	}
}
