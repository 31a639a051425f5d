package services_test

import (
	"context"
	"errors"
	"testing"

	"clipforge/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrTransient, "persist", "save unit", "upload failed", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "stage", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected default transient marker, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", services.Wrap(services.ErrTransient, "s", "o", "", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "s", "o", "", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "s", "o", "", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "s", "o", "", nil), false},
		{"not found", services.Wrap(services.ErrNotFound, "s", "o", "", nil), false},
		{"canceled", context.Canceled, false},
		{"untagged", errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestContextCarriers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, 42)
	ctx = services.WithStage(ctx, "selection")
	ctx = services.WithUnitIndex(ctx, 3)
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("job id = %d, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "selection" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if idx, ok := services.UnitIndexFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unit index = %d, %v", idx, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("request id = %q, %v", rid, ok)
	}
}
