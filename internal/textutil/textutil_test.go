package textutil

import (
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Epic Gaming Moments!", "epic-gaming-moments"},
		{"  Café  Déjà Vu  ", "cafe-deja-vu"},
		{"already-slugged", "already-slugged"},
		{"???", "untitled"},
		{"", "untitled"},
		{"Top 10 Plays: 2026", "top-10-plays-2026"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Fatalf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugCapsLength(t *testing.T) {
	got := Slug(strings.Repeat("word ", 30))
	if len(got) > 50 {
		t.Fatalf("slug length = %d, want <= 50", len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("slug ends with hyphen: %q", got)
	}
}

func TestPreview(t *testing.T) {
	text := "one two three four five"
	if got := Preview(text, 3); got != "one two three..." {
		t.Fatalf("Preview = %q", got)
	}
	if got := Preview(text, 10); got != text {
		t.Fatalf("Preview without truncation = %q", got)
	}
	if got := Preview("", 3); got != "" {
		t.Fatalf("Preview of empty = %q", got)
	}
}
