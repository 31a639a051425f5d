package selection

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubProvider struct {
	name       string
	candidates []Candidate
	err        error
	calls      int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Propose(_ context.Context, _ string, _ int) ([]Candidate, error) {
	s.calls++
	return s.candidates, s.err
}

func testBounds() Bounds {
	return Bounds{MinDuration: 30, MaxDuration: 120}
}

func TestChainUsesFirstSufficientProvider(t *testing.T) {
	good := []Candidate{
		{Start: 10, End: 70, Title: "One"},
		{Start: 100, End: 160, Title: "Two"},
		{Start: 200, End: 260, Title: "Three"},
	}
	first := &stubProvider{name: "first", candidates: good}
	second := &stubProvider{name: "second"}

	chain := NewChain([]Provider{first, second}, testBounds(), nil)
	got, err := chain.Select(context.Background(), "transcript", 2, 300)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
	// First N valid candidates in original order.
	if got[0].Title != "One" || got[1].Title != "Two" {
		t.Fatalf("got %v", got)
	}
	if second.calls != 0 {
		t.Fatalf("second provider should not run")
	}
}

func TestChainAdvancesOnErrorAndInvalid(t *testing.T) {
	failing := &stubProvider{name: "failing", err: errors.New("boom")}
	// Proposals with inverted times and out-of-bounds durations are dropped,
	// leaving fewer than requested.
	invalid := &stubProvider{name: "invalid", candidates: []Candidate{
		{Start: 50, End: 40},        // inverted
		{Start: 0, End: 5},          // too short
		{Start: 0, End: 500},        // too long
		{Start: 10, End: 70},        // only one valid
		{Start: 400, End: 460},      // past end of timeline
		{Start: -5, End: 55},        // negative start
	}}
	good := &stubProvider{name: "good", candidates: []Candidate{
		{Start: 10, End: 70},
		{Start: 100, End: 160},
	}}

	chain := NewChain([]Provider{failing, invalid, good}, testBounds(), nil)
	got, err := chain.Select(context.Background(), "transcript", 2, 300)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
	if good.calls != 1 {
		t.Fatalf("good provider calls = %d", good.calls)
	}
	// Missing metadata is filled with defaults.
	if got[0].Title != "Untitled" || got[0].Reason != "Interesting segment" {
		t.Fatalf("defaults not applied: %+v", got[0])
	}
}

func TestChainFallsBackToEvenSpread(t *testing.T) {
	chain := NewChain([]Provider{
		&stubProvider{name: "a", err: errors.New("down")},
		&stubProvider{name: "b", err: errors.New("down")},
	}, testBounds(), nil)

	got, err := chain.Select(context.Background(), "transcript", 3, 300)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("candidates = %d, want 3", len(got))
	}
}

func TestEvenSpreadProducesNonOverlappingWindows(t *testing.T) {
	got := EvenSpread(3, 300, 30)
	if len(got) != 3 {
		t.Fatalf("windows = %d, want 3", len(got))
	}
	for i, window := range got {
		if window.Start < 0 || window.End > 300 {
			t.Fatalf("window %d out of timeline: %+v", i, window)
		}
		if window.Duration() != 30 {
			t.Fatalf("window %d duration = %v, want 30", i, window.Duration())
		}
		if i > 0 && window.Start < got[i-1].End {
			t.Fatalf("window %d overlaps previous: %v then %v", i, got[i-1], window)
		}
	}
	// Evenly spaced: constant stride between starts.
	stride := got[1].Start - got[0].Start
	if diff := got[2].Start - got[1].Start; diff != stride {
		t.Fatalf("strides differ: %v vs %v", stride, diff)
	}
}

func TestEvenSpreadShrinksWindowsForShortTimelines(t *testing.T) {
	got := EvenSpread(4, 60, 30)
	if len(got) != 4 {
		t.Fatalf("windows = %d", len(got))
	}
	for i, window := range got {
		if window.Duration() > 15 {
			t.Fatalf("window %d duration = %v, exceeds slot", i, window.Duration())
		}
		if i > 0 && window.Start < got[i-1].End {
			t.Fatalf("window %d overlaps previous", i)
		}
	}
}

type scriptedCompleter struct {
	response string
	err      error
}

func (s *scriptedCompleter) Complete(_ context.Context, model, _, _ string) (string, error) {
	if s.err != nil {
		return "", fmt.Errorf("%s: %w", model, s.err)
	}
	return s.response, nil
}

func TestLLMProviderParsesResponse(t *testing.T) {
	completer := &scriptedCompleter{response: `[
		{"start_time": 12.5, "end_time": 72.5, "reason": "great hook", "title": "The Hook"},
		{"start_time": 100, "end_time": 150, "reason": "payoff", "title": "The Payoff"}
	]`}
	provider := NewLLMProvider(completer, "test/model")

	got, err := provider.Propose(context.Background(), "transcript text", 2)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d", len(got))
	}
	if got[0].Start != 12.5 || got[0].Title != "The Hook" {
		t.Fatalf("first candidate = %+v", got[0])
	}
}

func TestLLMProviderRejectsEmptyTranscript(t *testing.T) {
	provider := NewLLMProvider(&scriptedCompleter{}, "test/model")
	if _, err := provider.Propose(context.Background(), "  ", 2); err == nil {
		t.Fatalf("expected error for empty transcript")
	}
}
