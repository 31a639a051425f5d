// Package selection chooses highlight windows from a transcript. Providers
// are tried in priority order and a deterministic local fallback guarantees
// output when every provider fails.
package selection

import (
	"context"
	"fmt"
	"log/slog"

	"clipforge/internal/logging"
)

// Candidate is a proposed highlight window with justification metadata.
type Candidate struct {
	Start  float64
	End    float64
	Title  string
	Reason string
}

// Duration returns the candidate's length in seconds.
func (c Candidate) Duration() float64 {
	return c.End - c.Start
}

// Provider proposes candidate windows for a transcript.
type Provider interface {
	Name() string
	Propose(ctx context.Context, transcript string, count int) ([]Candidate, error)
}

// Bounds constrain acceptable candidate durations.
type Bounds struct {
	MinDuration float64
	MaxDuration float64
}

// Chain walks providers in order and validates their proposals. The first
// provider producing at least count valid candidates wins; its first count
// valid candidates are returned in original order. When every provider fails
// the chain emits evenly spread windows across the timeline.
type Chain struct {
	providers []Provider
	bounds    Bounds
	logger    *slog.Logger
}

// NewChain builds a selection chain over the given providers.
func NewChain(providers []Provider, bounds Bounds, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Chain{
		providers: providers,
		bounds:    bounds,
		logger:    logging.NewComponentLogger(logger, "selection"),
	}
}

// Select returns exactly count candidates for the transcript.
// timelineDuration is the total length of the source material in seconds and
// bounds the fallback windows.
func (c *Chain) Select(ctx context.Context, transcript string, count int, timelineDuration float64) ([]Candidate, error) {
	if count <= 0 {
		return nil, fmt.Errorf("selection: count must be positive, got %d", count)
	}

	for _, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		proposed, err := provider.Propose(ctx, transcript, count)
		if err != nil {
			c.logger.WarnContext(ctx, "selection provider failed",
				logging.String("provider", provider.Name()),
				logging.Error(err))
			continue
		}
		valid := c.validate(proposed, timelineDuration)
		if len(valid) < count {
			c.logger.WarnContext(ctx, "selection provider returned too few valid candidates",
				logging.String("provider", provider.Name()),
				logging.Int("valid", len(valid)),
				logging.Int("requested", count))
			continue
		}
		c.logger.InfoContext(ctx, "selection provider succeeded",
			logging.String("provider", provider.Name()),
			logging.Int("candidates", count))
		return valid[:count], nil
	}

	c.logger.WarnContext(ctx, "all selection providers exhausted, using spread fallback",
		logging.Int("providers", len(c.providers)))
	return EvenSpread(count, timelineDuration, c.bounds.MinDuration), nil
}

// validate drops candidates with inverted or out-of-bounds durations,
// preserving original order.
func (c *Chain) validate(candidates []Candidate, timelineDuration float64) []Candidate {
	valid := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Start < 0 || cand.End <= cand.Start {
			continue
		}
		duration := cand.Duration()
		if c.bounds.MinDuration > 0 && duration < c.bounds.MinDuration {
			continue
		}
		if c.bounds.MaxDuration > 0 && duration > c.bounds.MaxDuration {
			continue
		}
		if timelineDuration > 0 && cand.Start >= timelineDuration {
			continue
		}
		if cand.Title == "" {
			cand.Title = "Untitled"
		}
		if cand.Reason == "" {
			cand.Reason = "Interesting segment"
		}
		valid = append(valid, cand)
	}
	return valid
}

// EvenSpread produces count non-overlapping windows of a fixed duration
// spread evenly across [0, timelineDuration]. windowDuration shrinks when the
// timeline cannot fit count windows of the requested size.
func EvenSpread(count int, timelineDuration, windowDuration float64) []Candidate {
	if count <= 0 {
		return nil
	}
	if windowDuration <= 0 {
		windowDuration = 20
	}
	if timelineDuration <= 0 {
		timelineDuration = windowDuration * float64(count)
	}

	slot := timelineDuration / float64(count)
	if windowDuration > slot {
		windowDuration = slot
	}

	candidates := make([]Candidate, 0, count)
	for i := 0; i < count; i++ {
		start := slot*float64(i) + (slot-windowDuration)/2
		candidates = append(candidates, Candidate{
			Start:  start,
			End:    start + windowDuration,
			Title:  fmt.Sprintf("Highlight %d", i+1),
			Reason: "Evenly spaced fallback segment",
		})
	}
	return candidates
}
