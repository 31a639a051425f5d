package selection

import (
	"context"
	"fmt"
	"strings"

	"clipforge/internal/llm"
)

const selectionSystemPrompt = `You are an expert video editor who specializes in finding the most engaging segments in videos.
Based on the transcript with timestamps, identify exactly %d separate highlights that would make compelling short-form videos.

For each highlight:
1. Choose emotionally impactful, insightful, or entertaining segments
2. Select continuous self-contained portions
3. Include precise start and end timestamps in seconds
4. Provide a brief reason why this segment is engaging
5. Create a short, catchy title (2-5 words)

Only return your response as a valid JSON array with this exact format:
[{"start_time": <seconds>, "end_time": <seconds>, "reason": "<why>", "title": "<short title>"}]

Ensure EXACTLY %d highlights are provided.`

// Completer is the piece of the llm client the provider needs.
type Completer interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// LLMProvider asks one chat model for highlight windows.
type LLMProvider struct {
	client Completer
	model  string
}

// NewLLMProvider wraps a single model behind the Provider interface. Build
// one per entry in the configured model list to form the fallback chain.
func NewLLMProvider(client Completer, model string) *LLMProvider {
	return &LLMProvider{client: client, model: model}
}

func (p *LLMProvider) Name() string {
	return "llm:" + p.model
}

// Propose requests count highlights and parses the JSON array response.
func (p *LLMProvider) Propose(ctx context.Context, transcript string, count int) ([]Candidate, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("selection: empty transcript")
	}
	systemPrompt := fmt.Sprintf(selectionSystemPrompt, count, count)
	content, err := p.client.Complete(ctx, p.model, systemPrompt, transcript)
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
		Reason    string  `json:"reason"`
		Title     string  `json:"title"`
	}
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("selection: parse %s response: %w", p.model, err)
	}

	candidates := make([]Candidate, 0, len(parsed))
	for _, item := range parsed {
		candidates = append(candidates, Candidate{
			Start:  item.StartTime,
			End:    item.EndTime,
			Title:  strings.TrimSpace(item.Title),
			Reason: strings.TrimSpace(item.Reason),
		})
	}
	return candidates, nil
}
