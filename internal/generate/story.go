// Package generate produces narrated-scene source material: story text,
// a storyboard of scenes, rendered scene images, and synthesized speech.
package generate

import (
	"context"
	"fmt"
	"strings"

	"clipforge/internal/llm"
	"clipforge/internal/services"
)

// Completer abstracts the language-model client used for story work.
type Completer interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// StoryParams carries the submitted request for a narrated video.
type StoryParams struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Style       string `json:"style"`
	Voice       string `json:"voice"`
}

// Scene is one storyboard entry with narration text and timing.
type Scene struct {
	Number      int     `json:"scene_number"`
	Text        string  `json:"text"`
	ImagePrompt string  `json:"image_prompt"`
	Duration    float64 `json:"duration"`
	Start       float64 `json:"start_time"`
	End         float64 `json:"end_time"`
}

// Writer turns a story request into prose and a storyboard.
type Writer struct {
	completer     Completer
	model         string
	maxScenes     int
	charsMin      int
	charsMax      int
	aspectRule    string
	wordsPerSec   float64
	minSceneSecs  float64
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	Model      string
	MaxScenes  int
	CharsMin   int
	CharsMax   int
	AspectRule string
}

// NewWriter builds a Writer around a completion client.
func NewWriter(completer Completer, cfg WriterConfig) *Writer {
	if cfg.MaxScenes <= 0 {
		cfg.MaxScenes = 14
	}
	if cfg.CharsMin <= 0 {
		cfg.CharsMin = 700
	}
	if cfg.CharsMax <= cfg.CharsMin {
		cfg.CharsMax = cfg.CharsMin + 100
	}
	if cfg.AspectRule == "" {
		cfg.AspectRule = "9:16"
	}
	return &Writer{
		completer:    completer,
		model:        cfg.Model,
		maxScenes:    cfg.MaxScenes,
		charsMin:     cfg.CharsMin,
		charsMax:     cfg.CharsMax,
		aspectRule:   cfg.AspectRule,
		wordsPerSec:  0.4,
		minSceneSecs: 3.0,
	}
}

var storyPromptByCategory = map[string]string{
	"scary": `Create a spine-chilling horror story perfect for a narrated video format.
The story should build tension gradually with atmospheric descriptions and psychological elements.
Include vivid, disturbing imagery that can be visualized in scenes.`,
	"mystery": `Write an intriguing mystery story with unexpected twists perfect for visual storytelling.
Include clues, red herrings, and a surprising revelation.
Focus on creating suspense and curiosity with clear visual scenes.`,
	"bedtime": `Create a calming bedtime story with gentle imagery and soothing themes.
Include magical or nature-based elements that promote relaxation.
The tone should be warm and comforting with beautiful visual scenes.`,
	"history": `Tell a fascinating historical story about an interesting event, person, or discovery.
Include accurate historical details and make it educational yet entertaining.
Focus on lesser-known facts with strong visual elements.`,
	"motivational": `Write an inspiring motivational story about overcoming challenges.
Include real-world lessons and actionable insights.
The tone should be uplifting and empowering with inspirational visuals.`,
	"fun_facts": `Create a collection of amazing, mind-blowing fun facts that will surprise viewers.
Include scientific discoveries, nature phenomena, or historical curiosities.
Make each fact engaging and memorable with strong visual potential.`,
}

// Story produces the narration prose for the request. A custom category with
// provided content is passed through, optionally enhanced when a title or
// description accompanies it.
func (w *Writer) Story(ctx context.Context, params StoryParams) (string, error) {
	if params.Category == "custom" && params.Content != "" {
		if params.Title == "" && params.Description == "" {
			return params.Content, nil
		}
		prompt := fmt.Sprintf(`Enhance this story content for a narrated video format. Make it more engaging and suitable for visual storytelling.

Title: %s
Description: %s
Content: %s

Return the enhanced story content only (no titles or descriptions).
Target length: %d-%d characters.`, params.Title, params.Description, params.Content, w.charsMin, w.charsMax)
		return w.complete(ctx, "enhance story", prompt)
	}

	base, ok := storyPromptByCategory[params.Category]
	if !ok {
		base = storyPromptByCategory["fun_facts"]
	}
	prompt := fmt.Sprintf(`%s
Title context: %s
Description context: %s
Target length: %d-%d characters.
Make it suitable for visual storytelling with clear scene breaks.`,
		base, params.Title, params.Description, w.charsMin, w.charsMax)
	return w.complete(ctx, "generate story", prompt)
}

// Storyboard breaks the story into timed scenes with image prompts. Missing
// durations are estimated from word count, and start/end offsets are assigned
// sequentially.
func (w *Writer) Storyboard(ctx context.Context, story string) ([]Scene, error) {
	if strings.TrimSpace(story) == "" {
		return nil, services.Wrap(services.ErrValidation, "generate", "storyboard", "Story text is empty", nil)
	}
	prompt := fmt.Sprintf(`You are a professional video storyboard creator. Break this story into at most %d visual scenes for a narrated video.

For each scene, provide:
1. "text": The narrator voiceover text (what will be spoken)
2. "image_prompt": Detailed visual description for AI image generation (be very descriptive and cinematic)
3. "duration": Estimated duration in seconds based on text length (3-8 seconds per scene)

Guidelines:
- Each scene should have natural speech flow
- Image prompts should be cinematic and visually striking
- Text should be clear and engaging when spoken
- Maintain visual consistency throughout
- Make images suitable for %s aspect ratio
- Focus on visual storytelling

Story to break down:
%s

Return ONLY a valid JSON array in this exact format:
[
    {
        "text": "Scene narration text here",
        "image_prompt": "Detailed visual description for AI generation",
        "duration": 5.2
    }
]`, w.maxScenes, w.aspectRule, story)

	content, err := w.complete(ctx, "create storyboard", prompt)
	if err != nil {
		return nil, err
	}

	var scenes []Scene
	if err := llm.DecodeJSON(content, &scenes); err != nil {
		return nil, services.Wrap(services.ErrTransient, "generate", "create storyboard", "Model returned an unparseable storyboard", err)
	}
	if len(scenes) == 0 {
		return nil, services.Wrap(services.ErrTransient, "generate", "create storyboard", "Model returned an empty storyboard", nil)
	}
	if len(scenes) > w.maxScenes {
		scenes = scenes[:w.maxScenes]
	}

	current := 0.0
	for i := range scenes {
		scenes[i].Text = strings.TrimSpace(scenes[i].Text)
		if scenes[i].Text == "" {
			return nil, services.Wrap(services.ErrTransient, "generate", "create storyboard",
				fmt.Sprintf("Scene %d has no narration text", i+1), nil)
		}
		if scenes[i].Duration <= 0 {
			words := len(strings.Fields(scenes[i].Text))
			scenes[i].Duration = float64(words) * w.wordsPerSec
			if scenes[i].Duration < w.minSceneSecs {
				scenes[i].Duration = w.minSceneSecs
			}
		}
		scenes[i].Number = i + 1
		scenes[i].Start = current
		scenes[i].End = current + scenes[i].Duration
		current = scenes[i].End
	}
	return scenes, nil
}

func (w *Writer) complete(ctx context.Context, operation, prompt string) (string, error) {
	content, err := w.completer.Complete(ctx, w.model, "", prompt)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "generate", operation, "Language model request failed", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", services.Wrap(services.ErrTransient, "generate", operation, "Language model returned no content", nil)
	}
	return content, nil
}
