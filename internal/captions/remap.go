package captions

import (
	"strings"

	"clipforge/internal/transcribe"
)

// SceneText is one narrated scene's script and its planned timing on the
// composed timeline.
type SceneText struct {
	Text     string
	Start    float64
	Duration float64
}

// RemapScenes aligns scripted scene text with a transcription of the
// rendered narration. Scripted word indices map proportionally onto
// transcribed word indices, so each scene's segment carries the measured
// timestamps of its share of the transcription. Scenes that map to no words
// fall back to even estimated timing over their planned window.
func RemapScenes(scenes []SceneText, transcribed []transcribe.Word) Document {
	doc := Document{}
	if len(scenes) == 0 {
		return doc
	}

	allTexts := make([]string, 0, len(scenes))
	totalScripted := 0
	boundaries := make([][2]int, len(scenes))
	for i, scene := range scenes {
		count := len(strings.Fields(scene.Text))
		boundaries[i] = [2]int{totalScripted, totalScripted + count}
		totalScripted += count
		allTexts = append(allTexts, strings.TrimSpace(scene.Text))
	}
	doc.Text = strings.Join(allTexts, " ")

	totalTranscribed := len(transcribed)
	for i, scene := range scenes {
		var words []Word
		if totalScripted > 0 && totalTranscribed > 0 {
			words = proportionalSlice(transcribed, boundaries[i], totalScripted, totalTranscribed)
		}
		if len(words) == 0 {
			estimated := BuildEstimated(scene.Text, scene.Start, scene.Duration, len(strings.Fields(scene.Text))+1)
			if len(estimated.Segments) > 0 {
				words = estimated.Segments[0].Words
			}
		}
		if len(words) == 0 {
			continue
		}
		doc.Segments = append(doc.Segments, Segment{
			ID:    len(doc.Segments),
			Start: words[0].Start,
			End:   words[len(words)-1].End,
			Text:  strings.TrimSpace(scene.Text),
			Words: words,
		})
	}
	return doc
}

// proportionalSlice maps a scripted word index range onto the transcribed
// word list by ratio and returns the covered transcribed words.
func proportionalSlice(transcribed []transcribe.Word, bounds [2]int, totalScripted, totalTranscribed int) []Word {
	startRatio := float64(bounds[0]) / float64(totalScripted)
	endRatio := float64(bounds[1]) / float64(totalScripted)

	start := int(startRatio * float64(totalTranscribed))
	end := int(endRatio * float64(totalTranscribed))

	if start > totalTranscribed-1 {
		start = totalTranscribed - 1
	}
	if start < 0 {
		start = 0
	}
	if end > totalTranscribed {
		end = totalTranscribed
	}
	if end <= start {
		end = start + 1
	}

	words := make([]Word, 0, end-start)
	for _, w := range transcribed[start:end] {
		words = append(words, Word{
			Text:  strings.TrimSpace(w.Text),
			Start: round3(w.Start),
			End:   round3(w.End),
		})
	}
	return words
}
