// Package captions builds word-synchronized caption documents for output
// units. Timestamps are rebased to the unit's own clock so a word spoken at
// source time 12.3s inside a clip starting at 10.0s carries 2.3s.
package captions

import (
	"strings"

	"clipforge/internal/transcribe"
)

// Word is a caption word with unit-relative timestamps.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment groups consecutive words for display.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`
}

// Document is the caption payload stored alongside each output unit.
type Document struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// DefaultWordsPerSegment bounds caption segment length for vertical video.
const DefaultWordsPerSegment = 12

// BuildExact selects transcript words overlapping [clipStart, clipEnd],
// rebases them to the clip clock, and groups them into fixed-size segments.
// A word overlaps when its start or end falls inside the window or when it
// spans the whole window.
func BuildExact(words []transcribe.Word, clipStart, clipEnd float64, wordsPerSegment int) Document {
	if wordsPerSegment <= 0 {
		wordsPerSegment = DefaultWordsPerSegment
	}

	inRange := make([]Word, 0, len(words))
	for _, word := range words {
		startsInside := word.Start >= clipStart && word.Start <= clipEnd
		endsInside := word.End >= clipStart && word.End <= clipEnd
		spans := word.Start <= clipStart && word.End >= clipEnd
		if !startsInside && !endsInside && !spans {
			continue
		}
		inRange = append(inRange, Word{
			Text:  word.Text,
			Start: rebase(word.Start, clipStart),
			End:   rebase(word.End, clipStart),
		})
	}

	return groupWords(inRange, wordsPerSegment)
}

// BuildEstimated distributes the words of text evenly across a duration
// starting at startOffset. Used for narration without direct alignment and
// as the fallback when no transcript words match.
func BuildEstimated(text string, startOffset, duration float64, wordsPerSegment int) Document {
	if wordsPerSegment <= 0 {
		wordsPerSegment = DefaultWordsPerSegment
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 || duration <= 0 {
		return Document{Text: strings.TrimSpace(text)}
	}

	perWord := duration / float64(len(tokens))
	words := make([]Word, 0, len(tokens))
	for i, token := range tokens {
		start := startOffset + float64(i)*perWord
		words = append(words, Word{
			Text:  token,
			Start: round3(start),
			End:   round3(start + perWord),
		})
	}

	doc := groupWords(words, wordsPerSegment)
	doc.Text = strings.TrimSpace(text)
	return doc
}

// groupWords chunks words into segments of size wordsPerSegment. Segment
// boundaries come from the first and last word of each chunk.
func groupWords(words []Word, wordsPerSegment int) Document {
	doc := Document{}
	texts := make([]string, 0, len(words))
	for _, w := range words {
		texts = append(texts, w.Text)
	}
	doc.Text = strings.Join(texts, " ")

	for i := 0; i < len(words); i += wordsPerSegment {
		end := i + wordsPerSegment
		if end > len(words) {
			end = len(words)
		}
		chunk := words[i:end]
		chunkTexts := make([]string, 0, len(chunk))
		for _, w := range chunk {
			chunkTexts = append(chunkTexts, w.Text)
		}
		doc.Segments = append(doc.Segments, Segment{
			ID:    len(doc.Segments),
			Start: chunk[0].Start,
			End:   chunk[len(chunk)-1].End,
			Text:  strings.Join(chunkTexts, " "),
			Words: append([]Word(nil), chunk...),
		})
	}
	return doc
}

func rebase(t, clipStart float64) float64 {
	adjusted := t - clipStart
	if adjusted < 0 {
		return 0
	}
	return round3(adjusted)
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
