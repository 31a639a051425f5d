// Package textutil provides text helpers for asset slugs and transcript
// previews.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugLength bounds slugs so asset keys stay filesystem friendly.
const maxSlugLength = 50

// stripMarks removes combining marks after NFD decomposition, so accented
// letters fold to their ASCII base.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug converts text into a lowercase hyphen-separated token suitable for
// asset keys. Accents fold to ASCII, runs of non-alphanumerics collapse to a
// single hyphen, and the result is capped at 50 characters. Returns
// "untitled" when nothing usable remains.
func Slug(text string) string {
	folded, _, err := transform.String(stripMarks, text)
	if err != nil {
		folded = text
	}
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	return out
}

// Preview returns the first maxWords words of text joined by single spaces,
// with an ellipsis appended when the text was truncated.
func Preview(text string, maxWords int) string {
	words := strings.Fields(text)
	if maxWords <= 0 || len(words) == 0 {
		return ""
	}
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
