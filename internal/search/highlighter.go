package search

import (
	"strings"
	"unicode"
)

// Snippet shortens text to at most maxRunes runes for display, cutting at the last space
// when one is close to the limit. Newlines are flattened.
func Snippet(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	cut := maxRunes
	for i := maxRunes; i > maxRunes*3/4; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}
