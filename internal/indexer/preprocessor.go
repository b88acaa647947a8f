package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted page text: line endings become "\n", runs of horizontal
// whitespace become a single space, lines are trimmed, and three or more consecutive newlines
// collapse to one paragraph break.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}

	var b strings.Builder
	newlines := 0
	for i, line := range lines {
		if i > 0 {
			newlines++
		}
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			if newlines > 2 {
				newlines = 2
			}
			b.WriteString(strings.Repeat("\n", newlines))
		}
		newlines = 0
		b.WriteString(line)
	}
	return b.String()
}

func collapseSpaces(line string) string {
	var b strings.Builder
	wasSpace := false
	for _, r := range strings.TrimSpace(line) {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
