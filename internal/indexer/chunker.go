// Package indexer splits extracted documents into overlapping chunks and maintains the
// per-document embedding indexes that retrieval runs against.
package indexer

import (
	"strings"
	"unicode"

	"github.com/hyperjump/pdfrag/internal/models"
)

const pageSeparator = "\n\n"

// Chunker splits page text into overlapping, boundary-aware chunks. Sizes are in runes.
type Chunker struct {
	maxChars     int
	minChars     int
	overlapChars int
}

// NewChunker creates a chunker. overlapChars must be smaller than maxChars; it is reduced otherwise.
func NewChunker(maxChars, minChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = 900
	}
	if minChars < 0 || minChars > maxChars {
		minChars = maxChars / 4
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}
	return &Chunker{maxChars: maxChars, minChars: minChars, overlapChars: overlapChars}
}

type pageSpan struct {
	number     int
	start, end int
}

// normalize returns the text chunking works on: each usable page preprocessed and joined
// by a blank line, plus the rune span of every page.
func normalize(pages []models.PageText) ([]rune, []pageSpan) {
	var runes []rune
	var spans []pageSpan
	for _, p := range pages {
		if p.Outcome == models.PageEmpty {
			continue
		}
		text := Preprocess(p.Text)
		if text == "" {
			continue
		}
		if len(runes) > 0 {
			runes = append(runes, []rune(pageSeparator)...)
		}
		start := len(runes)
		runes = append(runes, []rune(text)...)
		spans = append(spans, pageSpan{number: p.Number, start: start, end: len(runes)})
	}
	return runes, spans
}

// Split chunks the pages of the document identified by fingerprint. Chunks are returned in
// document order with consecutive SequenceIndex values starting at 0. Concatenating the first
// chunk's Text with every later chunk's Text minus its Overlap prefix yields the normalized text.
func (c *Chunker) Split(fingerprint string, pages []models.PageText) []*models.Chunk {
	runes, spans := normalize(pages)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []*models.Chunk
	prevEnd := -1
	start := 0
	for {
		end := start + c.maxChars
		if end >= n {
			end = n
		} else {
			end = c.cut(runes, start, end)
		}

		text := string(runes[start:end])
		if strings.TrimSpace(text) != "" {
			overlap := 0
			if prevEnd > start {
				overlap = prevEnd - start
			}
			seq := len(chunks)
			chunks = append(chunks, &models.Chunk{
				ID:                  models.ChunkID(fingerprint, seq),
				DocumentFingerprint: fingerprint,
				SequenceIndex:       seq,
				Text:                text,
				Overlap:             overlap,
				Pages:               pagesFor(spans, start, end),
			})
			prevEnd = end
		}

		if end >= n {
			break
		}
		next := end - c.overlapChars
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cut picks where a window [start, limit) ends: the last paragraph break, else line break,
// else sentence end, else space, that leaves at least minChars runes. Otherwise limit.
func (c *Chunker) cut(runes []rune, start, limit int) int {
	lowest := start + c.minChars
	if lowest < start+1 {
		lowest = start + 1
	}
	for _, isBoundary := range []func([]rune, int) bool{
		paragraphBreak, lineBreak, sentenceEnd, wordBreak,
	} {
		for p := limit; p >= lowest; p-- {
			if isBoundary(runes, p) {
				return p
			}
		}
	}
	return limit
}

func paragraphBreak(r []rune, p int) bool {
	return p >= 2 && r[p-1] == '\n' && r[p-2] == '\n'
}

func lineBreak(r []rune, p int) bool {
	return p >= 1 && r[p-1] == '\n'
}

func sentenceEnd(r []rune, p int) bool {
	if p < 2 || !unicode.IsSpace(r[p-1]) {
		return false
	}
	switch r[p-2] {
	case '.', '!', '?', '؟', '۔':
		return true
	}
	return false
}

func wordBreak(r []rune, p int) bool {
	return p >= 1 && unicode.IsSpace(r[p-1])
}

// pagesFor returns the range of pages whose text intersects [start, end).
func pagesFor(spans []pageSpan, start, end int) models.PageRange {
	var r models.PageRange
	for _, s := range spans {
		if s.start < end && s.end > start {
			if r.First == 0 {
				r.First = s.number
			}
			r.Last = s.number
		}
	}
	return r
}
