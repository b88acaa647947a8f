// Package models defines core data structures for documents, chunks, and retrieval results.
package models

import (
	"fmt"
	"time"
)

// ExtractionMode records how a document's text was obtained.
type ExtractionMode string

const (
	// ModeNativeText means every page had a usable text layer.
	ModeNativeText ExtractionMode = "native-text"
	// ModeOCR means every page went through optical character recognition.
	ModeOCR ExtractionMode = "ocr"
	// ModeMixed means some pages were read natively and some were recognized.
	ModeMixed ExtractionMode = "mixed"
)

// Document is an ingested PDF, identified by the fingerprint of its raw bytes.
// A Document is immutable once created.
type Document struct {
	Fingerprint    string         `json:"fingerprint" db:"fingerprint"`
	PageCount      int            `json:"page_count" db:"page_count"`
	ExtractionMode ExtractionMode `json:"extraction_mode" db:"extraction_mode"`
	LanguageHints  []string       `json:"language_hints" db:"language_hints"`
	ChunkCount     int            `json:"chunk_count" db:"chunk_count"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Handle returns the caller-facing handle for the document.
func (d *Document) Handle() DocumentHandle {
	return DocumentHandle{fingerprint: d.Fingerprint}
}

// PageRange is an inclusive, 1-based range of pages.
type PageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Covers reports whether page lies within the range.
func (r PageRange) Covers(page int) bool {
	return page >= r.First && page <= r.Last
}

func (r PageRange) String() string {
	if r.First == r.Last {
		return fmt.Sprintf("p.%d", r.First)
	}
	return fmt.Sprintf("pp.%d-%d", r.First, r.Last)
}

// Chunk is a contiguous span of a document's extracted text, used for semantic indexing.
type Chunk struct {
	ID                  string    `json:"id" db:"id"`
	DocumentFingerprint string    `json:"document_fingerprint" db:"document_fingerprint"`
	SequenceIndex       int       `json:"sequence_index" db:"sequence_index"`
	Text                string    `json:"text" db:"text"`
	// Overlap is the number of leading runes of Text repeated from the previous chunk.
	Overlap   int       `json:"overlap" db:"overlap"`
	Pages     PageRange `json:"pages" db:"-"`
	Embedding []float32 `json:"-" db:"-"`
}

// ChunkID returns the stable chunk ID for a document fingerprint and sequence index.
func ChunkID(fingerprint string, seq int) string {
	prefix := fingerprint
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	return fmt.Sprintf("%s_%d", prefix, seq)
}

// DocumentHandle is the opaque reference returned by a successful ingest.
type DocumentHandle struct {
	fingerprint string
}

// NewDocumentHandle wraps a fingerprint, e.g. one received back from a client.
func NewDocumentHandle(fingerprint string) DocumentHandle {
	return DocumentHandle{fingerprint: fingerprint}
}

// Fingerprint returns the content fingerprint the handle refers to.
func (h DocumentHandle) Fingerprint() string {
	return h.fingerprint
}

// IsZero reports whether the handle refers to nothing.
func (h DocumentHandle) IsZero() bool {
	return h.fingerprint == ""
}

func (h DocumentHandle) String() string {
	return h.fingerprint
}

// PageOutcome tags how a page's text was produced.
type PageOutcome int

const (
	// PageEmpty means neither the text layer nor OCR produced usable text.
	PageEmpty PageOutcome = iota
	// PageNativeText means the text came from the PDF text layer.
	PageNativeText
	// PageRecognized means the text came from OCR.
	PageRecognized
)

func (o PageOutcome) String() string {
	switch o {
	case PageNativeText:
		return "native-text"
	case PageRecognized:
		return "recognized"
	default:
		return "empty"
	}
}

// PageText is the extracted text of a single page.
type PageText struct {
	Number  int         `json:"number"`
	Text    string      `json:"text"`
	Outcome PageOutcome `json:"outcome"`
}

// State is a document's position in the ingestion pipeline.
type State string

const (
	StateUploading  State = "uploading"
	StateExtracting State = "extracting"
	StateChunking   State = "chunking"
	StateEmbedding  State = "embedding"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Status is a snapshot of a document's pipeline state.
type Status struct {
	Fingerprint string    `json:"fingerprint"`
	State       State     `json:"state"`
	Reason      string    `json:"reason,omitempty"`
	Document    *Document `json:"document,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
