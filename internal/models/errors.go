package models

import (
	"errors"
	"fmt"
)

// Ingest errors.
var (
	// ErrCorruptFile means the bytes could not be parsed as a PDF at all.
	ErrCorruptFile = errors.New("corrupt file: not a readable PDF")
	// ErrUnreadable means no page yielded usable text, even after OCR.
	ErrUnreadable = errors.New("unreadable document: no extractable text")
	// ErrProviderUnavailable means an external provider (embedding or OCR) failed after retries.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrEmptyInput means chunking produced no non-empty chunks to embed.
	ErrEmptyInput = errors.New("empty input: no chunks to index")
	// ErrTimeout means an external provider call exceeded its deadline.
	ErrTimeout = errors.New("provider call timed out")
)

// Retrieval errors.
var (
	// ErrUnknownDocument means the fingerprint was never ingested (or its ingest failed and was forgotten).
	ErrUnknownDocument = errors.New("unknown document")
	// ErrEmptyQuery means the query was blank after trimming.
	ErrEmptyQuery = errors.New("empty query")
	// ErrNotReady means the document is known but its index is not built yet.
	ErrNotReady = errors.New("document not ready")
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// StageError is a pipeline failure annotated with the stage it happened in.
type StageError struct {
	Stage State
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is caused by the uploaded artifact or the question itself.
// Input errors are never retried.
func IsInputError(err error) bool {
	return errors.Is(err, ErrCorruptFile) ||
		errors.Is(err, ErrUnreadable) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrEmptyQuery)
}

// IsTransient reports whether err is a provider failure that may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrTimeout)
}
