// Package storage defines the persistence interface for ingested documents and their chunks.
package storage

import (
	"context"

	"github.com/hyperjump/pdfrag/internal/models"
)

// Storage persists ready documents together with their chunks and chunk embeddings, keyed
// by document fingerprint. Lookups of missing records return models.ErrNotFound.
type Storage interface {
	// SaveDocument stores doc and its chunks in one step, replacing any previous record.
	SaveDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error
	GetDocument(ctx context.Context, fingerprint string) (*models.Document, error)
	// GetChunks returns the document's chunks ordered by sequence index, embeddings included.
	GetChunks(ctx context.Context, fingerprint string) ([]*models.Chunk, error)
	DeleteDocument(ctx context.Context, fingerprint string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
