// Package vector provides vector index and similarity search.
package vector

import "context"

// VectorIndex defines vector storage and similarity search over one document's chunks.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k hits ordered by descending similarity. Ties keep insertion order.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Size() int
	Close() error
}

// VectorResult is a single vector search hit (ID is the chunk ID).
type VectorResult struct {
	ID     string
	Score  float64 // cosine similarity for normalized vectors
	Vector []float32
}
