package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const chromemCollection = "chunks"

var errNoEmbeddingFunc = errors.New("chromem index only accepts precomputed embeddings")

// ChromemIndex stores vectors in an in-process chromem-go collection.
type ChromemIndex struct {
	dimensions int
	db         *chromem.DB
	collection *chromem.Collection
	order      map[string]int
	mu         sync.RWMutex
}

// NewChromemIndex creates a chromem-backed index with the given dimension.
func NewChromemIndex(dimensions int) (*ChromemIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	db := chromem.NewDB()
	// Queries always pass an embedding, so the collection never needs to embed text itself.
	ef := func(context.Context, string) ([]float32, error) { return nil, errNoEmbeddingFunc }
	col, err := db.GetOrCreateCollection(chromemCollection, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemIndex{
		dimensions: dimensions,
		db:         db,
		collection: col,
		order:      make(map[string]int),
	}, nil
}

// Type returns the index type identifier.
func (c *ChromemIndex) Type() string {
	return string(IndexTypeChromem)
}

// Add inserts vectors with the given IDs.
func (c *ChromemIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != c.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), c.dimensions)
		}
		vec := make([]float32, c.dimensions)
		copy(vec, vectors[i])
		docs[i] = chromem.Document{ID: id, Content: id, Embedding: vec}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem add: %w", err)
	}
	for _, id := range ids {
		if _, ok := c.order[id]; !ok {
			c.order[id] = len(c.order)
		}
	}
	return nil
}

// Search returns the top-k vectors by cosine similarity.
func (c *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != c.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), c.dimensions)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	// chromem-go requires nResults <= collection size.
	count := c.collection.Count()
	if k <= 0 || count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	q := make([]float32, len(query))
	copy(q, query)
	results, err := c.collection.QueryEmbedding(ctx, q, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]*VectorResult, len(results))
	for i, r := range results {
		out[i] = &VectorResult{ID: r.ID, Score: float64(r.Similarity), Vector: r.Embedding}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return c.order[out[i].ID] < c.order[out[j].ID]
	})
	return out, nil
}

// Size returns the number of vectors in the index.
func (c *ChromemIndex) Size() int {
	return c.collection.Count()
}

// Close drops the collection.
func (c *ChromemIndex) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.DeleteCollection(chromemCollection)
}
