package indexer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/pdfrag/internal/embedding"
	"github.com/hyperjump/pdfrag/internal/models"
	"github.com/hyperjump/pdfrag/internal/vector"
)

// Hit is a chunk matched by similarity search.
type Hit struct {
	Chunk  *models.Chunk
	Score  float64
	Vector []float32
}

// Index keeps one vector index per document fingerprint. A document's index becomes
// visible only once every one of its chunks has been added.
type Index struct {
	embedder    embedding.Embedder
	indexType   string
	batchSize   int
	concurrency int
	logger      *zap.Logger // optional; when set, logs debug events

	mu   sync.RWMutex
	docs map[string]*docIndex
}

type docIndex struct {
	vectors vector.VectorIndex
	chunks  map[string]*models.Chunk
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexOption {
	return func(idx *Index) { idx.logger = l }
}

// WithVectorIndex selects the vector index type ("memory" or "chromem").
func WithVectorIndex(indexType string) IndexOption {
	return func(idx *Index) { idx.indexType = indexType }
}

// WithBatching sets how many chunks go in one embedding request and how many requests run at once.
func WithBatching(batchSize, concurrency int) IndexOption {
	return func(idx *Index) {
		if batchSize > 0 {
			idx.batchSize = batchSize
		}
		if concurrency > 0 {
			idx.concurrency = concurrency
		}
	}
}

// NewIndex creates an empty index that embeds chunks with embedder.
func NewIndex(embedder embedding.Embedder, opts ...IndexOption) *Index {
	idx := &Index{
		embedder:    embedder,
		indexType:   string(vector.IndexTypeMemory),
		batchSize:   64,
		concurrency: 4,
		docs:        make(map[string]*docIndex),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Build embeds chunks and publishes the document's index. On error nothing is published and
// any previous index for fingerprint is left untouched. Chunk.Embedding is set on success.
func (idx *Index) Build(ctx context.Context, fingerprint string, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return models.ErrEmptyInput
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)
	for start := 0; start < len(texts); start += idx.batchSize {
		start := start // per-iteration copy (go 1.21 loop semantics)
		end := start + idx.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			out, err := idx.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(out) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(out), end-start)
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if err := idx.publish(ctx, fingerprint, chunks, vectors); err != nil {
		return err
	}
	for i, ch := range chunks {
		ch.Embedding = vectors[i]
	}
	if idx.logger != nil {
		idx.logger.Debug("index built",
			zap.String("fingerprint", fingerprint),
			zap.Int("chunks", len(chunks)),
			zap.Int("batches", (len(chunks)+idx.batchSize-1)/idx.batchSize))
	}
	return nil
}

// Restore publishes an index from chunks whose Embedding is already set, without calling the embedder.
func (idx *Index) Restore(ctx context.Context, fingerprint string, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return models.ErrEmptyInput
	}
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no stored embedding", ch.ID)
		}
		vectors[i] = ch.Embedding
	}
	if err := idx.publish(ctx, fingerprint, chunks, vectors); err != nil {
		return err
	}
	if idx.logger != nil {
		idx.logger.Debug("index restored", zap.String("fingerprint", fingerprint), zap.Int("chunks", len(chunks)))
	}
	return nil
}

func (idx *Index) publish(ctx context.Context, fingerprint string, chunks []*models.Chunk, vectors [][]float32) error {
	dims := len(vectors[0])
	vi, err := vector.NewVectorIndex(idx.indexType, dims)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	ids := make([]string, len(chunks))
	byID := make(map[string]*models.Chunk, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
		byID[ch.ID] = ch
	}
	if err := vi.Add(ctx, ids, vectors); err != nil {
		_ = vi.Close()
		return fmt.Errorf("failed to index vectors: %w", err)
	}

	idx.mu.Lock()
	old := idx.docs[fingerprint]
	idx.docs[fingerprint] = &docIndex{vectors: vi, chunks: byID}
	idx.mu.Unlock()
	if old != nil {
		_ = old.vectors.Close()
	}
	return nil
}

// Search returns up to k chunks of the document most similar to query, best first.
func (idx *Index) Search(ctx context.Context, fingerprint string, query []float32, k int) ([]Hit, error) {
	idx.mu.RLock()
	doc, ok := idx.docs[fingerprint]
	idx.mu.RUnlock()
	if !ok {
		return nil, models.ErrUnknownDocument
	}
	results, err := doc.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		ch, ok := doc.chunks[r.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Chunk: ch, Score: r.Score, Vector: r.Vector})
	}
	return hits, nil
}

// Has reports whether a published index exists for fingerprint.
func (idx *Index) Has(fingerprint string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.docs[fingerprint]
	return ok
}

// Size returns the number of chunks indexed for fingerprint.
func (idx *Index) Size(fingerprint string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if doc, ok := idx.docs[fingerprint]; ok {
		return doc.vectors.Size()
	}
	return 0
}

// Drop removes the document's index.
func (idx *Index) Drop(fingerprint string) {
	idx.mu.Lock()
	doc := idx.docs[fingerprint]
	delete(idx.docs, fingerprint)
	idx.mu.Unlock()
	if doc != nil {
		_ = doc.vectors.Close()
	}
}
