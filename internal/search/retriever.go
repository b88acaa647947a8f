// Package search selects the chunks of a document that best answer a question, balancing
// relevance against redundancy with maximal marginal relevance.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/embedding"
	"github.com/hyperjump/pdfrag/internal/indexer"
	"github.com/hyperjump/pdfrag/internal/models"
)

// Retriever answers queries against published document indexes.
type Retriever struct {
	index           *indexer.Index
	embedder        embedding.Embedder
	topK            int
	maxTopK         int
	fetchMultiplier int
	lambda          float64
	logger          *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithDefaults sets the top-k used when a caller passes none, the largest accepted top-k and
// the lambda used when a query carries none.
func WithDefaults(topK, maxTopK int, lambda float64) Option {
	return func(r *Retriever) {
		if topK > 0 {
			r.topK = topK
		}
		if maxTopK > 0 {
			r.maxTopK = maxTopK
		}
		r.lambda = models.ClampLambda(lambda)
	}
}

// WithFetchMultiplier sets how many candidates per requested chunk are fetched before re-ranking.
func WithFetchMultiplier(m int) Option {
	return func(r *Retriever) {
		if m > 0 {
			r.fetchMultiplier = m
		}
	}
}

// NewRetriever creates a retriever over index. Queries are embedded with embedder, which must
// be the embedder the index was built with.
func NewRetriever(index *indexer.Index, embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		index:           index,
		embedder:        embedder,
		topK:            6,
		maxTopK:         50,
		fetchMultiplier: 4,
		lambda:          0.5,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK chunks of the document in selection order. A non-positive topK
// uses the default; lambda outside [0, 1] is clamped.
func (r *Retriever) Retrieve(ctx context.Context, fingerprint, query string, topK int, lambda float64) ([]*models.ContextChunk, error) {
	q := &models.RetrieveQuery{Query: query, TopK: topK, Lambda: &lambda}
	if err := r.ProcessQuery(q); err != nil {
		return nil, err
	}
	return r.Run(ctx, fingerprint, q)
}

// Run executes a query that has already been through ProcessQuery.
func (r *Retriever) Run(ctx context.Context, fingerprint string, q *models.RetrieveQuery) ([]*models.ContextChunk, error) {
	if !r.index.Has(fingerprint) {
		return nil, models.ErrUnknownDocument
	}
	qvec, err := r.embedder.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.index.Search(ctx, fingerprint, qvec, q.TopK*r.fetchMultiplier)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		vec := h.Vector
		if len(vec) == 0 {
			vec = h.Chunk.Embedding
		}
		candidates[i] = Candidate{ID: h.Chunk.ID, Relevance: h.Score, Vector: vec}
	}
	lambda := r.lambda
	if q.Lambda != nil {
		lambda = *q.Lambda
	}
	order := SelectMMR(candidates, q.TopK, lambda)

	out := make([]*models.ContextChunk, len(order))
	for rank, i := range order {
		out[rank] = &models.ContextChunk{Chunk: hits[i].Chunk, Score: hits[i].Score, Rank: rank}
	}
	if r.logger != nil {
		r.logger.Debug("retrieve",
			zap.String("fingerprint", fingerprint),
			zap.Int("candidates", len(hits)),
			zap.Int("selected", len(out)),
			zap.Float64("lambda", lambda))
	}
	return out, nil
}
