package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/config"
	"github.com/hyperjump/pdfrag/internal/embedding"
	"github.com/hyperjump/pdfrag/internal/extract"
	"github.com/hyperjump/pdfrag/internal/fingerprint"
	"github.com/hyperjump/pdfrag/internal/indexer"
	"github.com/hyperjump/pdfrag/internal/search"
	"github.com/hyperjump/pdfrag/internal/storage"
	"github.com/hyperjump/pdfrag/pkg/utils"
)

// Service is a pipeline together with the resources it owns.
type Service struct {
	*Pipeline
	Embedder embedding.Embedder
	Storage  storage.Storage
}

// Close releases the embedder and the store.
func (s *Service) Close() error {
	return errors.Join(s.Embedder.Close(), s.Storage.Close())
}

// NewFromConfig wires a pipeline from cfg: embedder, extractor, store, index and retriever.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	embedder, err := embedding.NewFromConfig(cfg.Embedding, utils.Named(logger, "embedding"))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	extractor, err := extract.NewFromConfig(cfg, utils.Named(logger, "extract"))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	store, err := storage.NewFromConfig(cfg.Storage)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	index := indexer.NewIndex(embedder,
		indexer.WithVectorIndex(cfg.Retrieval.VectorIndex),
		indexer.WithBatching(cfg.Embedding.BatchSize, cfg.Embedding.Concurrency),
		indexer.WithLogger(utils.Named(logger, "index")),
	)
	retriever := search.NewRetriever(index, embedder,
		search.WithDefaults(cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK, cfg.Retrieval.Lambda),
		search.WithFetchMultiplier(cfg.Retrieval.FetchMultiplier),
		search.WithLogger(utils.Named(logger, "search")),
	)
	chunker := indexer.NewChunker(cfg.Chunking.MaxChars, cfg.Chunking.MinChars, cfg.Chunking.OverlapChars)
	cache := fingerprint.NewCache(store, fingerprint.WithLogger(utils.Named(logger, "fingerprint")))

	p := New(extractor, chunker, index, retriever, cache,
		WithIngestTimeout(cfg.Pipeline.IngestTimeout),
		WithLanguageHints(cfg.Extraction.LanguageHints),
		WithLogger(utils.Named(logger, "pipeline")),
	)
	return &Service{Pipeline: p, Embedder: embedder, Storage: store}, nil
}
