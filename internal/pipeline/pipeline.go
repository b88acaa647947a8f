// Package pipeline coordinates ingestion and retrieval of documents. Ingestion of a given
// document runs at most once at a time; finished documents are remembered by fingerprint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/pdfrag/internal/extract"
	"github.com/hyperjump/pdfrag/internal/fingerprint"
	"github.com/hyperjump/pdfrag/internal/indexer"
	"github.com/hyperjump/pdfrag/internal/models"
	"github.com/hyperjump/pdfrag/internal/search"
)

// TextExtractor turns PDF bytes into per-page text.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte) (*extract.Extraction, error)
}

// Pipeline runs documents through extraction, chunking and embedding, and answers retrieval
// requests against documents that reached the ready state.
type Pipeline struct {
	extractor     TextExtractor
	chunker       *indexer.Chunker
	index         *indexer.Index
	retriever     *search.Retriever
	cache         *fingerprint.Cache
	ingestTimeout time.Duration
	languageHints []string
	logger        *zap.Logger

	group singleflight.Group

	mu     sync.RWMutex
	states map[string]*models.Status
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithIngestTimeout bounds a single ingestion run.
func WithIngestTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.ingestTimeout = d
		}
	}
}

// WithLanguageHints records the OCR language hints on ingested documents.
func WithLanguageHints(hints []string) Option {
	return func(p *Pipeline) { p.languageHints = hints }
}

// New assembles a pipeline. A nil cache means an in-memory one.
func New(extractor TextExtractor, chunker *indexer.Chunker, index *indexer.Index, retriever *search.Retriever,
	cache *fingerprint.Cache, opts ...Option) *Pipeline {
	if cache == nil {
		cache = fingerprint.NewCache(nil)
	}
	p := &Pipeline{
		extractor:     extractor,
		chunker:       chunker,
		index:         index,
		retriever:     retriever,
		cache:         cache,
		ingestTimeout: 10 * time.Minute,
		states:        make(map[string]*models.Status),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest indexes the PDF in content and returns its handle. Ingesting bytes that are already
// ready returns at once; concurrent calls for the same bytes share one run.
func (p *Pipeline) Ingest(ctx context.Context, content []byte) (models.DocumentHandle, error) {
	resp, err := p.IngestDocument(ctx, content)
	if err != nil {
		return models.DocumentHandle{}, err
	}
	return models.NewDocumentHandle(resp.Fingerprint), nil
}

// IngestDocument is Ingest with the details of the resulting document.
//
// The run is detached from ctx: a caller that gives up gets ctx.Err() while the run goes
// on, bounded by the ingest timeout, for the callers still waiting on it.
func (p *Pipeline) IngestDocument(ctx context.Context, content []byte) (*models.IngestResponse, error) {
	fp := fingerprint.Compute(content)
	if doc := p.readyDocument(fp); doc != nil {
		return ingestResponse(doc, true), nil
	}

	p.markIngesting(fp)
	ch := p.group.DoChan(fp, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.ingestTimeout)
		defer cancel()
		return p.run(runCtx, fp, content)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.IngestResponse), nil
	}
}

func (p *Pipeline) run(ctx context.Context, fp string, content []byte) (*models.IngestResponse, error) {
	// A run that finished just before this one started leaves the document ready.
	if doc := p.readyDocument(fp); doc != nil {
		return ingestResponse(doc, true), nil
	}
	if doc, ok := p.restore(ctx, fp); ok {
		return ingestResponse(doc, true), nil
	}

	start := time.Now()
	p.setState(fp, models.StateExtracting, nil)
	x, err := p.extractor.Extract(ctx, content)
	if err != nil {
		return nil, p.fail(fp, models.StateExtracting, err)
	}

	p.setState(fp, models.StateChunking, nil)
	chunks := p.chunker.Split(fp, x.Pages)
	if len(chunks) == 0 {
		return nil, p.fail(fp, models.StateChunking, models.ErrEmptyInput)
	}

	p.setState(fp, models.StateEmbedding, nil)
	if err := p.index.Build(ctx, fp, chunks); err != nil {
		return nil, p.fail(fp, models.StateEmbedding, err)
	}

	doc := &models.Document{
		Fingerprint:    fp,
		PageCount:      len(x.Pages),
		ExtractionMode: x.Mode,
		LanguageHints:  p.languageHints,
		ChunkCount:     len(chunks),
		CreatedAt:      time.Now(),
	}
	// Registered only after the index is published, so a cache hit always has an index behind it.
	if err := p.cache.Register(ctx, doc, chunks); err != nil {
		p.index.Drop(fp)
		return nil, p.fail(fp, models.StateEmbedding, err)
	}
	p.setState(fp, models.StateReady, doc)

	if p.logger != nil {
		p.logger.Info("document ingested",
			zap.String("fingerprint", fp),
			zap.Int("pages", doc.PageCount),
			zap.Int("chunks", doc.ChunkCount),
			zap.String("mode", string(doc.ExtractionMode)),
			zap.Duration("took", time.Since(start)))
	}
	return ingestResponse(doc, false), nil
}

// restore rebuilds the index of a document registered by an earlier process from its
// stored embeddings.
func (p *Pipeline) restore(ctx context.Context, fp string) (*models.Document, bool) {
	doc, ok, err := p.cache.Lookup(ctx, fp)
	if err != nil || !ok {
		if err != nil && p.logger != nil {
			p.logger.Warn("fingerprint lookup failed", zap.String("fingerprint", fp), zap.Error(err))
		}
		return nil, false
	}
	if !p.index.Has(fp) {
		chunks, err := p.cache.Chunks(ctx, fp)
		if err == nil {
			err = p.index.Restore(ctx, fp, chunks)
		}
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("stored index unusable, rebuilding", zap.String("fingerprint", fp), zap.Error(err))
			}
			return nil, false
		}
	}
	p.setState(fp, models.StateReady, doc)
	return doc, true
}

func (p *Pipeline) fail(fp string, stage models.State, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrTimeout) {
		err = fmt.Errorf("%w: %w", models.ErrTimeout, err)
	}
	serr := &models.StageError{Stage: stage, Err: err}
	p.setStatus(&models.Status{Fingerprint: fp, State: models.StateFailed, Reason: serr.Error()})
	if p.logger != nil {
		p.logger.Warn("ingest failed", zap.String("fingerprint", fp), zap.String("stage", string(stage)), zap.Error(err))
	}
	return serr
}

// markIngesting records fp as uploading before its run is scheduled, so a retrieve racing
// the run sees models.ErrNotReady. A state left by a live or finished run is kept.
func (p *Pipeline) markIngesting(fp string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.states[fp]; ok && st.State != models.StateFailed {
		return
	}
	p.states[fp] = &models.Status{Fingerprint: fp, State: models.StateUploading, UpdatedAt: time.Now()}
}

func (p *Pipeline) setState(fp string, state models.State, doc *models.Document) {
	p.setStatus(&models.Status{Fingerprint: fp, State: state, Document: doc})
}

func (p *Pipeline) setStatus(st *models.Status) {
	st.UpdatedAt = time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[st.Fingerprint] = st
}

func (p *Pipeline) readyDocument(fp string) *models.Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.states[fp]
	if !ok || st.State != models.StateReady || !p.index.Has(fp) {
		return nil
	}
	return st.Document
}

// Status reports where the document is in the pipeline. Documents registered by an earlier
// process report ready.
func (p *Pipeline) Status(ctx context.Context, fp string) (*models.Status, error) {
	p.mu.RLock()
	st, ok := p.states[fp]
	if ok {
		c := *st
		p.mu.RUnlock()
		return &c, nil
	}
	p.mu.RUnlock()

	doc, found, err := p.cache.Lookup(ctx, fp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrUnknownDocument
	}
	return &models.Status{Fingerprint: fp, State: models.StateReady, Document: doc, UpdatedAt: doc.CreatedAt}, nil
}

// Retrieve returns up to topK chunks of the document relevant to query, using the default
// relevance/diversity trade-off.
func (p *Pipeline) Retrieve(ctx context.Context, h models.DocumentHandle, query string, topK int) ([]*models.ContextChunk, error) {
	return p.RetrieveQuery(ctx, h.Fingerprint(), &models.RetrieveQuery{Query: query, TopK: topK})
}

// RetrieveQuery answers q against the document. It fails with models.ErrNotReady while the
// document is being ingested and with models.ErrUnknownDocument when it was never ingested
// or its ingestion failed.
func (p *Pipeline) RetrieveQuery(ctx context.Context, fp string, q *models.RetrieveQuery) ([]*models.ContextChunk, error) {
	if err := p.retriever.ProcessQuery(q); err != nil {
		return nil, err
	}
	if err := p.ensureReady(ctx, fp); err != nil {
		return nil, err
	}
	return p.retriever.Run(ctx, fp, q)
}

func (p *Pipeline) ensureReady(ctx context.Context, fp string) error {
	p.mu.RLock()
	st, ok := p.states[fp]
	var state models.State
	if ok {
		state = st.State
	}
	p.mu.RUnlock()

	switch {
	case ok && state == models.StateReady && p.index.Has(fp):
		return nil
	case ok && state == models.StateFailed:
		return models.ErrUnknownDocument
	case ok && state != models.StateReady:
		return models.ErrNotReady
	}

	// Not seen by this process; the store may still hold it.
	_, err, _ := p.group.Do("restore:"+fp, func() (any, error) {
		if _, ok := p.restore(context.WithoutCancel(ctx), fp); !ok {
			return nil, models.ErrUnknownDocument
		}
		return nil, nil
	})
	return err
}

// Forget drops a document's index, cache entry and state.
func (p *Pipeline) Forget(ctx context.Context, fp string) error {
	p.index.Drop(fp)
	p.mu.Lock()
	delete(p.states, fp)
	p.mu.Unlock()
	return p.cache.Forget(ctx, fp)
}

// Documents lists ready documents, newest first.
func (p *Pipeline) Documents(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	return p.cache.Store().ListDocuments(ctx, offset, limit)
}

// Stats counts stored documents and chunks.
func (p *Pipeline) Stats(ctx context.Context) (docs, chunks int64, err error) {
	if docs, err = p.cache.Store().CountDocuments(ctx); err != nil {
		return 0, 0, err
	}
	if chunks, err = p.cache.Store().CountChunks(ctx); err != nil {
		return 0, 0, err
	}
	return docs, chunks, nil
}

func ingestResponse(doc *models.Document, cached bool) *models.IngestResponse {
	return &models.IngestResponse{
		Fingerprint:    doc.Fingerprint,
		PageCount:      doc.PageCount,
		ChunkCount:     doc.ChunkCount,
		ExtractionMode: doc.ExtractionMode,
		Cached:         cached,
	}
}
