package fingerprint

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/models"
	"github.com/hyperjump/pdfrag/internal/storage"
)

// Cache maps fingerprints of ready documents to their records. Entries are written only
// once a document's index is published and never expire.
type Cache struct {
	store  storage.Storage
	logger *zap.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = l
	}
}

// NewCache returns a cache over store. A nil store means an in-memory one.
func NewCache(store storage.Storage, opts ...CacheOption) *Cache {
	if store == nil {
		store = storage.NewMemoryStorage()
	}
	c := &Cache{store: store}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the document registered under fp. A miss is (nil, false, nil).
func (c *Cache) Lookup(ctx context.Context, fp string) (*models.Document, bool, error) {
	doc, err := c.store.GetDocument(ctx, fp)
	if errors.Is(err, models.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fingerprint lookup: %w", err)
	}
	return doc, true, nil
}

// Chunks returns the stored chunks of a registered document, embeddings included.
func (c *Cache) Chunks(ctx context.Context, fp string) ([]*models.Chunk, error) {
	chunks, err := c.store.GetChunks(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("fingerprint chunks: %w", err)
	}
	return chunks, nil
}

// Register records a ready document together with its embedded chunks.
func (c *Cache) Register(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error {
	if doc == nil || doc.Fingerprint == "" {
		return errors.New("fingerprint register: document has no fingerprint")
	}
	if err := c.store.SaveDocument(ctx, doc, chunks); err != nil {
		return fmt.Errorf("fingerprint register: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("fingerprint registered",
			zap.String("fingerprint", doc.Fingerprint),
			zap.Int("chunks", len(chunks)))
	}
	return nil
}

// Forget drops fp. Forgetting an unknown fingerprint is not an error.
func (c *Cache) Forget(ctx context.Context, fp string) error {
	if err := c.store.DeleteDocument(ctx, fp); err != nil {
		return fmt.Errorf("fingerprint forget: %w", err)
	}
	return nil
}

// Store returns the backing storage.
func (c *Cache) Store() storage.Storage {
	return c.store
}
