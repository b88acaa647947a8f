package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperjump/pdfrag/internal/models"
)

// MemoryStorage keeps documents for the lifetime of the process.
type MemoryStorage struct {
	mu     sync.RWMutex
	docs   map[string]*models.Document
	chunks map[string][]*models.Chunk
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		docs:   make(map[string]*models.Document),
		chunks: make(map[string][]*models.Chunk),
	}
}

// SaveDocument stores copies of doc and chunks.
func (m *MemoryStorage) SaveDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error {
	d := copyDocument(doc)
	cs := make([]*models.Chunk, len(chunks))
	for i, ch := range chunks {
		cs[i] = copyChunk(ch)
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].SequenceIndex < cs[j].SequenceIndex })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.Fingerprint] = d
	m.chunks[doc.Fingerprint] = cs
	return nil
}

// GetDocument returns a copy of the stored document.
func (m *MemoryStorage) GetDocument(ctx context.Context, fingerprint string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[fingerprint]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyDocument(doc), nil
}

// GetChunks returns copies of the stored chunks.
func (m *MemoryStorage) GetChunks(ctx context.Context, fingerprint string) ([]*models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.docs[fingerprint]; !ok {
		return nil, models.ErrNotFound
	}
	stored := m.chunks[fingerprint]
	out := make([]*models.Chunk, len(stored))
	for i, ch := range stored {
		out[i] = copyChunk(ch)
	}
	return out, nil
}

// DeleteDocument removes a document and its chunks. Deleting a missing document is not an error.
func (m *MemoryStorage) DeleteDocument(ctx context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, fingerprint)
	delete(m.chunks, fingerprint)
	return nil
}

// ListDocuments returns documents newest first.
func (m *MemoryStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	m.mu.RLock()
	docs := make([]*models.Document, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, copyDocument(d))
	}
	m.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].Fingerprint < docs[j].Fingerprint
	})
	if offset >= len(docs) {
		return nil, nil
	}
	docs = docs[offset:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs, nil
}

// CountDocuments returns the number of stored documents.
func (m *MemoryStorage) CountDocuments(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.docs)), nil
}

// CountChunks returns the number of stored chunks.
func (m *MemoryStorage) CountChunks(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, cs := range m.chunks {
		n += int64(len(cs))
	}
	return n, nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	return nil
}

func copyDocument(d *models.Document) *models.Document {
	c := *d
	c.LanguageHints = append([]string(nil), d.LanguageHints...)
	return &c
}

func copyChunk(ch *models.Chunk) *models.Chunk {
	c := *ch
	c.Embedding = append([]float32(nil), ch.Embedding...)
	return &c
}
