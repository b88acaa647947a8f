package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/pdfrag/internal/models"
)

func testDocument(fp string, created time.Time) (*models.Document, []*models.Chunk) {
	doc := &models.Document{
		Fingerprint:    fp,
		PageCount:      2,
		ExtractionMode: models.ModeMixed,
		LanguageHints:  []string{"eng", "ara"},
		ChunkCount:     2,
		CreatedAt:      created,
	}
	chunks := []*models.Chunk{
		{ID: models.ChunkID(fp, 1), DocumentFingerprint: fp, SequenceIndex: 1, Text: "second chunk", Overlap: 3,
			Pages: models.PageRange{First: 1, Last: 2}, Embedding: []float32{0, 1, -0.5}},
		{ID: models.ChunkID(fp, 0), DocumentFingerprint: fp, SequenceIndex: 0, Text: "first chunk",
			Pages: models.PageRange{First: 1, Last: 1}, Embedding: []float32{1, 0, 0.25}},
	}
	return doc, chunks
}

func storesUnderTest(t *testing.T) map[string]Storage {
	t.Helper()
	sqlite, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

func TestStorage_SaveAndGet(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, chunks := testDocument("fp-one", time.Now())
			if err := store.SaveDocument(ctx, doc, chunks); err != nil {
				t.Fatal(err)
			}

			got, err := store.GetDocument(ctx, "fp-one")
			if err != nil {
				t.Fatal(err)
			}
			if got.PageCount != 2 || got.ExtractionMode != models.ModeMixed || got.ChunkCount != 2 {
				t.Errorf("got %+v", got)
			}
			if len(got.LanguageHints) != 2 || got.LanguageHints[1] != "ara" {
				t.Errorf("language hints: %v", got.LanguageHints)
			}
			if got.CreatedAt.IsZero() {
				t.Error("CreatedAt should be kept")
			}

			stored, err := store.GetChunks(ctx, "fp-one")
			if err != nil {
				t.Fatal(err)
			}
			if len(stored) != 2 {
				t.Fatalf("got %d chunks", len(stored))
			}
			if stored[0].SequenceIndex != 0 || stored[1].SequenceIndex != 1 {
				t.Errorf("chunks not ordered by sequence: %d, %d", stored[0].SequenceIndex, stored[1].SequenceIndex)
			}
			second := stored[1]
			if second.Text != "second chunk" || second.Overlap != 3 || second.Pages != (models.PageRange{First: 1, Last: 2}) {
				t.Errorf("chunk fields: %+v", second)
			}
			if second.DocumentFingerprint != "fp-one" {
				t.Errorf("fingerprint: %q", second.DocumentFingerprint)
			}
			want := []float32{0, 1, -0.5}
			if len(second.Embedding) != len(want) {
				t.Fatalf("embedding: %v", second.Embedding)
			}
			for i := range want {
				if second.Embedding[i] != want[i] {
					t.Errorf("embedding[%d] = %v, want %v", i, second.Embedding[i], want[i])
				}
			}
		})
	}
}

func TestStorage_SaveReplaces(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, chunks := testDocument("fp-r", time.Now())
			if err := store.SaveDocument(ctx, doc, chunks); err != nil {
				t.Fatal(err)
			}
			doc.ChunkCount = 1
			if err := store.SaveDocument(ctx, doc, chunks[1:]); err != nil {
				t.Fatal(err)
			}
			stored, err := store.GetChunks(ctx, "fp-r")
			if err != nil {
				t.Fatal(err)
			}
			if len(stored) != 1 || stored[0].SequenceIndex != 0 {
				t.Errorf("expected only the re-saved chunk, got %d", len(stored))
			}
			n, _ := store.CountChunks(ctx)
			if n != 1 {
				t.Errorf("CountChunks = %d, want 1", n)
			}
		})
	}
}

func TestStorage_NotFound(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("GetDocument: got %v, want ErrNotFound", err)
			}
			if _, err := store.GetChunks(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("GetChunks: got %v, want ErrNotFound", err)
			}
			if err := store.DeleteDocument(ctx, "missing"); err != nil {
				t.Errorf("deleting a missing document: %v", err)
			}
		})
	}
}

func TestStorage_DeleteAndCount(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, fp := range []string{"a", "b"} {
				doc, chunks := testDocument(fp, time.Now())
				if err := store.SaveDocument(ctx, doc, chunks); err != nil {
					t.Fatal(err)
				}
			}
			if n, _ := store.CountDocuments(ctx); n != 2 {
				t.Errorf("CountDocuments = %d", n)
			}
			if n, _ := store.CountChunks(ctx); n != 4 {
				t.Errorf("CountChunks = %d", n)
			}
			if err := store.DeleteDocument(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			if _, err := store.GetDocument(ctx, "a"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("deleted document still present: %v", err)
			}
			if n, _ := store.CountChunks(ctx); n != 2 {
				t.Errorf("chunks of deleted document remain: %d", n)
			}
		})
	}
}

func TestStorage_ListDocuments(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			for i, fp := range []string{"old", "mid", "new"} {
				doc, chunks := testDocument(fp, base.Add(time.Duration(i)*time.Hour))
				if err := store.SaveDocument(ctx, doc, chunks); err != nil {
					t.Fatal(err)
				}
			}
			list, err := store.ListDocuments(ctx, 0, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 || list[0].Fingerprint != "new" || list[1].Fingerprint != "mid" {
				t.Errorf("first page: %v", fingerprints(list))
			}
			list, err = store.ListDocuments(ctx, 2, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 1 || list[0].Fingerprint != "old" {
				t.Errorf("second page: %v", fingerprints(list))
			}
		})
	}
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	doc, chunks := testDocument("c", time.Now())
	if err := store.SaveDocument(ctx, doc, chunks); err != nil {
		t.Fatal(err)
	}
	chunks[0].Embedding[0] = 42
	got, _ := store.GetChunks(ctx, "c")
	got[0].Text = "mutated"
	again, _ := store.GetChunks(ctx, "c")
	if again[0].Text != "first chunk" || again[1].Embedding[0] != 0 {
		t.Error("stored chunks should not alias caller memory")
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	doc, chunks := testDocument("persisted", time.Now())
	if err := store.SaveDocument(ctx, doc, chunks); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	stored, err := reopened.GetChunks(ctx, "persisted")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || len(stored[0].Embedding) != 3 {
		t.Errorf("reopened chunks: %d", len(stored))
	}
}

func TestVectorCodec(t *testing.T) {
	v := []float32{1.5, -2, 0, 3.25}
	got, err := decodeVector(encodeVector(v))
	if err != nil {
		t.Fatal(err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], v[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
	if got, err := decodeVector(nil); err != nil || len(got) != 0 {
		t.Errorf("nil blob: %v, %v", got, err)
	}
}

func TestNewFromConfig(t *testing.T) {
	if _, err := NewFromConfig(configFor("redis", "")); err == nil {
		t.Error("expected error for unknown storage type")
	}
	s, err := NewFromConfig(configFor("memory", ""))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("got %T", s)
	}
	s, err = NewFromConfig(configFor("sqlite", filepath.Join(t.TempDir(), "f.db")))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStorage); !ok {
		t.Errorf("got %T", s)
	}
}

func fingerprints(docs []*models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Fingerprint
	}
	return out
}
