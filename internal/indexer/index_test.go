package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/pdfrag/internal/embedding"
	"github.com/hyperjump/pdfrag/internal/models"
)

// countingEmbedder wraps MockEmbedder, counting batch calls and the peak number in flight.
type countingEmbedder struct {
	*embedding.MockEmbedder
	batches  atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	failOn   int32
	mu       sync.Mutex
	sizes    []int
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{MockEmbedder: embedding.NewMockEmbedder(256)}
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := c.batches.Add(1)
	cur := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if cur <= p || c.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	c.mu.Lock()
	c.sizes = append(c.sizes, len(texts))
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.failOn != 0 && n == c.failOn {
		return nil, fmt.Errorf("%w: test", models.ErrProviderUnavailable)
	}
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func testChunks(fp string, texts ...string) []*models.Chunk {
	chunks := make([]*models.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = &models.Chunk{ID: models.ChunkID(fp, i), DocumentFingerprint: fp, SequenceIndex: i, Text: t,
			Pages: models.PageRange{First: i + 1, Last: i + 1}}
	}
	return chunks
}

func TestIndex_BuildAndSearch(t *testing.T) {
	for _, typ := range []string{"memory", "chromem"} {
		t.Run(typ, func(t *testing.T) {
			emb := newCountingEmbedder()
			idx := NewIndex(emb, WithVectorIndex(typ), WithBatching(2, 2))
			ctx := context.Background()
			chunks := testChunks("doc",
				"registration fees are two hundred dinars",
				"the library opens at eight in the morning",
				"parking permits cost fifty dinars per term",
			)
			if err := idx.Build(ctx, "doc", chunks); err != nil {
				t.Fatal(err)
			}
			if !idx.Has("doc") || idx.Size("doc") != 3 {
				t.Fatalf("Has=%v Size=%d", idx.Has("doc"), idx.Size("doc"))
			}
			if got := emb.batches.Load(); got != 2 {
				t.Errorf("embedding batches = %d, want 2", got)
			}
			for _, ch := range chunks {
				if len(ch.Embedding) != 256 {
					t.Errorf("chunk %s embedding not set", ch.ID)
				}
			}

			q, _ := emb.Embed(ctx, "the library opens in the morning")
			hits, err := idx.Search(ctx, "doc", q, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 2 || hits[0].Chunk.SequenceIndex != 1 {
				t.Errorf("top hit should be the library chunk, got %+v", hits)
			}
			if hits[0].Score < hits[1].Score {
				t.Error("hits should be ordered by score")
			}
		})
	}
}

func TestIndex_emptyInput(t *testing.T) {
	idx := NewIndex(newCountingEmbedder())
	if err := idx.Build(context.Background(), "doc", nil); !errors.Is(err, models.ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
	if idx.Has("doc") {
		t.Error("nothing should be published")
	}
}

func TestIndex_failedBuildPublishesNothing(t *testing.T) {
	emb := newCountingEmbedder()
	emb.failOn = 2
	idx := NewIndex(emb, WithBatching(1, 1))
	err := idx.Build(context.Background(), "doc", testChunks("doc", "a b", "c d", "e f"))
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if idx.Has("doc") {
		t.Error("a failed build must not be searchable")
	}
	if _, err := idx.Search(context.Background(), "doc", make([]float32, 256), 3); !errors.Is(err, models.ErrUnknownDocument) {
		t.Errorf("Search err = %v", err)
	}
}

func TestIndex_boundedBatchConcurrency(t *testing.T) {
	emb := newCountingEmbedder()
	emb.delay = 10 * time.Millisecond
	idx := NewIndex(emb, WithBatching(1, 3))
	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d text", i)
	}
	if err := idx.Build(context.Background(), "doc", testChunks("doc", texts...)); err != nil {
		t.Fatal(err)
	}
	if p := emb.peak.Load(); p > 3 {
		t.Errorf("peak concurrent batches = %d, want <= 3", p)
	}
	if emb.batches.Load() != 12 {
		t.Errorf("batches = %d", emb.batches.Load())
	}
}

func TestIndex_RestoreMakesNoProviderCalls(t *testing.T) {
	ctx := context.Background()
	emb := newCountingEmbedder()
	first := NewIndex(emb)
	chunks := testChunks("doc", "alpha beta", "gamma delta")
	if err := first.Build(ctx, "doc", chunks); err != nil {
		t.Fatal(err)
	}
	calls := emb.batches.Load()

	second := NewIndex(emb)
	if err := second.Restore(ctx, "doc", chunks); err != nil {
		t.Fatal(err)
	}
	if emb.batches.Load() != calls {
		t.Error("Restore must not call the embedder")
	}
	if second.Size("doc") != 2 {
		t.Errorf("Size = %d", second.Size("doc"))
	}

	missing := testChunks("other", "no embedding")
	if err := second.Restore(ctx, "other", missing); err == nil {
		t.Error("expected error restoring chunks without embeddings")
	}
}

func TestIndex_Drop(t *testing.T) {
	idx := NewIndex(newCountingEmbedder())
	ctx := context.Background()
	if err := idx.Build(ctx, "doc", testChunks("doc", "one")); err != nil {
		t.Fatal(err)
	}
	idx.Drop("doc")
	if idx.Has("doc") || idx.Size("doc") != 0 {
		t.Error("Drop should remove the index")
	}
	idx.Drop("doc")
}
