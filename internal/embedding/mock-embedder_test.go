package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/pdfrag/pkg/utils"
)

func TestMockEmbedder_deterministicAndNormalized(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "bridge toll schedule")
	b, _ := e.Embed(ctx, "bridge toll schedule")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding should be deterministic")
		}
	}
	if n := math.Sqrt(utils.Dot(a, a)); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", n)
	}
}

func TestMockEmbedder_sharedVocabularyIsCloser(t *testing.T) {
	e := NewMockEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "river bridge toll")
	near, _ := e.Embed(ctx, "the river bridge charges a toll to every car")
	far, _ := e.Embed(ctx, "quarterly revenue grew in the software segment")
	if utils.Dot(q, near) <= utils.Dot(q, far) {
		t.Errorf("expected shared vocabulary to score higher: near=%v far=%v", utils.Dot(q, near), utils.Dot(q, far))
	}
}
