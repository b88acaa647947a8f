package extract

import (
	"context"
	"fmt"

	"github.com/hyperjump/pdfrag/internal/provider"
)

// OCREngine recognizes the text in a page image. languageHints are ISO 639-2 codes such as "eng" or "ara".
type OCREngine interface {
	Recognize(ctx context.Context, img *PageImage, languageHints []string) (string, error)
}

// BatchRecognizer is an OCREngine that can recognize several pages in one call.
// The result is keyed by PageImage.Page.
type BatchRecognizer interface {
	OCREngine
	RecognizeBatch(ctx context.Context, imgs []*PageImage, languageHints []string) (map[int]string, error)
	BatchSize() int
}

// ResilientOCR applies a provider.Policy to every call of the wrapped engine.
type ResilientOCR struct {
	inner  OCREngine
	policy provider.Policy
}

// NewResilientOCR wraps inner with policy.
func NewResilientOCR(inner OCREngine, policy provider.Policy) *ResilientOCR {
	return &ResilientOCR{inner: inner, policy: policy}
}

func (r *ResilientOCR) Recognize(ctx context.Context, img *PageImage, languageHints []string) (string, error) {
	return provider.Call(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.inner.Recognize(ctx, img, languageHints)
	})
}

// RecognizeBatch forwards to the inner engine's batch call, or recognizes pages one by one
// when the inner engine has none.
func (r *ResilientOCR) RecognizeBatch(ctx context.Context, imgs []*PageImage, languageHints []string) (map[int]string, error) {
	if b, ok := r.inner.(BatchRecognizer); ok {
		return provider.Call(ctx, r.policy, func(ctx context.Context) (map[int]string, error) {
			return b.RecognizeBatch(ctx, imgs, languageHints)
		})
	}
	out := make(map[int]string, len(imgs))
	for _, img := range imgs {
		text, err := r.Recognize(ctx, img, languageHints)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", img.Page, err)
		}
		out[img.Page] = text
	}
	return out, nil
}

// BatchSize reports the inner engine's batch size, or 1.
func (r *ResilientOCR) BatchSize() int {
	if b, ok := r.inner.(BatchRecognizer); ok {
		return b.BatchSize()
	}
	return 1
}
