package embedding

import (
	"context"

	"github.com/hyperjump/pdfrag/internal/provider"
)

// ResilientEmbedder applies a provider.Policy (timeout, retries, rate limit) to every call
// of the wrapped embedder. Exhausted failures surface as models.ErrProviderUnavailable or
// models.ErrTimeout.
type ResilientEmbedder struct {
	inner  Embedder
	policy provider.Policy
}

// NewResilientEmbedder wraps inner with policy.
func NewResilientEmbedder(inner Embedder, policy provider.Policy) *ResilientEmbedder {
	return &ResilientEmbedder{inner: inner, policy: policy}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return provider.Call(ctx, e.policy, func(ctx context.Context) ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
}

func (e *ResilientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return provider.Call(ctx, e.policy, func(ctx context.Context) ([][]float32, error) {
		return e.inner.EmbedBatch(ctx, texts)
	})
}

func (e *ResilientEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

func (e *ResilientEmbedder) Close() error {
	return e.inner.Close()
}
