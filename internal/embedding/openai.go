package embedding

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/provider"
	"github.com/hyperjump/pdfrag/pkg/utils"
)

// maxOpenAIBatch is the most inputs a single embeddings request accepts.
const maxOpenAIBatch = 2048

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
}

// OpenAIEmbedder generates embeddings with the OpenAI embeddings API or a compatible endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
	logger     *zap.Logger
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithLogger sets the logger for request debugging.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.logger = l
	}
}

// NewOpenAIEmbedder creates an embedder for cfg.Model.
func NewOpenAIEmbedder(cfg OpenAIConfig, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: API key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxOpenAIBatch {
		cfg.BatchSize = 100
	}
	e := &OpenAIEmbedder{
		client:     provider.NewOpenAIClient(cfg.APIKey, cfg.BaseURL),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in requests of at most the configured batch size, preserving order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.request(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, batch []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: batch,
		Model: openai.EmbeddingModel(e.model),
	}
	// Only the text-embedding-3 family accepts a reduced output size.
	if e.dimensions > 0 && strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, provider.OpenAIError(fmt.Errorf("openai embedding request failed: %w", err))
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("openai returned %d embeddings, expected %d", len(resp.Data), len(batch))
	}

	out := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) || out[d.Index] != nil {
			return nil, fmt.Errorf("openai returned unexpected embedding index %d", d.Index)
		}
		vec := d.Embedding
		if e.dimensions > 0 && len(vec) != e.dimensions {
			return nil, provider.Permanent(fmt.Errorf("openai returned %d dimensions, expected %d", len(vec), e.dimensions))
		}
		utils.NormalizeL2(vec)
		out[d.Index] = vec
	}
	if e.logger != nil {
		e.logger.Debug("openai embeddings",
			zap.String("model", e.model),
			zap.Int("inputs", len(batch)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens))
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
