package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/config"
	"github.com/hyperjump/pdfrag/internal/provider"
)

// NewFromConfig builds the configured embedder, wrapped for resilience and with a
// query-embedding cache in front.
func NewFromConfig(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Provider {
	case "openai":
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey(),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		}, WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, cfg.APIKeyEnv)
		}
		base = e
	case "onnx":
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		base = e
	case "mock":
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	resilient := NewResilientEmbedder(base, provider.Policy{
		Name:       "embedding/" + cfg.Provider,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Limiter:    provider.NewLimiter(cfg.RequestsPerMinute),
		Logger:     logger,
	})
	if logger != nil {
		logger.Debug("embedder ready",
			zap.String("provider", cfg.Provider),
			zap.String("model", cfg.Model),
			zap.Int("dimensions", base.Dimensions()))
	}
	return NewCachedEmbedder(resilient, cfg.CacheSize), nil
}
