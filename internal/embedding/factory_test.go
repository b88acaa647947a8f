package embedding

import (
	"context"
	"testing"

	"github.com/hyperjump/pdfrag/internal/config"
)

func TestNewFromConfig_mock(t *testing.T) {
	cfg := config.EmbeddingConfig{Provider: "mock", Dimensions: 16, CacheSize: 4}
	e, err := NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil || len(vecs) != 2 {
		t.Fatalf("EmbedBatch: %v, %d", err, len(vecs))
	}
}

func TestNewFromConfig_errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EmbeddingConfig
	}{
		{"unknown provider", config.EmbeddingConfig{Provider: "cohere"}},
		{"openai without key", config.EmbeddingConfig{Provider: "openai", APIKeyEnv: "PDFRAG_TEST_UNSET_KEY"}},
		{"onnx without model", config.EmbeddingConfig{Provider: "onnx", ModelPath: "/nonexistent/model.onnx", Dimensions: 384}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFromConfig(tt.cfg, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}
