//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"output"}
)

// ONNXEmbedder runs a local sentence-embedding model (e.g. all-MiniLM-L6-v2) through ONNX Runtime,
// so chunks can be embedded without a network provider. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.DynamicAdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
}

// NewONNXEmbedder creates an ONNX embedder for the model at modelPath.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if err := checkModelPath(modelPath); err != nil {
		return nil, err
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("onnx dimensions must be positive, got %d", dimensions)
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath, onnxInputNames, onnxOutputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &ONNXEmbedder{
		session:    session,
		dimensions: dimensions,
		maxTokens:  maxTokens,
		tokenizer:  &SimpleTokenizer{},
	}, nil
}

// Embed returns the unit-length embedding for text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts with one inference run per window of onnxMaxBatch texts.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += onnxMaxBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+onnxMaxBatch, len(texts))
		vecs, err := e.run(texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *ONNXEmbedder) run(texts []string) ([][]float32, error) {
	rows := int64(len(texts))
	ids, mask, types := packBatch(e.tokenizer, texts, e.maxTokens)
	shape := ort.NewShape(rows, int64(e.maxTokens))

	var tensors []ort.ArbitraryTensor
	defer func() {
		for _, t := range tensors {
			_ = t.Destroy()
		}
	}()
	for _, data := range [][]int64{ids, mask, types} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		tensors = append(tensors, t)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(rows, int64(e.dimensions)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	tensors = append(tensors, output)

	if err := e.session.Run(tensors[:3], []ort.ArbitraryTensor{output}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return unpackRows(output.GetData(), len(texts), e.dimensions)
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session.
func (e *ONNXEmbedder) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
