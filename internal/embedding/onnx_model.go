package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/pdfrag/pkg/utils"
)

// onnxMaxBatch bounds how many texts share one inference run.
const onnxMaxBatch = 32

func checkModelPath(modelPath string) error {
	if modelPath == "" {
		return fmt.Errorf("onnx model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("onnx model not found at %s: %w", modelPath, err)
	}
	return nil
}

// packBatch tokenizes texts into row-major [len(texts), maxTokens] model inputs.
func packBatch(tok Tokenizer, texts []string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	n := len(texts) * maxTokens
	inputIDs = make([]int64, 0, n)
	attentionMask = make([]int64, 0, n)
	tokenTypeIDs = make([]int64, 0, n)
	for _, text := range texts {
		ids, mask, types := tok.Tokenize(text, maxTokens)
		inputIDs = append(inputIDs, ids...)
		attentionMask = append(attentionMask, mask...)
		tokenTypeIDs = append(tokenTypeIDs, types...)
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// unpackRows splits a row-major [rows, dims] output into unit-length vectors.
func unpackRows(out []float32, rows, dims int) ([][]float32, error) {
	if len(out) < rows*dims {
		return nil, fmt.Errorf("onnx output has %d values, want %d", len(out), rows*dims)
	}
	vecs := make([][]float32, rows)
	for i := range vecs {
		v := make([]float32, dims)
		copy(v, out[i*dims:(i+1)*dims])
		utils.NormalizeL2(v)
		vecs[i] = v
	}
	return vecs, nil
}
