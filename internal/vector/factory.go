package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Good for a single document's chunks.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeChromem uses an in-process chromem-go collection.
	IndexTypeChromem IndexType = "chromem"
)

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "chromem".
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeChromem:
		return NewChromemIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, chromem)", indexType)
	}
}
