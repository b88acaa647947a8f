package vector

import (
	"math"

	"github.com/hyperjump/pdfrag/pkg/utils"
)

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) == 0 {
		return 0
	}
	return utils.Dot(a, b)
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	return math.Sqrt(utils.Dot(x, x))
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero vector.
func Cosine(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}
