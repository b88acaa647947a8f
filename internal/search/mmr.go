package search

import (
	"math"

	"github.com/hyperjump/pdfrag/internal/vector"
)

// Candidate is a chunk fetched by similarity, in similarity rank order.
type Candidate struct {
	ID        string
	Relevance float64
	Vector    []float32
}

// SelectMMR re-ranks candidates by maximal marginal relevance and returns the positions of the
// chosen candidates in selection order. Each step picks the candidate maximizing
// lambda*relevance - (1-lambda)*max similarity to the ones already chosen; ties go to the
// better similarity rank. lambda is clamped to [0, 1].
func SelectMMR(candidates []Candidate, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if lambda < 0 {
		lambda = 0
	} else if lambda > 1 {
		lambda = 1
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	chosen := make([]bool, len(candidates))
	// maxSim[i] is the highest similarity of candidate i to any chosen candidate.
	maxSim := make([]float64, len(candidates))
	selected := make([]int, 0, k)

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if chosen[i] {
				continue
			}
			penalty := 0.0
			if len(selected) > 0 {
				penalty = maxSim[i]
			}
			score := lambda*c.Relevance - (1-lambda)*penalty
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		chosen[best] = true
		selected = append(selected, best)

		picked := candidates[best].Vector
		for i, c := range candidates {
			if chosen[i] {
				continue
			}
			sim := vector.Cosine(c.Vector, picked)
			if len(selected) == 1 || sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}
	return selected
}
