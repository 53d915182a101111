// Package search implements exact nearest-neighbor retrieval over stored segments.
package search

import "math"

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Mismatched lengths and zero-norm inputs score 0, so ranking stays total
// over a candidate set that contains a bad vector. Accumulation is in
// float64 for stability.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
