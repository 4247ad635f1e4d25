package vision

import (
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when two embeddings differ in length.
var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Cosine returns the cosine similarity of a and b clamped to [0, 1]. A zero
// vector is similar to nothing.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, s)), nil
}
