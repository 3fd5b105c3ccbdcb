package index

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateVector is returned when a similarity operand has zero norm
// (or the operands differ in length). Individual comparisons failing this
// way are excluded from query results rather than aborting the query.
var ErrDegenerateVector = errors.New("degenerate vector in similarity computation")

// Cosine returns the cosine similarity dot(a,b) / (|a|·|b|). It is
// symmetric and equals 1.0 for identical non-zero vectors.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: length mismatch %d vs %d", ErrDegenerateVector, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero norm", ErrDegenerateVector)
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
