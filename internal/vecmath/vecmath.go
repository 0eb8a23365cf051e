package vecmath

import "math"

// L2NormalizeInPlace scales vec to unit L2 norm and reports whether it could.
// An empty or all-zero vector cannot be normalized and is left unchanged.
func L2NormalizeInPlace(vec []float32) bool {
	if len(vec) == 0 {
		return false
	}
	var sumSq float64
	for _, v := range vec {
		f := float64(v)
		sumSq += f * f
	}
	if sumSq <= 0 {
		return false
	}
	invNorm := float32(1.0 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= invNorm
	}
	return true
}

// Dot returns the dot product of a and b. For unit vectors this is the
// cosine similarity. Mismatched lengths yield 0.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the L2 norm of vec.
func Norm(vec []float32) float64 {
	var sumSq float64
	for _, v := range vec {
		f := float64(v)
		sumSq += f * f
	}
	return math.Sqrt(sumSq)
}
