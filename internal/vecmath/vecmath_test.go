package vecmath

import (
	"math"
	"testing"
)

func TestL2NormalizeInPlace_UnitNorm(t *testing.T) {
	vec := []float32{3, 4}
	if !L2NormalizeInPlace(vec) {
		t.Fatalf("expected normalization to succeed")
	}
	if n := Norm(vec); math.Abs(n-1.0) > 1e-6 {
		t.Fatalf("expected unit norm, got %v", n)
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected components: %v", vec)
	}
}

func TestL2NormalizeInPlace_Degenerate(t *testing.T) {
	if L2NormalizeInPlace(nil) {
		t.Fatalf("nil vector should not normalize")
	}
	zero := []float32{0, 0, 0}
	if L2NormalizeInPlace(zero) {
		t.Fatalf("zero vector should not normalize")
	}
	if zero[0] != 0 || zero[1] != 0 || zero[2] != 0 {
		t.Fatalf("zero vector must be left unchanged: %v", zero)
	}
}

func TestDot(t *testing.T) {
	if got := Dot([]float32{1, 0}, []float32{0.6, 0.8}); math.Abs(float64(got)-0.6) > 1e-6 {
		t.Fatalf("expected 0.6, got %v", got)
	}
	if got := Dot([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Fatalf("mismatched lengths should yield 0, got %v", got)
	}
}
