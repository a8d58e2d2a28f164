// Package vecmath holds the vector and small-statistics helpers shared by every
// scoring component.
package vecmath

import (
	"math"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
)

// ErrDimensionMismatch is returned by Cosine when the vectors differ in length.
var ErrDimensionMismatch = fault.InvalidArgument("cosine", "vector dimension mismatch")

// #region cosine
// Cosine computes the cosine similarity of two equal-length vectors.
// A zero-norm vector yields 0. Vectors of different length are a caller bug.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	if len(a) == 0 {
		return 0, nil
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}
	sim := dot / denom
	// float rounding can push parallel vectors just past 1
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// CosineOrZero is Cosine with mismatched or missing vectors scored as 0.
func CosineOrZero(a, b []float32) float64 {
	sim, err := Cosine(a, b)
	if err != nil {
		return 0
	}
	return sim
}

// #endregion cosine

// #region stats
// Clamp01 restricts v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance, or 0 for an empty slice.
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// #endregion stats
