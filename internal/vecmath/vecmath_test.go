package vecmath

import (
	"math"
	"testing"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region cosine-tests
func TestCosine_Identical(t *testing.T) {
	sim, err := Cosine([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosine_Orthogonal(t *testing.T) {
	sim, err := Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosine_Opposite(t *testing.T) {
	sim, err := Cosine([]float32{1, 1}, []float32{-1, -1})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}

func TestCosine_ZeroVector(t *testing.T) {
	sim, err := Cosine([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 0, 0}, []float32{1, 0})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.True(t, fault.IsKind(err, fault.KindInvalidArgument))
}

func TestCosineOrZero_Mismatch(t *testing.T) {
	assert.Equal(t, 0.0, CosineOrZero([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineOrZero(nil, []float32{1, 2}))
}

// #endregion cosine-tests

// #region stats-tests
func TestStats(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(xs), 1e-9)
	assert.InDelta(t, 4.0, Variance(xs), 1e-9)
	assert.InDelta(t, 2.0, StdDev(xs), 1e-9)
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev(nil))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.4, Clamp01(0.4))
	assert.Equal(t, -1.0, Clamp(-3, -1, 1))
	assert.False(t, math.IsNaN(Clamp01(0.5)))
}

// #endregion stats-tests
