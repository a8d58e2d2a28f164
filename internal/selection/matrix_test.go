package selection

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/resonance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region helpers
func deterministicConfig() Config {
	cfg := DefaultConfig()
	cfg.DiversitySampling = false
	return cfg
}

func ri(v float64) resonance.Result {
	return resonance.Result{ResonanceIndex: v}
}

// abCandidates: against user [1,0], A has pattern match 0.9 and B 0.2.
func abCandidates() []field.Intervention {
	return []field.Intervention{
		{ID: "A", PatternVector: []float32{0.9, 0.43589}, LearningWeight: 0.5, FatigueScore: 0},
		{ID: "B", PatternVector: []float32{0.2, 0.9798}, LearningWeight: 0.9, FatigueScore: 5},
	}
}

// #endregion helpers

// #region select-tests
func TestSelect_EmptyCandidates(t *testing.T) {
	m := NewMatrix(DefaultConfig(), nil)
	_, err := m.Select([]float32{1}, ri(0.5), nil)
	require.ErrorIs(t, err, ErrEmptyCandidates)
	assert.True(t, fault.IsKind(err, fault.KindInvalidArgument))
}

func TestSelect_EndToEndFreshPatternBeatsFatiguedPrior(t *testing.T) {
	m := NewMatrix(deterministicConfig(), nil)
	res, err := m.Select([]float32{1, 0}, ri(0.7), abCandidates())
	require.NoError(t, err)

	assert.Equal(t, "A", res.Selected.ID)
	assert.False(t, res.Sampled)
	require.Len(t, res.Ranked, 2)
	assert.InDelta(t, 0.67, res.Ranked[0].TotalScore, 1e-4)
	assert.InDelta(t, 0.4051, res.Ranked[1].TotalScore, 1e-3)
	assert.InDelta(t, 0.9, res.Score.PatternMatch, 1e-4)
}

func TestSelect_DeterministicTiesKeepInputOrder(t *testing.T) {
	m := NewMatrix(deterministicConfig(), nil)
	cands := []field.Intervention{{ID: "first", LearningWeight: 0.5}, {ID: "second", LearningWeight: 0.5}}
	for i := 0; i < 20; i++ {
		res, err := m.Select(nil, ri(0.5), cands)
		require.NoError(t, err)
		assert.Equal(t, "first", res.Selected.ID)
	}
}

func TestSelect_AlwaysReturnsMember(t *testing.T) {
	m := NewMatrix(DefaultConfig(), rand.New(rand.NewPCG(1, 2)))
	cands := []field.Intervention{
		{ID: "a", LearningWeight: 0.1},
		{ID: "b", LearningWeight: 0.4, PatternVector: []float32{1, 0}},
		{ID: "c", LearningWeight: 0.8, FatigueScore: 12},
		{ID: "d", PatternVector: []float32{1, 0, 0}}, // mismatched, scores 0 on pattern
	}
	ids := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	for i := 0; i < 200; i++ {
		res, err := m.Select([]float32{1, 0}, ri(0.5), cands)
		require.NoError(t, err)
		assert.True(t, ids[res.Selected.ID])
		assert.True(t, res.Sampled)
	}
}

func TestSelect_SamplingReproducibleWithSeed(t *testing.T) {
	cands := abCandidates()
	pick := func() []string {
		m := NewMatrix(DefaultConfig(), rand.New(rand.NewPCG(42, 42)))
		var ids []string
		for i := 0; i < 30; i++ {
			res, err := m.Select([]float32{1, 0}, ri(0.7), cands)
			require.NoError(t, err)
			ids = append(ids, res.Selected.ID)
		}
		return ids
	}
	assert.Equal(t, pick(), pick())
}

func TestSelect_SamplingFavoursTopScore(t *testing.T) {
	m := NewMatrix(DefaultConfig(), rand.New(rand.NewPCG(9, 9)))
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		res, err := m.Select([]float32{1, 0}, ri(0.7), abCandidates())
		require.NoError(t, err)
		counts[res.Selected.ID]++
	}
	// softmax at T=0.2 over a 0.265 gap gives A about 79%
	assert.Greater(t, counts["A"], counts["B"])
	assert.Greater(t, counts["B"], 0)
}

func TestSelect_SingleCandidateNotSampled(t *testing.T) {
	m := NewMatrix(DefaultConfig(), nil)
	res, err := m.Select(nil, ri(0.5), []field.Intervention{{ID: "only"}})
	require.NoError(t, err)
	assert.Equal(t, "only", res.Selected.ID)
	assert.False(t, res.Sampled)
}

func TestSoftmax_SumsToOne(t *testing.T) {
	probs, ok := softmax([]float64{0.9, 0.1, -3, 0.5}, 0.2)
	require.True(t, ok)
	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, probs[0], probs[3])
}

func TestSelect_NonPositiveTemperatureKeepsBest(t *testing.T) {
	candidates := []field.Intervention{
		{ID: "worst", PatternVector: []float32{0, 1}, LearningWeight: 0.1},
		{ID: "best", PatternVector: []float32{1, 0}, LearningWeight: 0.9},
		{ID: "mid", PatternVector: []float32{1, 1}, LearningWeight: 0.5},
	}
	for _, temp := range []float64{0, -0.5, math.NaN()} {
		cfg := DefaultConfig()
		cfg.Temperature = temp
		m := NewMatrix(cfg, rand.New(rand.NewPCG(1, 2)))
		for i := 0; i < 200; i++ {
			res, err := m.Select([]float32{1, 0}, ri(0.5), candidates)
			require.NoError(t, err)
			require.Equal(t, "best", res.Selected.ID, "temperature %v", temp)
			assert.False(t, res.Sampled)
		}
	}
}

func TestSoftmax_RejectsDegenerateTemperature(t *testing.T) {
	for _, temp := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, ok := softmax([]float64{0.9, 0.1}, temp)
		assert.False(t, ok, "temperature %v", temp)
	}
}

// #endregion select-tests

// #region config-tests
func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Temperature = 0
	assert.Error(t, bad.Validate())

	bad.DiversitySampling = false
	assert.NoError(t, bad.Validate())

	neg := DefaultConfig()
	neg.FatigueWeight = -1
	assert.Error(t, neg.Validate())
}

// #endregion config-tests

// #region reasoning-tests
func TestReasoning(t *testing.T) {
	iv := field.Intervention{ID: "breath", Metadata: map[string]string{"title": "Box Breathing"}}
	got := Reasoning(iv, FieldScore{PatternMatch: 0.8, ResonanceIndex: 0.3, LearningWeight: 0.75, FatiguePenalty: 1.5})
	assert.Contains(t, got, "Box Breathing")
	assert.Contains(t, got, "strong pattern alignment")
	assert.Contains(t, got, "supporting stabilization")
	assert.Contains(t, got, "previously effective pathway")
	assert.Contains(t, got, "introducing variety to prevent habituation")
	assert.NotContains(t, got, "high resonance state")

	plain := Reasoning(field.Intervention{ID: "x"}, FieldScore{ResonanceIndex: 0.5})
	assert.Contains(t, plain, "balanced fit")
}

// #endregion reasoning-tests
