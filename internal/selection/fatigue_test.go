package selection

import (
	"testing"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateFatigue_ConvergesTowardTen(t *testing.T) {
	f := 0.0
	for i := 0; i < 100; i++ {
		next := UpdateFatigue(f)
		assert.Greater(t, next, f)
		assert.Less(t, next, 10.0)
		f = next
	}
	assert.InDelta(t, 10.0, f, 1e-3)
}

func TestDecayFatigue(t *testing.T) {
	assert.InDelta(t, 0.4, DecayFatigue(0.5, 0.1), 1e-12)
	assert.Equal(t, 0.0, DecayFatigue(0.05, 0.1))
	assert.Equal(t, 0.0, DecayFatigue(0, 0.1))
}

func TestFatigue_RepeatedSelectionLowersScore(t *testing.T) {
	m := NewMatrix(deterministicConfig(), nil)
	cand := field.Intervention{ID: "x", PatternVector: []float32{1, 0}, LearningWeight: 0.5}

	prevScore := m.Score([]float32{1, 0}, 0.6, cand).TotalScore
	prevFatigue := cand.FatigueScore
	for i := 0; i < 5; i++ {
		res, err := m.Select([]float32{1, 0}, ri(0.6), []field.Intervention{cand})
		require.NoError(t, err)
		cand = ApplySelection([]field.Intervention{res.Selected}, res.Selected.ID, 0.1)[0]

		score := m.Score([]float32{1, 0}, 0.6, cand).TotalScore
		assert.Greater(t, cand.FatigueScore, prevFatigue)
		assert.Less(t, score, prevScore)
		prevScore, prevFatigue = score, cand.FatigueScore
	}
}

func TestApplySelection(t *testing.T) {
	in := []field.Intervention{{ID: "a", FatigueScore: 2}, {ID: "b", FatigueScore: 2}, {ID: "c"}}
	out := ApplySelection(in, "b", 0.5)

	assert.InDelta(t, 1.5, out[0].FatigueScore, 1e-12)
	assert.InDelta(t, 2.8, out[1].FatigueScore, 1e-12)
	assert.Equal(t, 0.0, out[2].FatigueScore)
	assert.Equal(t, 2.0, in[1].FatigueScore, "input must not change")
}
