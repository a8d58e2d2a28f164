// Package selection scores candidate interventions and picks one, trading a
// little optimality for variety through softmax sampling.
package selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/resonance"
	"github.com/SacredShifter/Navigator-sub000/internal/vecmath"
)

// #region matrix
// Matrix scores and selects interventions. Scoring is pure; the only state is
// the random source used for sampling.
type Matrix struct {
	config Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMatrix creates a Matrix. rng may be nil, in which case a time-seeded
// source is used; pass a seeded source for reproducible sampling.
func NewMatrix(config Config, rng *rand.Rand) *Matrix {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Matrix{config: config, rng: rng}
}

// Config returns the active configuration.
func (m *Matrix) Config() Config {
	return m.config
}

// #endregion matrix

// #region score
// Score computes one candidate's FieldScore against a user-state vector and RI.
func (m *Matrix) Score(userVector []float32, ri float64, c field.Intervention) FieldScore {
	pattern := 0.0
	if len(c.PatternVector) > 0 {
		pattern = vecmath.CosineOrZero(userVector, c.PatternVector)
	}
	penalty := FatiguePenalty(c.FatigueScore)
	total := m.config.PatternWeight*pattern +
		m.config.ResonanceWeight*ri +
		m.config.LearningWeight*c.LearningWeight -
		m.config.FatigueWeight*penalty
	return FieldScore{
		InterventionID: c.ID,
		PatternMatch:   pattern,
		ResonanceIndex: ri,
		LearningWeight: c.LearningWeight,
		FatiguePenalty: penalty,
		TotalScore:     total,
	}
}

// FatiguePenalty is exp(fatigue/10) - 1: super-linear in recent use.
func FatiguePenalty(fatigue float64) float64 {
	return math.Exp(fatigue/10) - 1
}

// #endregion score

// #region select
// Select scores every candidate and picks one. It returns ErrEmptyCandidates
// for an empty slice; every other input degrades safely.
func (m *Matrix) Select(userVector []float32, res resonance.Result, candidates []field.Intervention) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, ErrEmptyCandidates
	}

	type scored struct {
		idx   int
		score FieldScore
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{idx: i, score: m.Score(userVector, res.ResonanceIndex, c)}
	}
	// stable: equal scores keep input order
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score.TotalScore > ranked[j].score.TotalScore
	})

	pick := 0
	sampled := false
	if m.config.DiversitySampling && len(ranked) > 1 {
		scores := make([]float64, len(ranked))
		for i, r := range ranked {
			scores[i] = r.score.TotalScore
		}
		// a degenerate temperature keeps the argmax
		if probs, ok := softmax(scores, m.config.Temperature); ok {
			pick = m.sample(probs)
			sampled = true
		}
	}

	out := Result{
		Selected: candidates[ranked[pick].idx],
		Score:    ranked[pick].score,
		Ranked:   make([]FieldScore, len(ranked)),
		Sampled:  sampled,
	}
	for i, r := range ranked {
		out.Ranked[i] = r.score
	}
	out.Reasoning = Reasoning(out.Selected, out.Score)
	return out, nil
}

// softmax converts scores to probabilities at temperature t. It reports false
// when t is not a positive finite number or the distribution is not finite.
func softmax(scores []float64, t float64) ([]float64, bool) {
	if !(t > 0) || math.IsInf(t, 1) {
		return nil, false
	}
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp((s - maxScore) / t)
		sum += probs[i]
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, false
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, true
}

// sample walks the cumulative distribution with one uniform draw.
func (m *Matrix) sample(probs []float64) int {
	m.mu.Lock()
	u := m.rng.Float64()
	m.mu.Unlock()

	var cum float64
	for i, p := range probs {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(probs) - 1 // rounding left u just above the final sum
}

// #endregion select

// #region reasoning
// Reasoning explains which score components drove the pick. Advisory only.
func Reasoning(iv field.Intervention, s FieldScore) string {
	var reasons []string
	if s.PatternMatch > 0.7 {
		reasons = append(reasons, "strong pattern alignment")
	}
	if s.ResonanceIndex > 0.75 {
		reasons = append(reasons, "high resonance state")
	}
	if s.ResonanceIndex < 0.4 {
		reasons = append(reasons, "supporting stabilization")
	}
	if s.LearningWeight > 0.7 {
		reasons = append(reasons, "previously effective pathway")
	}
	if s.FatiguePenalty > 1.0 {
		reasons = append(reasons, "introducing variety to prevent habituation")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "balanced fit across signals")
	}
	return fmt.Sprintf("Selected %q: %s", iv.Title(), strings.Join(reasons, ", "))
}

// #endregion reasoning
