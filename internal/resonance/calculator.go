// Package resonance computes the Resonance Index: a bounded wellbeing score
// blended from belief coherence, emotion stability and value alignment.
package resonance

import (
	"context"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/vecmath"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// #region calculator
// Calculator produces Resonance Index results. It never fails: every missing
// input degrades to a documented default.
type Calculator struct {
	embedder Embedder
	config   Config
	log      zerolog.Logger
	now      func() time.Time
}

// NewCalculator validates config and creates a Calculator.
// embedder may be nil (value alignment degrades to its default).
func NewCalculator(embedder Embedder, config Config, log zerolog.Logger) (*Calculator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{
		embedder: embedder,
		config:   config,
		log:      log.With().Str("component", "resonance").Logger(),
		now:      time.Now,
	}, nil
}

// Config returns the active weights.
func (c *Calculator) Config() Config {
	return c.config
}

// #endregion calculator

// #region calculate
// Calculate scores state against an optional target belief vector.
func (c *Calculator) Calculate(ctx context.Context, state field.UserState, target []float32) Result {
	comp := Components{
		BeliefCoherence:  c.beliefCoherence(state, target),
		EmotionStability: c.emotionStability(state),
		ValueAlignment:   c.valueAlignment(ctx, state),
	}
	ri := c.config.BeliefWeight*comp.BeliefCoherence +
		c.config.EmotionWeight*comp.EmotionStability +
		c.config.ValueWeight*comp.ValueAlignment
	return Result{
		ResonanceIndex: vecmath.Clamp01(ri),
		Components:     comp,
		Timestamp:      c.now().UTC(),
	}
}

// #endregion calculate

// #region belief
func (c *Calculator) beliefCoherence(state field.UserState, target []float32) float64 {
	if len(target) == 0 || len(state.BeliefVector) == 0 {
		return DefaultBeliefCoherence
	}
	sim, err := vecmath.Cosine(state.BeliefVector, target)
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", state.UserID).
			Int("belief_dims", len(state.BeliefVector)).Int("target_dims", len(target)).
			Msg("belief coherence degraded to default")
		return DefaultBeliefCoherence
	}
	return vecmath.Clamp01(sim)
}

// #endregion belief

// #region emotion
// emotionStability is 1 - stddev over the trailing window, or the current
// reading when history is too short to measure variation.
func (c *Calculator) emotionStability(state field.UserState) float64 {
	h := state.EmotionHistory
	if len(h) < 3 {
		return vecmath.Clamp01(state.EmotionFrequency)
	}
	if w := c.config.EmotionWindow; len(h) > w {
		h = h[len(h)-w:]
	}
	return vecmath.Clamp01(1 - vecmath.StdDev(h))
}

// #endregion emotion

// #region value
// valueAlignment averages cosine(intention, embed(output)) over recent outputs.
// Outputs whose embedding fails or mismatches are dropped.
func (c *Calculator) valueAlignment(ctx context.Context, state field.UserState) float64 {
	if c.embedder == nil || len(state.IntentionVector) == 0 || len(state.RecentOutputs) == 0 {
		return DefaultValueAlignment
	}

	sims := make([]float64, len(state.RecentOutputs))
	ok := make([]bool, len(state.RecentOutputs))

	var g errgroup.Group
	if c.config.MaxEmbedInFlight > 0 {
		g.SetLimit(c.config.MaxEmbedInFlight)
	}
	for i, text := range state.RecentOutputs {
		g.Go(func() error {
			vec, err := c.embedder.Embed(ctx, text)
			if err != nil {
				c.log.Debug().Err(err).Int("output", i).Msg("output embedding dropped")
				return nil
			}
			sim, err := vecmath.Cosine(state.IntentionVector, vec)
			if err != nil {
				c.log.Debug().Err(err).Int("output", i).Msg("output embedding dropped")
				return nil
			}
			sims[i], ok[i] = sim, true
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	var kept []float64
	for i, s := range sims {
		if ok[i] {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		c.log.Warn().Str("user_id", state.UserID).Int("outputs", len(sims)).
			Msg("all output embeddings failed, value alignment degraded to default")
		return DefaultValueAlignment
	}
	return vecmath.Clamp01(vecmath.Mean(kept))
}

// #endregion value
