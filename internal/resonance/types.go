package resonance

import (
	"context"
	"math"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
)

// #region embedder-interface
// Embedder abstracts the embedding collaborator so the calculator can be tested without RPC.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// #endregion embedder-interface

// #region config
// Documented fallbacks used when an input is missing or unusable.
const (
	DefaultBeliefCoherence = 0.7
	DefaultValueAlignment  = 0.6
)

// Config holds the component weights and the emotion window.
type Config struct {
	BeliefWeight     float64 `mapstructure:"belief_weight" yaml:"belief_weight"`
	EmotionWeight    float64 `mapstructure:"emotion_weight" yaml:"emotion_weight"`
	ValueWeight      float64 `mapstructure:"value_weight" yaml:"value_weight"`
	EmotionWindow    int     `mapstructure:"emotion_window" yaml:"emotion_window"`           // trailing points used for stability
	MaxEmbedInFlight int     `mapstructure:"max_embed_in_flight" yaml:"max_embed_in_flight"` // concurrent output embeddings
}

// DefaultConfig returns weights 0.4/0.3/0.3 over a 10-point emotion window.
func DefaultConfig() Config {
	return Config{
		BeliefWeight:     0.4,
		EmotionWeight:    0.3,
		ValueWeight:      0.3,
		EmotionWindow:    10,
		MaxEmbedInFlight: 4,
	}
}

// Validate rejects negative weights and weights summing past 1.
func (c Config) Validate() error {
	if c.BeliefWeight < 0 || c.EmotionWeight < 0 || c.ValueWeight < 0 {
		return fault.InvalidArgument("resonance config", "weights must be non-negative")
	}
	if sum := c.BeliefWeight + c.EmotionWeight + c.ValueWeight; sum > 1+1e-9 || math.IsNaN(sum) {
		return fault.InvalidArgument("resonance config", "weights sum to %.3f, must be <= 1", sum)
	}
	if c.EmotionWindow < 3 {
		return fault.InvalidArgument("resonance config", "emotion window must be at least 3")
	}
	return nil
}

// #endregion config

// #region result
// Components are the unweighted sub-scores, each in [0, 1].
type Components struct {
	BeliefCoherence  float64 `json:"belief_coherence"`
	EmotionStability float64 `json:"emotion_stability"`
	ValueAlignment   float64 `json:"value_alignment"`
}

// Result is one Resonance Index calculation. Treat as immutable.
type Result struct {
	ResonanceIndex float64    `json:"resonance_index"`
	Components     Components `json:"components"`
	Timestamp      time.Time  `json:"timestamp"`
}

// #endregion result
