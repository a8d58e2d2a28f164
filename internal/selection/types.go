package selection

import (
	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
)

// ErrEmptyCandidates is returned when Select is given nothing to choose from.
var ErrEmptyCandidates = fault.InvalidArgument("select", "empty candidate set")

// #region config
// Config holds the score weights and the sampling policy.
// The weights are independent of the resonance component weights.
type Config struct {
	PatternWeight     float64 `mapstructure:"pattern_weight" yaml:"pattern_weight"`         // alpha
	ResonanceWeight   float64 `mapstructure:"resonance_weight" yaml:"resonance_weight"`     // beta
	LearningWeight    float64 `mapstructure:"learning_weight" yaml:"learning_weight"`       // gamma
	FatigueWeight     float64 `mapstructure:"fatigue_weight" yaml:"fatigue_weight"`         // delta
	DiversitySampling bool    `mapstructure:"diversity_sampling" yaml:"diversity_sampling"` // softmax pick instead of argmax
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	DecayRate         float64 `mapstructure:"decay_rate" yaml:"decay_rate"` // fatigue decay for non-selected candidates
}

// DefaultConfig returns alpha=0.4 beta=0.3 gamma=0.2 delta=0.1 with sampling at T=0.2.
func DefaultConfig() Config {
	return Config{
		PatternWeight:     0.4,
		ResonanceWeight:   0.3,
		LearningWeight:    0.2,
		FatigueWeight:     0.1,
		DiversitySampling: true,
		Temperature:       0.2,
		DecayRate:         0.1,
	}
}

// Validate rejects negative weights and a non-positive sampling temperature.
func (c Config) Validate() error {
	if c.PatternWeight < 0 || c.ResonanceWeight < 0 || c.LearningWeight < 0 || c.FatigueWeight < 0 {
		return fault.InvalidArgument("selection config", "weights must be non-negative")
	}
	if c.DiversitySampling && c.Temperature <= 0 {
		return fault.InvalidArgument("selection config", "temperature must be positive when sampling")
	}
	if c.DecayRate < 0 {
		return fault.InvalidArgument("selection config", "decay rate must be non-negative")
	}
	return nil
}

// #endregion config

// #region field-score
// FieldScore holds the raw components of one candidate's score for one selection.
// Never persisted.
type FieldScore struct {
	InterventionID string  `json:"intervention_id"`
	PatternMatch   float64 `json:"pattern_match"`
	ResonanceIndex float64 `json:"resonance_index"`
	LearningWeight float64 `json:"learning_weight"`
	FatiguePenalty float64 `json:"fatigue_penalty"`
	TotalScore     float64 `json:"total_score"`
}

// #endregion field-score

// #region result
// Result is the outcome of one selection.
type Result struct {
	Selected  field.Intervention `json:"selected"`
	Score     FieldScore         `json:"score"`
	Ranked    []FieldScore       `json:"ranked"` // descending by TotalScore
	Sampled   bool               `json:"sampled"`
	Reasoning string             `json:"reasoning"`
}

// #endregion result
