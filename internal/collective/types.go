package collective

import (
	"context"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
)

// #region store-interface
// Store is the persistence the aggregator reads and the single-row update it writes.
type Store interface {
	RecentOutcomes(ctx context.Context, userID string, limit int) ([]field.OutcomeRecord, error)
	OutcomesInBand(ctx context.Context, lo, hi float64, since time.Time, excludeUser string) ([]field.OutcomeRecord, error)
	ActiveOutcomesSince(ctx context.Context, since time.Time, excludeUser string) ([]field.OutcomeRecord, error)
	FeedbackSince(ctx context.Context, interventionID string, since time.Time) ([]field.FeedbackRecord, error)
	FeedbackByUsersSince(ctx context.Context, userIDs []string, since time.Time) ([]field.FeedbackRecord, error)
	UserFeedbackSince(ctx context.Context, userID string, since time.Time) ([]field.FeedbackRecord, error)
	InterventionIDsWithFeedbackSince(ctx context.Context, since time.Time) ([]string, error)
	UpdateIntervention(ctx context.Context, id string, mutate func(field.Intervention) field.Intervention) (field.Intervention, error)
}

// #endregion store-interface

// #region config
// KAnonymityFloor is the smallest cohort ever aggregated. Config values below it are raised.
const KAnonymityFloor = 5

// Config holds cohort, privacy and learning-rate parameters.
type Config struct {
	MinCohortSize       int           `mapstructure:"min_cohort_size" yaml:"min_cohort_size"`
	RIBand              float64       `mapstructure:"ri_band" yaml:"ri_band"`                           // +/- around the requester's RI
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" yaml:"similarity_threshold"` // branch similarity floor
	Window              time.Duration `mapstructure:"window" yaml:"window"`                             // trailing feedback window
	Epsilon             float64       `mapstructure:"epsilon" yaml:"epsilon"`                           // Laplace privacy budget
	FullConfidenceN     int           `mapstructure:"full_confidence_n" yaml:"full_confidence_n"`       // samples for full influence
	MaxInfluence        float64       `mapstructure:"max_influence" yaml:"max_influence"`
	WeightStep          float64       `mapstructure:"weight_step" yaml:"weight_step"` // target = w + avg*step
}

// DefaultConfig returns k=5, band 0.15, threshold 0.7, 30-day window, epsilon 1.
func DefaultConfig() Config {
	return Config{
		MinCohortSize:       KAnonymityFloor,
		RIBand:              0.15,
		SimilarityThreshold: 0.7,
		Window:              30 * 24 * time.Hour,
		Epsilon:             1.0,
		FullConfidenceN:     50,
		MaxInfluence:        0.3,
		WeightStep:          0.1,
	}
}

// normalized enforces the k-anonymity floor and fills unusable values from defaults.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MinCohortSize < KAnonymityFloor {
		c.MinCohortSize = KAnonymityFloor
	}
	if c.RIBand <= 0 {
		c.RIBand = d.RIBand
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.Epsilon <= 0 {
		c.Epsilon = d.Epsilon
	}
	if c.FullConfidenceN <= 0 {
		c.FullConfidenceN = d.FullConfidenceN
	}
	if c.MaxInfluence <= 0 || c.MaxInfluence > 1 {
		c.MaxInfluence = d.MaxInfluence
	}
	if c.WeightStep <= 0 {
		c.WeightStep = d.WeightStep
	}
	return c
}

// #endregion config

// #region insight
// Insight types.
const (
	InsightSimilarCohort = "similar_cohort"
	InsightSynchronicity = "synchronicity"
)

// Insight is a privacy-protected aggregate about one intervention. AvgFulfillment
// and UsageCount always carry Laplace noise.
type Insight struct {
	InterventionID string  `json:"intervention_id"`
	Type           string  `json:"type"`
	AvgFulfillment float64 `json:"avg_fulfillment"`
	UsageCount     int     `json:"usage_count"`
	Confidence     float64 `json:"confidence"`
}

// #endregion insight

// #region weight-update
// WeightUpdate reports the outcome of one collective weight recompute.
type WeightUpdate struct {
	InterventionID string  `json:"intervention_id"`
	Applied        bool    `json:"applied"`
	Reason         string  `json:"reason,omitempty"`
	CohortSize     int     `json:"cohort_size"` // distinct users in window
	SampleSize     int     `json:"sample_size"`
	Influence      float64 `json:"influence"`
	OldWeight      float64 `json:"old_weight"`
	NewWeight      float64 `json:"new_weight"`
}

// #endregion weight-update

// #region cohort-member
// CohortMember is another user whose recent state resembles the requester's.
type CohortMember struct {
	UserID     string
	Similarity float64 // best branch similarity over the user's matching rows
}

// #endregion cohort-member
