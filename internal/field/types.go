// Package field defines the records shared by the scoring, learning and
// safety components: user state, interventions, outcomes and feedback.
package field

import "time"

// #region user-state
// UserState is reconstructed per request and never persisted as one object.
type UserState struct {
	UserID           string
	BeliefVector     []float32
	EmotionFrequency float64   // current reading in [0, 1]
	EmotionHistory   []float64 // oldest first
	IntentionVector  []float32
	RecentOutputs    []string
}

// #endregion user-state

// #region intervention
// Intervention is a candidate probability field: a piece of content, practice
// or pathway with a learned effectiveness prior.
type Intervention struct {
	ID             string
	PatternVector  []float32 // nil scores zero on pattern match
	LearningWeight float64   // collective prior, changed only by the aggregator
	FatigueScore   float64   // >= 0, grows on selection and decays otherwise
	Metadata       map[string]string
	UpdatedAt      time.Time
}

// Title returns the human-readable name carried in metadata, falling back to the id.
func (i Intervention) Title() string {
	if t := i.Metadata["title"]; t != "" {
		return t
	}
	return i.ID
}

// #endregion intervention

// #region outcome
// OutcomeRecord is one row of a user's resonance history.
type OutcomeRecord struct {
	ID               int64
	UserID           string
	ResonanceIndex   float64
	BeliefCoherence  float64
	EmotionStability float64
	ValueAlignment   float64
	BeliefProfileID  string
	EmotionLabel     string
	InterventionID   string
	CreatedAt        time.Time
}

// #endregion outcome

// #region feedback
// FeedbackRecord is an append-only fulfillment rating of one intervention by one user.
type FeedbackRecord struct {
	ID               int64
	UserID           string
	InterventionID   string
	FulfillmentScore float64 // [-1, 1]
	CreatedAt        time.Time
}

// MinFulfillment and MaxFulfillment bound FeedbackRecord.FulfillmentScore.
const (
	MinFulfillment = -1.0
	MaxFulfillment = 1.0
)

// #endregion feedback
