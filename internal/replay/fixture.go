package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
)

// #region fixture-types
// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Interventions   []FixtureIntervention   `json:"interventions"`
	Turns           []FixtureTurn           `json:"turns"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig overrides selection parameters on top of DefaultConfig.
type FixtureConfig struct {
	Seed              uint64  `json:"seed"`
	DiversitySampling bool    `json:"diversity_sampling"`
	Temperature       float64 `json:"temperature,omitempty"`
	DecayRate         float64 `json:"decay_rate,omitempty"`
}

// FixtureIntervention is the JSON form of field.Intervention.
type FixtureIntervention struct {
	ID             string            `json:"id"`
	Title          string            `json:"title,omitempty"`
	PatternVector  []float32         `json:"pattern_vector"`
	LearningWeight float64           `json:"learning_weight"`
	FatigueScore   float64           `json:"fatigue_score,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// FixtureTurn is the JSON form of Turn.
type FixtureTurn struct {
	TurnID           string    `json:"turn_id"`
	UserID           string    `json:"user_id"`
	At               time.Time `json:"at"`
	BeliefVector     []float32 `json:"belief_vector,omitempty"`
	Target           []float32 `json:"target,omitempty"`
	EmotionFrequency float64   `json:"emotion_frequency"`
	EmotionHistory   []float64 `json:"emotion_history,omitempty"`
	UserVector       []float32 `json:"user_vector"`
	Entropy          float64   `json:"entropy,omitempty"`
	HarmIndicators   bool      `json:"harm_indicators,omitempty"`
	Fulfillment      *float64  `json:"fulfillment,omitempty"`
	Aggregate        bool      `json:"aggregate,omitempty"`
}

// FixtureExpectedResult captures the expected action and pick per turn.
type FixtureExpectedResult struct {
	TurnID     string `json:"turn_id"`
	Action     string `json:"action"`
	SelectedID string `json:"selected_id,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToConfig applies the fixture overrides to DefaultConfig.
func (fc FixtureConfig) ToConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = fc.Seed
	cfg.Selection.DiversitySampling = fc.DiversitySampling
	if fc.Temperature > 0 {
		cfg.Selection.Temperature = fc.Temperature
	}
	if fc.DecayRate > 0 {
		cfg.Selection.DecayRate = fc.DecayRate
	}
	return cfg
}

// ToIntervention converts a FixtureIntervention to a domain Intervention.
func (fi FixtureIntervention) ToIntervention() field.Intervention {
	meta := make(map[string]string, len(fi.Metadata)+1)
	for k, v := range fi.Metadata {
		meta[k] = v
	}
	if fi.Title != "" {
		meta["title"] = fi.Title
	}
	return field.Intervention{
		ID:             fi.ID,
		PatternVector:  fi.PatternVector,
		LearningWeight: fi.LearningWeight,
		FatigueScore:   fi.FatigueScore,
		Metadata:       meta,
	}
}

// ToTurn converts a FixtureTurn to a domain Turn.
func (ft FixtureTurn) ToTurn() Turn {
	return Turn{
		TurnID: ft.TurnID,
		At:     ft.At,
		State: field.UserState{
			UserID:           ft.UserID,
			BeliefVector:     ft.BeliefVector,
			EmotionFrequency: ft.EmotionFrequency,
			EmotionHistory:   ft.EmotionHistory,
		},
		Target:         ft.Target,
		UserVector:     ft.UserVector,
		Entropy:        ft.Entropy,
		HarmIndicators: ft.HarmIndicators,
		Fulfillment:    ft.Fulfillment,
		Aggregate:      ft.Aggregate,
	}
}

// Inputs converts the fixture to the arguments Replay takes.
func (f *Fixture) Inputs() ([]field.Intervention, []Turn, Config) {
	pool := make([]field.Intervention, len(f.Interventions))
	for i, fi := range f.Interventions {
		pool[i] = fi.ToIntervention()
	}
	turns := make([]Turn, len(f.Turns))
	for i, ft := range f.Turns {
		turns[i] = ft.ToTurn()
	}
	return pool, turns, f.Config.ToConfig()
}

// #endregion fixture-loader
