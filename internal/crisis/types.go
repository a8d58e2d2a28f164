package crisis

import (
	"context"
	"errors"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/retry"
)

// ErrUndetermined means the check could not complete. Callers must treat it as
// "unknown", never as "no crisis".
var ErrUndetermined = &fault.Error{
	Kind:    fault.KindCollaboratorFailure,
	Op:      "detect crisis",
	Message: "crisis state undetermined",
}

// ErrEscalated accompanies ErrUndetermined when repeated failures have been
// handed to human review.
var ErrEscalated = errors.New("crisis check escalated to human review")

// #region severity
// Severity is the crisis band derived from signal points.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity accepts the lower-case severity names.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical:
		return Severity(s), nil
	}
	return "", fault.InvalidArgument("parse severity", "unknown severity %q", s)
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

var severityRank = map[Severity]int{
	SeverityLow: 0, SeverityModerate: 1, SeverityHigh: 2, SeverityCritical: 3,
}

// #endregion severity

// #region signals
// Signals are the five boolean crisis indicators.
type Signals struct {
	RIPlunge         bool `json:"ri_plunge"`
	ProlongedLowRI   bool `json:"prolonged_low_ri"`
	IsolationPattern bool `json:"isolation_pattern"`
	EntropySpike     bool `json:"entropy_spike"`
	HarmIndicators   bool `json:"harm_indicators"`
}

// Triggered lists the names of the signals that are set.
func (s Signals) Triggered() []string {
	var out []string
	for _, w := range signalWeights {
		if w.on(s) {
			out = append(out, w.name)
		}
	}
	return out
}

// #endregion signals

// #region level
// Level is the result of one monitor run.
type Level struct {
	UserID      string    `json:"user_id"`
	Severity    Severity  `json:"severity"`
	Confidence  float64   `json:"confidence"`
	Points      int       `json:"points"`
	Signals     Signals   `json:"signals"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// #endregion level

// #region collaborators
// HistoryStore reads a user's resonance history.
type HistoryStore interface {
	RecentOutcomes(ctx context.Context, userID string, limit int) ([]field.OutcomeRecord, error)
}

// EntropySource supplies the system-instability metric for a user.
type EntropySource interface {
	OverallEntropy(ctx context.Context, userID string) (float64, error)
}

// HarmClassifier detects risk language for a user. No implementation ships
// with this module; with none wired the signal is always false.
type HarmClassifier interface {
	HarmIndicators(ctx context.Context, userID string) (bool, error)
}

// #endregion collaborators

// #region config
// Config holds thresholds, the latency budget and the escalation policy.
type Config struct {
	Timeout               time.Duration `mapstructure:"timeout" yaml:"timeout"`
	HistoryLimit          int           `mapstructure:"history_limit" yaml:"history_limit"`
	Window                time.Duration `mapstructure:"window" yaml:"window"`               // trailing window for low-RI and isolation
	PlungeDelta           float64       `mapstructure:"plunge_delta" yaml:"plunge_delta"`   // latest - previous below -this
	LowRI                 float64       `mapstructure:"low_ri" yaml:"low_ri"`
	ProlongedLowCount     int           `mapstructure:"prolonged_low_count" yaml:"prolonged_low_count"`
	IsolationMinRecords   int           `mapstructure:"isolation_min_records" yaml:"isolation_min_records"`
	EntropyThreshold      float64       `mapstructure:"entropy_threshold" yaml:"entropy_threshold"`
	SuppressLowBelow      float64       `mapstructure:"suppress_low_below" yaml:"suppress_low_below"` // confidence
	EscalateAfterFailures int           `mapstructure:"escalate_after_failures" yaml:"escalate_after_failures"`
	Retry                 retry.Policy  `mapstructure:"retry" yaml:"retry"`
}

// DefaultConfig returns a 2s budget, a 7-day window and escalation after 3 failures.
func DefaultConfig() Config {
	return Config{
		Timeout:               2 * time.Second,
		HistoryLimit:          100,
		Window:                7 * 24 * time.Hour,
		PlungeDelta:           0.3,
		LowRI:                 0.25,
		ProlongedLowCount:     5,
		IsolationMinRecords:   2,
		EntropyThreshold:      0.7,
		SuppressLowBelow:      0.5,
		EscalateAfterFailures: 3,
		Retry: retry.Policy{
			MaxRetries:      1,
			InitialInterval: 20 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
		},
	}
}

// #endregion config
