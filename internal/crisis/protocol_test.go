package crisis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_Bands(t *testing.T) {
	tests := []struct {
		name       string
		signals    Signals
		severity   Severity
		points     int
		confidence float64
	}{
		{"none", Signals{}, SeverityLow, 0, 0},
		{"isolation", Signals{IsolationPattern: true}, SeverityLow, 2, 0.5},
		{"plunge", Signals{RIPlunge: true}, SeverityModerate, 3, 0.7},
		{"plunge+entropy", Signals{RIPlunge: true, EntropySpike: true}, SeverityHigh, 5, 0.65},
		{"harm", Signals{HarmIndicators: true}, SeverityHigh, 5, 0.9},
		{"prolonged+isolation+entropy", Signals{ProlongedLowRI: true, IsolationPattern: true, EntropySpike: true}, SeverityCritical, 8, (0.8 + 0.5 + 0.6) / 3},
		{"all", Signals{true, true, true, true, true}, SeverityCritical, 16, (0.7 + 0.8 + 0.5 + 0.6 + 0.9) / 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sev, conf, pts := Score(tt.signals)
			assert.Equal(t, tt.severity, sev)
			assert.Equal(t, tt.points, pts)
			assert.InDelta(t, tt.confidence, conf, 1e-12)
		})
	}
}

func TestProtocolFor(t *testing.T) {
	crit := ProtocolFor(SeverityCritical)
	assert.True(t, crit.NotifyGuardian)
	assert.True(t, crit.PauseRecommendations)
	assert.Equal(t, ActionDisplayCrisisResources, crit.Actions[0])
	assert.Contains(t, crit.Actions, ActionOfferEmergencyContact)
	assert.Equal(t, "Emergency Services", crit.Resources[0].Name)

	high := ProtocolFor(SeverityHigh)
	assert.True(t, high.NotifyGuardian)
	assert.False(t, high.PauseRecommendations)
	assert.Contains(t, high.Actions, ActionReviewSafetyPlan)
	assert.NotContains(t, high.Actions, ActionOfferEmergencyContact)

	for _, sev := range []Severity{SeverityModerate, SeverityLow} {
		p := ProtocolFor(sev)
		assert.False(t, p.NotifyGuardian, sev)
		assert.False(t, p.PauseRecommendations, sev)
		assert.NotContains(t, p.Actions, ActionNotifyGuardian)
	}

	assert.Equal(t, ProtocolFor(SeverityHigh), ProtocolFor(SeverityHigh), "deterministic")
}

func TestSafetyResources(t *testing.T) {
	assert.Len(t, SafetyResources(SeverityCritical), 3)
	assert.Len(t, SafetyResources(SeverityHigh), 2)
	assert.Len(t, SafetyResources(SeverityLow), 1)
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)

	_, err = ParseSeverity("apocalyptic")
	assert.Error(t, err)
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityModerate.AtLeast(SeverityHigh))
}

func TestBuildSafetyPlan(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	level := &Level{Severity: SeverityHigh, Signals: Signals{RIPlunge: true, ProlongedLowRI: true}}

	plan := BuildSafetyPlan("u", level, []string{"Box Breathing"}, now)
	assert.Equal(t, SeverityHigh, plan.Severity)
	assert.Len(t, plan.WarningSigns, 2)
	assert.Equal(t, []string{"Box Breathing"}, plan.CopingStrategies)
	assert.Equal(t, ProtocolFor(SeverityHigh).Actions, plan.Actions)
	assert.Equal(t, now, plan.GeneratedAt)

	calm := BuildSafetyPlan("u", nil, nil, now)
	assert.Equal(t, SeverityLow, calm.Severity)
	assert.Empty(t, calm.WarningSigns)
	assert.NotEmpty(t, calm.CopingStrategies)
}
