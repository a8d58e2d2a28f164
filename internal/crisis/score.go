package crisis

// #region weights
type signalWeight struct {
	name       string
	points     int
	confidence float64
	on         func(Signals) bool
}

// Points and evidentiary weight per signal.
var signalWeights = []signalWeight{
	{"ri_plunge", 3, 0.7, func(s Signals) bool { return s.RIPlunge }},
	{"prolonged_low_ri", 4, 0.8, func(s Signals) bool { return s.ProlongedLowRI }},
	{"harm_indicators", 5, 0.9, func(s Signals) bool { return s.HarmIndicators }},
	{"isolation_pattern", 2, 0.5, func(s Signals) bool { return s.IsolationPattern }},
	{"entropy_spike", 2, 0.6, func(s Signals) bool { return s.EntropySpike }},
}

// #endregion weights

// #region score
// Score maps signals to points, a severity band and a confidence equal to the
// mean evidentiary weight of the triggered signals.
func Score(s Signals) (Severity, float64, int) {
	points := 0
	var weightSum float64
	triggered := 0
	for _, w := range signalWeights {
		if !w.on(s) {
			continue
		}
		points += w.points
		weightSum += w.confidence
		triggered++
	}
	confidence := 0.0
	if triggered > 0 {
		confidence = weightSum / float64(triggered)
	}
	return severityFor(points), confidence, points
}

func severityFor(points int) Severity {
	switch {
	case points >= 8:
		return SeverityCritical
	case points >= 5:
		return SeverityHigh
	case points >= 3:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// #endregion score
