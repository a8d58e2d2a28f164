// Package metrics exposes Prometheus instruments for the decision loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "navigator"

// #region metrics
// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	ResonanceIndex      prometheus.Histogram
	Selections          *prometheus.CounterVec // by sampled
	FeedbackRecorded    prometheus.Counter
	WeightUpdates       *prometheus.CounterVec // by result
	CrisisLevels        *prometheus.CounterVec // by severity
	CrisisCheckFailures prometheus.Counter
	CrisisEscalations   prometheus.Counter
	SchedulerRuns       *prometheus.CounterVec // by result
}

// New registers all instruments on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		ResonanceIndex: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resonance_index",
			Help:      "Distribution of calculated resonance indices.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		Selections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Interventions selected, by whether the pick was sampled.",
		}, []string{"sampled"}),
		FeedbackRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_recorded_total",
			Help:      "Fulfillment ratings recorded.",
		}),
		WeightUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_updates_total",
			Help:      "Collective weight recomputes, by result (applied, skipped, failed).",
		}, []string{"result"}),
		CrisisLevels: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crisis_levels_total",
			Help:      "Crisis levels reported, by severity.",
		}, []string{"severity"}),
		CrisisCheckFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crisis_check_failures_total",
			Help:      "Crisis checks that could not be determined.",
		}),
		CrisisEscalations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crisis_escalations_total",
			Help:      "Repeated crisis check failures handed to human review.",
		}),
		SchedulerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Scheduled weight recompute runs, by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// #endregion metrics

// #region recorders
// ObserveResonance records one resonance index.
func (m *Metrics) ObserveResonance(ri float64) {
	if m == nil {
		return
	}
	m.ResonanceIndex.Observe(ri)
}

// IncSelection counts one selection.
func (m *Metrics) IncSelection(sampled bool) {
	if m == nil {
		return
	}
	label := "false"
	if sampled {
		label = "true"
	}
	m.Selections.WithLabelValues(label).Inc()
}

// IncFeedback counts one feedback row.
func (m *Metrics) IncFeedback() {
	if m == nil {
		return
	}
	m.FeedbackRecorded.Inc()
}

// IncWeightUpdate counts a recompute result: "applied", "skipped" or "failed".
func (m *Metrics) IncWeightUpdate(result string) {
	if m == nil {
		return
	}
	m.WeightUpdates.WithLabelValues(result).Inc()
}

// IncCrisisLevel counts a reported level.
func (m *Metrics) IncCrisisLevel(severity string) {
	if m == nil {
		return
	}
	m.CrisisLevels.WithLabelValues(severity).Inc()
}

// IncCrisisFailure counts an undetermined check.
func (m *Metrics) IncCrisisFailure() {
	if m == nil {
		return
	}
	m.CrisisCheckFailures.Inc()
}

// IncCrisisEscalation counts an escalation to human review.
func (m *Metrics) IncCrisisEscalation() {
	if m == nil {
		return
	}
	m.CrisisEscalations.Inc()
}

// IncSchedulerRun counts a scheduled run by result: ok, partial or failed.
func (m *Metrics) IncSchedulerRun(result string) {
	if m == nil {
		return
	}
	m.SchedulerRuns.WithLabelValues(result).Inc()
}

// #endregion recorders
