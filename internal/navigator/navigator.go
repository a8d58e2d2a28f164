// Package navigator wires the resonance, selection, collective and crisis
// components to persistence, the event bus, metrics and the audit log.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/bus"
	"github.com/SacredShifter/Navigator-sub000/internal/collective"
	"github.com/SacredShifter/Navigator-sub000/internal/crisis"
	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/logging"
	"github.com/SacredShifter/Navigator-sub000/internal/metrics"
	"github.com/SacredShifter/Navigator-sub000/internal/resonance"
	"github.com/SacredShifter/Navigator-sub000/internal/selection"
	"github.com/SacredShifter/Navigator-sub000/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// #region navigator-struct
// Navigator is the top-level coordinator for one decision loop.
type Navigator struct {
	store      *store.Store
	calculator *resonance.Calculator
	matrix     *selection.Matrix
	aggregator *collective.Aggregator
	monitor    *crisis.Monitor
	publisher  bus.Publisher
	metrics    *metrics.Metrics // may be nil
	log        zerolog.Logger
	now        func() time.Time

	closers []func() error
}

// Deps are the components a Navigator coordinates. Publisher and Metrics are optional.
type Deps struct {
	Store      *store.Store
	Calculator *resonance.Calculator
	Matrix     *selection.Matrix
	Aggregator *collective.Aggregator
	Monitor    *crisis.Monitor
	Publisher  bus.Publisher
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// New creates a Navigator from already-built components.
func New(d Deps) (*Navigator, error) {
	if d.Store == nil || d.Calculator == nil || d.Matrix == nil || d.Aggregator == nil || d.Monitor == nil {
		return nil, fmt.Errorf("navigator: store, calculator, matrix, aggregator and monitor are required")
	}
	if d.Publisher == nil {
		d.Publisher = bus.Nop{}
	}
	return &Navigator{
		store:      d.Store,
		calculator: d.Calculator,
		matrix:     d.Matrix,
		aggregator: d.Aggregator,
		monitor:    d.Monitor,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		log:        logging.Component(d.Logger, "navigator"),
		now:        time.Now,
	}, nil
}

// Store exposes the backing store for inspection commands.
func (n *Navigator) Store() *store.Store {
	return n.store
}

// Metrics returns the instruments the navigator records to, or nil.
func (n *Navigator) Metrics() *metrics.Metrics {
	return n.metrics
}

// Close waits for pending escalation publishes, then releases the store, bus
// and embedding connections.
func (n *Navigator) Close() error {
	n.monitor.Wait()
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// #endregion navigator-struct

// #region resonance
// CalculateResonance scores a reading and appends it to the user's history.
// It always returns a usable result; a failed history write is logged.
func (n *Navigator) CalculateResonance(ctx context.Context, req ResonanceRequest) resonance.Result {
	res := n.calculator.Calculate(ctx, req.State, req.Target)
	n.metrics.ObserveResonance(res.ResonanceIndex)

	_, err := n.store.AppendOutcome(ctx, field.OutcomeRecord{
		UserID:           req.State.UserID,
		ResonanceIndex:   res.ResonanceIndex,
		BeliefCoherence:  res.Components.BeliefCoherence,
		EmotionStability: res.Components.EmotionStability,
		ValueAlignment:   res.Components.ValueAlignment,
		BeliefProfileID:  req.BeliefProfileID,
		EmotionLabel:     req.EmotionLabel,
		InterventionID:   req.InterventionID,
		CreatedAt:        res.Timestamp,
	})
	if err != nil {
		n.log.Error().Err(err).Str("user_id", req.State.UserID).Msg("resonance history not persisted")
	}
	n.audit(ctx, logging.EventResonanceCalculated, req.State.UserID, "", res)
	return res
}

// #endregion resonance

// #region select
// SelectIntervention runs the crisis check, scores the candidates and applies
// fatigue to every candidate row. A critical protocol returns
// ErrRecommendationsPaused. An undetermined crisis check does not block
// selection but is flagged on the returned Selection.
func (n *Navigator) SelectIntervention(ctx context.Context, req SelectRequest) (Selection, error) {
	var out Selection
	check, err := n.DetectCrisis(ctx, req.UserID)
	if err != nil {
		n.log.Warn().Err(err).Str("user_id", req.UserID).Msg("selecting without a determined crisis state")
		out.CrisisUndetermined = true
		out.CrisisErr = err
	} else if check.Protocol != nil && check.Protocol.PauseRecommendations {
		return Selection{Crisis: check}, fmt.Errorf("%w: severity %s", ErrRecommendationsPaused, check.Level.Severity)
	}
	out.Crisis = check

	candidates, err := n.candidates(ctx, req.CandidateIDs)
	if err != nil {
		return Selection{}, err
	}
	result, err := n.matrix.Select(req.UserVector, req.Resonance, candidates)
	if err != nil {
		return Selection{}, err
	}
	out.Result = result

	// one row at a time; a lost update only softens fatigue
	decay := n.matrix.Config().DecayRate
	for _, c := range candidates {
		mutate := selection.FatigueMutation(c.ID == result.Selected.ID, decay)
		if _, err := n.store.UpdateIntervention(ctx, c.ID, mutate); err != nil {
			n.log.Warn().Err(err).Str("intervention_id", c.ID).Msg("fatigue update failed")
		}
	}

	n.metrics.IncSelection(result.Sampled)
	n.audit(ctx, logging.EventSelectionMade, req.UserID, result.Selected.ID, result.Score)
	n.publish(ctx, bus.NewEvent(bus.TypeSelectionMade, req.UserID, map[string]interface{}{
		"intervention_id": result.Selected.ID,
		"total_score":     result.Score.TotalScore,
		"sampled":         result.Sampled,
		"crisis_checked":  !out.CrisisUndetermined,
	}))
	return out, nil
}

func (n *Navigator) candidates(ctx context.Context, ids []string) ([]field.Intervention, error) {
	all, err := n.store.ListInterventions(ctx)
	if err != nil {
		return nil, fault.Collaborator("list interventions", err)
	}
	if len(ids) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []field.Intervention
	for _, iv := range all {
		if want[iv.ID] {
			out = append(out, iv)
		}
	}
	return out, nil
}

// #endregion select

// #region feedback
// RecordFeedback appends a fulfillment rating in [-1, 1].
func (n *Navigator) RecordFeedback(ctx context.Context, userID, interventionID string, score float64) (field.FeedbackRecord, error) {
	if userID == "" {
		return field.FeedbackRecord{}, fault.InvalidArgument("record feedback", "empty user id")
	}
	if math.IsNaN(score) || score < field.MinFulfillment || score > field.MaxFulfillment {
		return field.FeedbackRecord{}, fault.InvalidArgument("record feedback", "fulfillment score %v outside [-1, 1]", score)
	}
	if _, err := n.store.GetIntervention(ctx, interventionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return field.FeedbackRecord{}, fault.InvalidArgument("record feedback", "unknown intervention %q", interventionID)
		}
		return field.FeedbackRecord{}, fault.Collaborator("record feedback", err)
	}
	rec, err := n.store.AppendFeedback(ctx, field.FeedbackRecord{
		UserID:           userID,
		InterventionID:   interventionID,
		FulfillmentScore: score,
	})
	if err != nil {
		return field.FeedbackRecord{}, fault.Collaborator("record feedback", err)
	}
	n.metrics.IncFeedback()
	n.audit(ctx, logging.EventFeedbackRecorded, userID, interventionID, map[string]float64{"fulfillment_score": score})
	return rec, nil
}

// #endregion feedback

// #region collective
// CollectiveInsights returns noised insights from users in a similar state.
func (n *Navigator) CollectiveInsights(ctx context.Context, userID string, limit int) ([]collective.Insight, error) {
	return n.aggregator.Insights(ctx, userID, limit)
}

// Synchronicity returns noised insights from users active in the same window.
func (n *Navigator) Synchronicity(ctx context.Context, userID string, window time.Duration, limit int) ([]collective.Insight, error) {
	return n.aggregator.Synchronicity(ctx, userID, window, limit)
}

// UpdateCollectiveWeights recomputes one intervention's learning weight.
func (n *Navigator) UpdateCollectiveWeights(ctx context.Context, interventionID string) (collective.WeightUpdate, error) {
	upd, err := n.aggregator.UpdateWeights(ctx, interventionID)
	if err != nil {
		n.metrics.IncWeightUpdate("failed")
		return upd, err
	}
	n.recordWeightUpdate(ctx, upd)
	return upd, nil
}

// UpdateAllWeights recomputes every intervention with recent feedback. It
// returns the updates that completed and the number that failed.
func (n *Navigator) UpdateAllWeights(ctx context.Context) ([]collective.WeightUpdate, int, error) {
	updates, err := n.aggregator.UpdateAll(ctx)
	for _, upd := range updates {
		n.recordWeightUpdate(ctx, upd)
	}
	failed := 0
	if err != nil {
		failed = 1
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			failed = len(joined.Unwrap())
		}
		for i := 0; i < failed; i++ {
			n.metrics.IncWeightUpdate("failed")
		}
	}
	return updates, failed, err
}

func (n *Navigator) recordWeightUpdate(ctx context.Context, upd collective.WeightUpdate) {
	if !upd.Applied {
		n.metrics.IncWeightUpdate("skipped")
		n.audit(ctx, logging.EventWeightsSkipped, "", upd.InterventionID, upd)
		return
	}
	n.metrics.IncWeightUpdate("applied")
	n.audit(ctx, logging.EventWeightsUpdated, "", upd.InterventionID, upd)
	n.publish(ctx, bus.NewEvent(bus.TypeWeightsUpdated, "", upd))
}

// PersonalizedLearningRate scales baseRate by the user's own feedback history.
func (n *Navigator) PersonalizedLearningRate(ctx context.Context, userID string, baseRate float64) (float64, error) {
	return n.aggregator.PersonalizedLearningRate(ctx, userID, baseRate)
}

// #endregion collective

// #region crisis
// DetectCrisis runs the crisis monitor and records the outcome. An error
// wrapping crisis.ErrUndetermined means the state is unknown, not safe.
func (n *Navigator) DetectCrisis(ctx context.Context, userID string) (CrisisCheck, error) {
	level, err := n.monitor.Detect(ctx, userID)
	if err != nil {
		n.metrics.IncCrisisFailure()
		n.audit(ctx, logging.EventCrisisCheckFailed, userID, "", map[string]string{"error": err.Error()})
		if errors.Is(err, crisis.ErrEscalated) {
			n.metrics.IncCrisisEscalation()
			n.audit(ctx, logging.EventCrisisEscalation, userID, "", map[string]string{"error": err.Error()})
		}
		return CrisisCheck{}, err
	}
	if level == nil {
		return CrisisCheck{}, nil
	}

	protocol := crisis.ProtocolFor(level.Severity)
	n.metrics.IncCrisisLevel(string(level.Severity))
	n.audit(ctx, logging.EventCrisisDetected, userID, string(level.Severity), level)
	n.publish(ctx, bus.NewEvent(bus.TypeCrisisDetected, userID, map[string]interface{}{
		"severity":        level.Severity,
		"confidence":      level.Confidence,
		"signals":         level.Signals.Triggered(),
		"notify_guardian": protocol.NotifyGuardian,
		"actions":         protocol.Actions,
	}))
	return CrisisCheck{Level: level, Protocol: &protocol}, nil
}

// SafetyResources returns the support resources for a severity.
func (n *Navigator) SafetyResources(severity crisis.Severity) []crisis.Resource {
	return crisis.SafetyResources(severity)
}

// copingWindow bounds the feedback used to pick a user's own coping strategies.
const copingWindow = 90 * 24 * time.Hour

// GenerateSafetyPlan builds a plan from a fresh crisis check and the
// interventions the user rated best (average >= 0.5, at most 3). An
// undetermined check returns the error rather than a plan that looks calm.
func (n *Navigator) GenerateSafetyPlan(ctx context.Context, userID string) (crisis.SafetyPlan, error) {
	check, err := n.DetectCrisis(ctx, userID)
	if err != nil {
		return crisis.SafetyPlan{}, err
	}
	coping, err := n.copingStrategies(ctx, userID)
	if err != nil {
		// the plan is still useful with the generic strategies
		n.log.Warn().Err(err).Str("user_id", userID).Msg("coping strategies unavailable")
	}
	return crisis.BuildSafetyPlan(userID, check.Level, coping, n.now()), nil
}

func (n *Navigator) copingStrategies(ctx context.Context, userID string) ([]string, error) {
	records, err := n.store.UserFeedbackSince(ctx, userID, n.now().Add(-copingWindow))
	if err != nil {
		return nil, err
	}
	type agg struct {
		id    string
		sum   float64
		count int
	}
	byID := make(map[string]*agg)
	for _, r := range records {
		a, ok := byID[r.InterventionID]
		if !ok {
			a = &agg{id: r.InterventionID}
			byID[r.InterventionID] = a
		}
		a.sum += r.FulfillmentScore
		a.count++
	}
	var helpful []*agg
	for _, a := range byID {
		if a.sum/float64(a.count) >= 0.5 {
			helpful = append(helpful, a)
		}
	}
	sort.Slice(helpful, func(i, j int) bool {
		ai, aj := helpful[i].sum/float64(helpful[i].count), helpful[j].sum/float64(helpful[j].count)
		if ai != aj {
			return ai > aj
		}
		return helpful[i].id < helpful[j].id
	})
	var titles []string
	for _, a := range helpful {
		if len(titles) == 3 {
			break
		}
		iv, err := n.store.GetIntervention(ctx, a.id)
		if err != nil {
			return titles, err
		}
		titles = append(titles, iv.Title())
	}
	return titles, nil
}

// #endregion crisis

// #region import
// ImportInterventions upserts interventions, assigning ids to those without one.
// Learned weight and fatigue of existing rows are preserved.
func (n *Navigator) ImportInterventions(ctx context.Context, ivs []field.Intervention) ([]string, error) {
	ids := make([]string, 0, len(ivs))
	for _, iv := range ivs {
		if iv.ID == "" {
			iv.ID = uuid.New().String()
		}
		if err := n.store.UpsertIntervention(ctx, iv); err != nil {
			return ids, err
		}
		ids = append(ids, iv.ID)
	}
	return ids, nil
}

// #endregion import

// #region side-channels
func (n *Navigator) audit(ctx context.Context, eventType, userID, subjectID string, payload interface{}) {
	err := logging.LogEvent(ctx, n.store.DB(), logging.EventEntry{
		EventType:   eventType,
		UserID:      userID,
		SubjectID:   subjectID,
		PayloadJSON: logging.Payload(payload),
	})
	if err != nil {
		n.log.Error().Err(err).Str("event_type", eventType).Msg("audit write failed")
	}
}

func (n *Navigator) publish(ctx context.Context, ev bus.Event) {
	if err := n.publisher.Publish(ctx, ev); err != nil {
		n.log.Warn().Err(err).Str("event_type", ev.Type).Msg("event not published")
	}
}

// #endregion side-channels
