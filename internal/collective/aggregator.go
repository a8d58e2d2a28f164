// Package collective learns per-intervention priors from many users' feedback
// under a k-anonymity floor, and surfaces noised cohort insights.
package collective

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/retry"
	"github.com/SacredShifter/Navigator-sub000/internal/store"
	"github.com/SacredShifter/Navigator-sub000/internal/vecmath"
	"github.com/rs/zerolog"
)

// #region aggregator
// Aggregator computes collective insights and applies bounded weight updates.
// All state lives in the Store.
type Aggregator struct {
	store  Store
	config Config
	noise  Noiser
	policy retry.Policy
	log    zerolog.Logger
	now    func() time.Time
}

// NewAggregator creates an Aggregator. noise may be nil for a time-seeded Laplace source.
func NewAggregator(s Store, config Config, noise Noiser, policy retry.Policy, log zerolog.Logger) *Aggregator {
	if noise == nil {
		noise = NewLaplaceNoise(nil)
	}
	return &Aggregator{
		store:  s,
		config: config.normalized(),
		noise:  noise,
		policy: policy,
		log:    log.With().Str("component", "collective").Logger(),
		now:    time.Now,
	}
}

// Config returns the effective configuration after the k-anonymity floor is applied.
func (a *Aggregator) Config() Config {
	return a.config
}

// call runs a store operation with retries. Missing rows are not retried.
func (a *Aggregator) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, a.policy, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return fault.Collaborator(op, err)
}

// #endregion aggregator

// #region insights
// Insights returns up to limit interventions that helped users in a state
// similar to userID's latest. An empty result means there was not enough
// evidence; cohorts below the floor never produce an insight.
func (a *Aggregator) Insights(ctx context.Context, userID string, limit int) ([]Insight, error) {
	var latest []field.OutcomeRecord
	err := a.call(ctx, "latest outcome", func(ctx context.Context) (err error) {
		latest, err = a.store.RecentOutcomes(ctx, userID, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		a.log.Debug().Str("user_id", userID).Msg("no history, no insights")
		return nil, nil
	}

	members, err := a.FindSimilarCohort(ctx, latest[0])
	if err != nil {
		return nil, err
	}
	if len(members) < a.config.MinCohortSize {
		a.log.Debug().Str("user_id", userID).Int("cohort", len(members)).Msg("similar cohort below floor")
		return nil, nil
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return a.cohortInsights(ctx, ids, a.config.Window, InsightSimilarCohort, limit)
}

// Synchronicity returns interventions many users engaged with inside window,
// ranked by noised usage.
func (a *Aggregator) Synchronicity(ctx context.Context, userID string, window time.Duration, limit int) ([]Insight, error) {
	if window <= 0 {
		return nil, fault.InvalidArgument("synchronicity", "window must be positive")
	}
	ids, err := a.FindTemporalCohort(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	if len(ids) < a.config.MinCohortSize {
		return nil, nil
	}
	return a.cohortInsights(ctx, ids, window, InsightSynchronicity, limit)
}

type interventionAggregate struct {
	id     string
	scores []float64
	users  map[string]struct{}
}

func (a *Aggregator) cohortInsights(ctx context.Context, userIDs []string, window time.Duration, kind string, limit int) ([]Insight, error) {
	if limit <= 0 {
		limit = 5
	}
	var records []field.FeedbackRecord
	err := a.call(ctx, "cohort feedback", func(ctx context.Context) (err error) {
		records, err = a.store.FeedbackByUsersSince(ctx, userIDs, a.now().Add(-window))
		return err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*interventionAggregate)
	for _, r := range records {
		agg, ok := byID[r.InterventionID]
		if !ok {
			agg = &interventionAggregate{id: r.InterventionID, users: make(map[string]struct{})}
			byID[r.InterventionID] = agg
		}
		agg.scores = append(agg.scores, r.FulfillmentScore)
		agg.users[r.UserID] = struct{}{}
	}

	var out []Insight
	for _, agg := range byID {
		// each aggregate is its own release and needs its own k users
		if len(agg.users) < a.config.MinCohortSize {
			continue
		}
		avg, usage := privatize(a.noise, a.config.Epsilon, vecmath.Mean(agg.scores), len(agg.scores))
		if kind == InsightSimilarCohort && avg <= 0 {
			continue
		}
		out = append(out, Insight{
			InterventionID: agg.id,
			Type:           kind,
			AvgFulfillment: avg,
			UsageCount:     usage,
			Confidence:     InsightConfidence(len(agg.users), vecmath.Variance(agg.scores)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if kind == InsightSynchronicity && out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		if out[i].AvgFulfillment != out[j].AvgFulfillment {
			return out[i].AvgFulfillment > out[j].AvgFulfillment
		}
		return out[i].InterventionID < out[j].InterventionID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsightConfidence averages a cohort-size term, min(n/20, 1), and a
// consistency term, 1 - min(stddev/0.5, 1).
func InsightConfidence(cohortSize int, variance float64) float64 {
	size := math.Min(float64(cohortSize)/20, 1)
	consistency := 1 - math.Min(math.Sqrt(math.Max(variance, 0))/0.5, 1)
	return (size + consistency) / 2
}

// #endregion insights
