package collective

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/vecmath"
)

// #region blend
// BlendWeight is the damped collective update. Influence is
// MaxInfluence * min(n/FullConfidenceN, 1); only positive averages raise the
// target, so the weight never moves more than MaxInfluence of the way toward it.
func (c Config) BlendWeight(weight, avg float64, sampleSize int) (newWeight, influence float64) {
	c = c.normalized()
	sampleConfidence := math.Min(float64(sampleSize)/float64(c.FullConfidenceN), 1)
	if sampleConfidence < 0 {
		sampleConfidence = 0
	}
	influence = c.MaxInfluence * sampleConfidence
	target := weight
	if avg > 0 {
		target = weight + avg*c.WeightStep
	}
	return weight*(1-influence) + target*influence, influence
}

// #endregion blend

// #region update-weights
// UpdateWeights recomputes one intervention's learning weight from the
// trailing window of feedback. Cohorts below the floor leave the weight untouched.
func (a *Aggregator) UpdateWeights(ctx context.Context, interventionID string) (WeightUpdate, error) {
	upd := WeightUpdate{InterventionID: interventionID}

	var records []field.FeedbackRecord
	err := a.call(ctx, "intervention feedback", func(ctx context.Context) (err error) {
		records, err = a.store.FeedbackSince(ctx, interventionID, a.now().Add(-a.config.Window))
		return err
	})
	if err != nil {
		return upd, err
	}

	users := make(map[string]struct{})
	scores := make([]float64, len(records))
	for i, r := range records {
		users[r.UserID] = struct{}{}
		scores[i] = r.FulfillmentScore
	}
	upd.CohortSize = len(users)
	upd.SampleSize = len(records)
	if upd.CohortSize < a.config.MinCohortSize {
		upd.Reason = fmt.Sprintf("cohort of %d below floor of %d", upd.CohortSize, a.config.MinCohortSize)
		return upd, nil
	}

	avg := vecmath.Mean(scores)
	err = a.call(ctx, "update intervention", func(ctx context.Context) error {
		_, err := a.store.UpdateIntervention(ctx, interventionID, func(iv field.Intervention) field.Intervention {
			upd.OldWeight = iv.LearningWeight
			iv.LearningWeight, upd.Influence = a.config.BlendWeight(iv.LearningWeight, avg, upd.SampleSize)
			upd.NewWeight = iv.LearningWeight
			return iv
		})
		return err
	})
	if err != nil {
		return upd, fmt.Errorf("update weights %s: %w", interventionID, err)
	}
	upd.Applied = true
	a.log.Info().Str("intervention_id", interventionID).Int("cohort", upd.CohortSize).
		Float64("old_weight", upd.OldWeight).Float64("new_weight", upd.NewWeight).
		Msg("learning weight updated")
	return upd, nil
}

// UpdateAll recomputes weights for every intervention with feedback in the
// window. A failure on one intervention does not stop the rest; failures are
// returned joined.
func (a *Aggregator) UpdateAll(ctx context.Context) ([]WeightUpdate, error) {
	var ids []string
	err := a.call(ctx, "interventions with feedback", func(ctx context.Context) (err error) {
		ids, err = a.store.InterventionIDsWithFeedbackSince(ctx, a.now().Add(-a.config.Window))
		return err
	})
	if err != nil {
		return nil, err
	}

	var updates []WeightUpdate
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		upd, err := a.UpdateWeights(ctx, id)
		if err != nil {
			a.log.Error().Err(err).Str("intervention_id", id).Msg("weight update failed")
			errs = append(errs, err)
			continue
		}
		updates = append(updates, upd)
	}
	return updates, errors.Join(errs...)
}

// #endregion update-weights

// #region learning-rate
// PersonalizedLearningRate scales baseRate by how consistent and how
// experienced the user's own feedback is. Users with fewer than 3 ratings in
// the window get baseRate. The result stays within [0.5, 1.5] x baseRate.
func (a *Aggregator) PersonalizedLearningRate(ctx context.Context, userID string, baseRate float64) (float64, error) {
	if baseRate <= 0 || math.IsNaN(baseRate) || math.IsInf(baseRate, 0) {
		return 0, fault.InvalidArgument("learning rate", "base rate must be positive, got %v", baseRate)
	}
	var records []field.FeedbackRecord
	err := a.call(ctx, "user feedback", func(ctx context.Context) (err error) {
		records, err = a.store.UserFeedbackSince(ctx, userID, a.now().Add(-a.config.Window))
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(records) < 3 {
		return baseRate, nil
	}
	scores := make([]float64, len(records))
	for i, r := range records {
		scores[i] = r.FulfillmentScore
	}
	consistency := 1 - math.Min(vecmath.StdDev(scores), 1)
	experience := math.Min(float64(len(records))/20, 1)
	rate := baseRate * (0.5 + 0.5*consistency) * (1 + 0.5*experience)
	return vecmath.Clamp(rate, 0.5*baseRate, 1.5*baseRate), nil
}

// #endregion learning-rate
