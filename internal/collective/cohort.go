package collective

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/field"
)

// #region branch-similarity
// BranchSimilarity scores how alike two outcome rows are:
// 0.4 for a shared belief profile, 0.3 for a shared emotion label and up to
// 0.3 for closeness in RI, reaching 0 at a gap of 0.5.
func BranchSimilarity(a, b field.OutcomeRecord) float64 {
	var sim float64
	if a.BeliefProfileID != "" && a.BeliefProfileID == b.BeliefProfileID {
		sim += 0.4
	}
	if a.EmotionLabel != "" && a.EmotionLabel == b.EmotionLabel {
		sim += 0.3
	}
	gap := math.Min(math.Abs(a.ResonanceIndex-b.ResonanceIndex)/0.5, 1)
	return sim + 0.3*(1-gap)
}

// #endregion branch-similarity

// #region similar-cohort
// FindSimilarCohort returns other users with a row inside the RI band around
// anchor that shares its belief profile or emotion label and clears the
// similarity threshold. Members are ordered by similarity, then user id.
func (a *Aggregator) FindSimilarCohort(ctx context.Context, anchor field.OutcomeRecord) ([]CohortMember, error) {
	since := a.now().Add(-a.config.Window)
	lo := math.Max(0, anchor.ResonanceIndex-a.config.RIBand)
	hi := math.Min(1, anchor.ResonanceIndex+a.config.RIBand)

	var rows []field.OutcomeRecord
	err := a.call(ctx, "find similar cohort", func(ctx context.Context) (err error) {
		rows, err = a.store.OutcomesInBand(ctx, lo, hi, since, anchor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	best := make(map[string]float64)
	for _, r := range rows {
		profileMatch := anchor.BeliefProfileID != "" && r.BeliefProfileID == anchor.BeliefProfileID
		emotionMatch := anchor.EmotionLabel != "" && r.EmotionLabel == anchor.EmotionLabel
		if !profileMatch && !emotionMatch {
			continue
		}
		sim := BranchSimilarity(anchor, r)
		if sim < a.config.SimilarityThreshold {
			continue
		}
		if sim > best[r.UserID] {
			best[r.UserID] = sim
		}
	}

	members := make([]CohortMember, 0, len(best))
	for id, sim := range best {
		members = append(members, CohortMember{UserID: id, Similarity: sim})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Similarity != members[j].Similarity {
			return members[i].Similarity > members[j].Similarity
		}
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}

// #endregion similar-cohort

// #region temporal-cohort
// FindTemporalCohort returns the ids of other users active within window, sorted.
func (a *Aggregator) FindTemporalCohort(ctx context.Context, userID string, window time.Duration) ([]string, error) {
	var rows []field.OutcomeRecord
	err := a.call(ctx, "find temporal cohort", func(ctx context.Context) (err error) {
		rows, err = a.store.ActiveOutcomesSince(ctx, a.now().Add(-window), userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range rows {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		ids = append(ids, r.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

// #endregion temporal-cohort
