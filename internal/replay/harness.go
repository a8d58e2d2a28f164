// Package replay runs recorded selection turns through the decision loop in
// memory, so parameter changes can be checked against known sessions.
package replay

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/collective"
	"github.com/SacredShifter/Navigator-sub000/internal/crisis"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/resonance"
	"github.com/SacredShifter/Navigator-sub000/internal/selection"
	"github.com/SacredShifter/Navigator-sub000/internal/vecmath"
	"github.com/rs/zerolog"
)

// #region types
// Turn actions.
const (
	ActionSelected = "selected"
	ActionPaused   = "paused"
	ActionRejected = "rejected"
)

// Turn is one recorded request for a recommendation.
type Turn struct {
	TurnID         string
	At             time.Time
	State          field.UserState
	Target         []float32
	UserVector     []float32
	Entropy        float64 // system-instability reading at this turn
	HarmIndicators bool
	Fulfillment    *float64 // rating of the selected intervention, if given
	Aggregate      bool     // recompute learning weights after this turn
}

// Config bundles the component configs for a replay run.
type Config struct {
	Resonance  resonance.Config
	Selection  selection.Config
	Collective collective.Config
	Crisis     crisis.Config
	Seed       uint64
}

// DefaultConfig returns component defaults with diversity sampling off, so
// runs are comparable turn by turn.
func DefaultConfig() Config {
	sel := selection.DefaultConfig()
	sel.DiversitySampling = false
	return Config{
		Resonance:  resonance.DefaultConfig(),
		Selection:  sel,
		Collective: collective.DefaultConfig(),
		Crisis:     crisis.DefaultConfig(),
		Seed:       1,
	}
}

// Result captures what the loop did with one turn.
type Result struct {
	TurnID         string
	Action         string
	Reason         string
	ResonanceIndex float64
	Severity       crisis.Severity // empty when nothing was reported
	SelectedID     string
	Sampled        bool
	WeightUpdates  []collective.WeightUpdate // applied after this turn
}

// Summary aggregates a run.
type Summary struct {
	TotalTurns int
	Selected   int
	Paused     int
	Rejected   int
	Sampled    int
	Picks      map[string]int // selections per intervention
	FinalPool  []field.Intervention
}

// #endregion types

// #region in-memory-collaborators
// memHistory serves outcome rows newest first.
type memHistory struct {
	mu     sync.Mutex
	byUser map[string][]field.OutcomeRecord // oldest first
}

func (h *memHistory) append(rec field.OutcomeRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byUser[rec.UserID] = append(h.byUser[rec.UserID], rec)
}

func (h *memHistory) RecentOutcomes(_ context.Context, userID string, limit int) ([]field.OutcomeRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rows := h.byUser[userID]
	out := make([]field.OutcomeRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

// turnSignals answers entropy and harm from the turn being replayed.
type turnSignals struct{ turn *Turn }

func (s turnSignals) OverallEntropy(context.Context, string) (float64, error) {
	return s.turn.Entropy, nil
}

func (s turnSignals) HarmIndicators(context.Context, string) (bool, error) {
	return s.turn.HarmIndicators, nil
}

// #endregion in-memory-collaborators

// #region replay
// Replay runs turns in order against pool: resonance, crisis check, selection,
// fatigue, then optional feedback and weight recompute. Feedback is not
// windowed; every rating in the run counts. pool is not modified; the
// returned slice is the pool after the last turn.
func Replay(pool []field.Intervention, turns []Turn, cfg Config) ([]Result, []field.Intervention, error) {
	ctx := context.Background()
	log := zerolog.Nop()

	calc, err := resonance.NewCalculator(nil, cfg.Resonance, log)
	if err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}
	if err := cfg.Selection.Validate(); err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}
	matrix := selection.NewMatrix(cfg.Selection, rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)))

	var current Turn
	history := &memHistory{byUser: make(map[string][]field.OutcomeRecord)}
	signals := turnSignals{turn: &current}
	monitor := crisis.NewMonitor(history, signals, signals, nil, cfg.Crisis, log).
		WithClock(func() time.Time { return current.At })

	pool = append([]field.Intervention(nil), pool...)
	ratings := make(map[string][]field.FeedbackRecord)
	results := make([]Result, 0, len(turns))

	for _, turn := range turns {
		current = turn
		r := Result{TurnID: turn.TurnID}

		// 1. Resonance
		res := calc.Calculate(ctx, turn.State, turn.Target)
		r.ResonanceIndex = res.ResonanceIndex
		history.append(field.OutcomeRecord{
			UserID:         turn.State.UserID,
			ResonanceIndex: res.ResonanceIndex,
			CreatedAt:      turn.At,
		})

		// 2. Crisis
		level, err := monitor.Detect(ctx, turn.State.UserID)
		if err != nil {
			r.Reason = err.Error()
		}
		if level != nil {
			r.Severity = level.Severity
			if crisis.ProtocolFor(level.Severity).PauseRecommendations {
				r.Action = ActionPaused
				r.Reason = fmt.Sprintf("%s crisis: %v", level.Severity, level.Signals.Triggered())
				results = append(results, r)
				continue
			}
		}

		// 3. Select
		sel, err := matrix.Select(turn.UserVector, res, pool)
		if err != nil {
			r.Action = ActionRejected
			r.Reason = err.Error()
			results = append(results, r)
			continue
		}
		r.Action = ActionSelected
		r.SelectedID = sel.Selected.ID
		r.Sampled = sel.Sampled
		if r.Reason == "" {
			r.Reason = sel.Reasoning
		}

		// 4. Fatigue
		pool = selection.ApplySelection(pool, sel.Selected.ID, cfg.Selection.DecayRate)

		// 5. Feedback and learning
		if turn.Fulfillment != nil {
			ratings[sel.Selected.ID] = append(ratings[sel.Selected.ID], field.FeedbackRecord{
				UserID:           turn.State.UserID,
				InterventionID:   sel.Selected.ID,
				FulfillmentScore: *turn.Fulfillment,
				CreatedAt:        turn.At,
			})
		}
		if turn.Aggregate {
			r.WeightUpdates = recomputeWeights(pool, ratings, cfg.Collective)
		}
		results = append(results, r)
	}
	return results, pool, nil
}

// recomputeWeights blends every rated intervention whose distinct raters meet
// the cohort floor, updating pool in place.
func recomputeWeights(pool []field.Intervention, ratings map[string][]field.FeedbackRecord, cfg collective.Config) []collective.WeightUpdate {
	floor := max(cfg.MinCohortSize, collective.KAnonymityFloor)
	var updates []collective.WeightUpdate
	for i := range pool {
		recs := ratings[pool[i].ID]
		if len(recs) == 0 {
			continue
		}
		users := make(map[string]struct{})
		scores := make([]float64, len(recs))
		for j, rec := range recs {
			users[rec.UserID] = struct{}{}
			scores[j] = rec.FulfillmentScore
		}
		upd := collective.WeightUpdate{
			InterventionID: pool[i].ID,
			CohortSize:     len(users),
			SampleSize:     len(recs),
			OldWeight:      pool[i].LearningWeight,
			NewWeight:      pool[i].LearningWeight,
		}
		if upd.CohortSize < floor {
			upd.Reason = fmt.Sprintf("cohort of %d below floor of %d", upd.CohortSize, floor)
		} else {
			upd.NewWeight, upd.Influence = cfg.BlendWeight(pool[i].LearningWeight, vecmath.Mean(scores), upd.SampleSize)
			upd.Applied = true
			pool[i].LearningWeight = upd.NewWeight
		}
		updates = append(updates, upd)
	}
	return updates
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, finalPool []field.Intervention) Summary {
	s := Summary{
		TotalTurns: len(results),
		Picks:      make(map[string]int),
		FinalPool:  append([]field.Intervention(nil), finalPool...),
	}
	for _, r := range results {
		switch r.Action {
		case ActionSelected:
			s.Selected++
			s.Picks[r.SelectedID]++
			if r.Sampled {
				s.Sampled++
			}
		case ActionPaused:
			s.Paused++
		case ActionRejected:
			s.Rejected++
		}
	}
	sort.SliceStable(s.FinalPool, func(i, j int) bool { return s.FinalPool[i].ID < s.FinalPool[j].ID })
	return s
}

// #endregion replay
