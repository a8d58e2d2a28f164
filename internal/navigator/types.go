package navigator

import (
	"errors"

	"github.com/SacredShifter/Navigator-sub000/internal/crisis"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/resonance"
	"github.com/SacredShifter/Navigator-sub000/internal/selection"
)

// ErrRecommendationsPaused is returned by SelectIntervention while the user's
// crisis protocol suspends recommendations.
var ErrRecommendationsPaused = errors.New("recommendations paused by crisis protocol")

// #region requests
// ResonanceRequest carries one user reading plus the labels stored with its history row.
type ResonanceRequest struct {
	State           field.UserState
	Target          []float32 // optional belief target
	BeliefProfileID string
	EmotionLabel    string
	InterventionID  string // the intervention this reading follows, if any
}

// SelectRequest asks for the next intervention for one user.
type SelectRequest struct {
	UserID       string
	UserVector   []float32
	Resonance    resonance.Result
	CandidateIDs []string // empty means every stored intervention
}

// #endregion requests

// #region results
// CrisisCheck pairs a level with the protocol it triggers. Level is nil when
// the check found nothing to report.
type CrisisCheck struct {
	Level    *crisis.Level
	Protocol *crisis.Protocol
}

// Selection is a scored pick plus the crisis state it was made under. When
// CrisisUndetermined is set the pick was made without a safety check and
// CrisisErr wraps crisis.ErrUndetermined; callers decide whether to serve it.
type Selection struct {
	selection.Result
	Crisis             CrisisCheck
	CrisisUndetermined bool
	CrisisErr          error
}

// #endregion results
