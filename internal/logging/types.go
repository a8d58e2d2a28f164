package logging

import "time"

// #region event-types
// Event types written to event_log.
const (
	EventResonanceCalculated = "resonance.calculated"
	EventSelectionMade       = "selection.made"
	EventFeedbackRecorded    = "feedback.recorded"
	EventWeightsUpdated      = "weights.updated"
	EventWeightsSkipped      = "weights.skipped"
	EventCrisisDetected      = "crisis.detected"
	EventCrisisCheckFailed   = "crisis.check_failed"
	EventCrisisEscalation    = "crisis.escalation"
)

// #endregion event-types

// #region event-entry
// EventEntry is a single row in the event_log table.
type EventEntry struct {
	EventID     string // generated when empty
	EventType   string
	UserID      string
	SubjectID   string // intervention id, severity, etc.
	PayloadJSON string
	CreatedAt   time.Time
}

// #endregion event-entry
