package crisis

import "time"

// #region actions
// Protocol actions, in the order they should be carried out.
const (
	ActionDisplayCrisisResources = "display_crisis_resources"
	ActionNotifyGuardian         = "notify_guardian"
	ActionPauseRecommendations   = "pause_recommendations"
	ActionOfferEmergencyContact  = "offer_emergency_contact"
	ActionLogSafetyEvent         = "log_safety_event"
	ActionReviewSafetyPlan       = "review_safety_plan"
	ActionScheduleCheckIn        = "schedule_check_in"
	ActionOfferGroundingPractice = "offer_grounding_practice"
	ActionShowSupportResources   = "show_support_resources"
	ActionGentleCheckIn          = "gentle_check_in"
)

// #endregion actions

// #region resources
// Resource is a support contact shown to the user.
type Resource struct {
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Description string `json:"description"`
	Available   string `json:"available"`
}

var (
	lifeline = Resource{
		Name:        "988 Suicide & Crisis Lifeline",
		Contact:     "call or text 988",
		Description: "Free, confidential support for people in distress.",
		Available:   "24/7",
	}
	textLine = Resource{
		Name:        "Crisis Text Line",
		Contact:     "text HOME to 741741",
		Description: "Text with a trained crisis counselor.",
		Available:   "24/7",
	}
	emergency = Resource{
		Name:        "Emergency Services",
		Contact:     "call 911",
		Description: "For immediate danger to yourself or others.",
		Available:   "24/7",
	}
)

// SafetyResources returns the support resources shown at severity.
func SafetyResources(severity Severity) []Resource {
	switch severity {
	case SeverityCritical:
		return []Resource{emergency, lifeline, textLine}
	case SeverityHigh, SeverityModerate:
		return []Resource{lifeline, textLine}
	default:
		return []Resource{textLine}
	}
}

// #endregion resources

// #region protocol
// Protocol is the fixed safety response for one severity.
type Protocol struct {
	Severity             Severity   `json:"severity"`
	NotifyGuardian       bool       `json:"notify_guardian"`
	PauseRecommendations bool       `json:"pause_recommendations"`
	Actions              []string   `json:"actions"`
	Resources            []Resource `json:"resources"`
}

// ProtocolFor is a pure state table over severity. Only high and critical
// notify a guardian; only critical pauses recommendations.
func ProtocolFor(severity Severity) Protocol {
	p := Protocol{Severity: severity, Resources: SafetyResources(severity)}
	switch severity {
	case SeverityCritical:
		p.NotifyGuardian = true
		p.PauseRecommendations = true
		p.Actions = []string{
			ActionDisplayCrisisResources,
			ActionNotifyGuardian,
			ActionPauseRecommendations,
			ActionOfferEmergencyContact,
			ActionLogSafetyEvent,
		}
	case SeverityHigh:
		p.NotifyGuardian = true
		p.Actions = []string{
			ActionDisplayCrisisResources,
			ActionNotifyGuardian,
			ActionReviewSafetyPlan,
			ActionScheduleCheckIn,
		}
	case SeverityModerate:
		p.Actions = []string{ActionOfferGroundingPractice, ActionShowSupportResources}
	default:
		p.Actions = []string{ActionGentleCheckIn}
	}
	return p
}

// #endregion protocol

// #region safety-plan
// SafetyPlan is a structured plan a user can return to.
type SafetyPlan struct {
	UserID           string     `json:"user_id"`
	Severity         Severity   `json:"severity"`
	WarningSigns     []string   `json:"warning_signs"`
	CopingStrategies []string   `json:"coping_strategies"`
	Resources        []Resource `json:"resources"`
	Actions          []string   `json:"actions"`
	GeneratedAt      time.Time  `json:"generated_at"`
}

var warningSignText = map[string]string{
	"ri_plunge":         "A sudden drop in how aligned and steady you feel",
	"prolonged_low_ri":  "Several low days in a row this week",
	"isolation_pattern": "Checking in less often than usual",
	"entropy_spike":     "Feeling scattered or unsettled",
	"harm_indicators":   "Thoughts of harming yourself",
}

// BuildSafetyPlan assembles a plan from the latest level (nil when nothing was
// detected) and the titles of practices that have helped the user before.
func BuildSafetyPlan(userID string, level *Level, coping []string, now time.Time) SafetyPlan {
	severity := SeverityLow
	var signs []string
	if level != nil {
		severity = level.Severity
		for _, name := range level.Signals.Triggered() {
			signs = append(signs, warningSignText[name])
		}
	}
	if len(coping) == 0 {
		coping = []string{"Slow breathing for two minutes", "Reach out to someone you trust"}
	}
	return SafetyPlan{
		UserID:           userID,
		Severity:         severity,
		WarningSigns:     signs,
		CopingStrategies: coping,
		Resources:        SafetyResources(severity),
		Actions:          ProtocolFor(severity).Actions,
		GeneratedAt:      now.UTC(),
	}
}

// #endregion safety-plan
