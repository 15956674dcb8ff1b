// Package crisis implements keyword-based crisis detection for patient chat.
// Detection is synchronous and free of I/O: the chat pipeline calls Detect on
// every patient message and handles alert fan-out itself.
package crisis

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel grades the assessed risk of a patient message or session.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCrisis   RiskLevel = "crisis"
)

// Alert types, in classification precedence order.
const (
	AlertSuicideIdeation     = "suicide_ideation"
	AlertSelfHarm            = "self_harm"
	AlertPsychosisIndicators = "psychosis_indicators"
	AlertGeneralCrisis       = "general_crisis"
)

// RecommendedAction accompanies every crisis alert.
const RecommendedAction = "Immediate therapist contact required. Consider safety planning and crisis intervention."

// Keyword groups scanned on every patient message. Matching is
// case-insensitive substring containment.
var (
	suicideKeywords = []string{
		"suicide", "kill myself", "end my life", "want to die", "better off dead",
		"suicide plan", "suicidal", "end it all", "take my own life",
	}
	selfHarmKeywords = []string{
		"cut myself", "hurt myself", "self harm", "self-harm", "cutting",
		"burning myself", "punish myself",
	}
	distressKeywords = []string{
		"can't go on", "hopeless", "no way out", "give up", "worthless",
		"emergency", "crisis", "breakdown", "losing control",
	}
	psychosisKeywords = []string{
		"hearing voices", "voices telling me", "paranoid", "conspiracy",
		"they're watching", "not real", "hallucination",
	}
)

// Assessment is the result of scanning one patient message.
type Assessment struct {
	Risk       RiskLevel `json:"risk"`
	Indicators []string  `json:"indicators,omitempty"`
	Escalate   bool      `json:"escalate"`
}

// Detect scans a patient message for crisis indicators and grades the risk:
// any suicide or self-harm phrase is a crisis; a psychosis phrase or two or
// more distress phrases are high; a single distress phrase is moderate.
// Escalate is set for high and crisis so an alert reaches the therapist.
func Detect(message string) Assessment {
	lower := strings.ToLower(message)

	var indicators []string
	match := func(group []string) int {
		n := 0
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				indicators = append(indicators, kw)
				n++
			}
		}
		return n
	}

	suicide := match(suicideKeywords)
	selfHarm := match(selfHarmKeywords)
	distress := match(distressKeywords)
	psychosis := match(psychosisKeywords)

	risk := RiskLow
	switch {
	case suicide > 0 || selfHarm > 0:
		risk = RiskCrisis
	case psychosis > 0 || distress >= 2:
		risk = RiskHigh
	case distress == 1:
		risk = RiskModerate
	}

	return Assessment{
		Risk:       risk,
		Indicators: indicators,
		Escalate:   risk == RiskCrisis || risk == RiskHigh,
	}
}

// Alert describes a crisis event requiring immediate therapist attention.
type Alert struct {
	PatientID         string    `json:"patient_id"`
	AlertType         string    `json:"alert_type"`
	Severity          string    `json:"severity"`
	TriggerMessage    string    `json:"trigger_message"`
	Summary           string    `json:"assessment"`
	RecommendedAction string    `json:"recommended_action"`
	CreatedAt         time.Time `json:"created_at"`
}

// BuildAlert assembles the alert for an escalated assessment.
func BuildAlert(patientID, message string, a Assessment) Alert {
	return Alert{
		PatientID:         patientID,
		AlertType:         alertType(message),
		Severity:          Severity(a.Risk),
		TriggerMessage:    message,
		Summary:           fmt.Sprintf("Risk level: %s. Crisis indicators: %s", a.Risk, strings.Join(a.Indicators, ", ")),
		RecommendedAction: RecommendedAction,
		CreatedAt:         time.Now().UTC(),
	}
}

// alertType classifies a trigger message. Suicide phrases win over
// self-harm, which wins over psychosis; anything else is a general crisis.
func alertType(message string) string {
	lower := strings.ToLower(message)
	contains := func(phrases ...string) bool {
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("suicide", "kill myself", "end my life"):
		return AlertSuicideIdeation
	case contains("cut myself", "hurt myself", "self harm"):
		return AlertSelfHarm
	case contains("voices", "paranoid", "conspiracy"):
		return AlertPsychosisIndicators
	default:
		return AlertGeneralCrisis
	}
}

// Severity maps a risk level to an alert severity. Crisis maps to critical,
// as does anything unrecognized: alerts never under-report.
func Severity(risk RiskLevel) string {
	switch risk {
	case RiskHigh:
		return "high"
	case RiskModerate:
		return "medium"
	default:
		return "critical"
	}
}
