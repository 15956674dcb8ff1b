package crisis

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Message roles recorded by the chat pipeline.
const (
	EntryPatient = "patient_message"
	EntryBot     = "bot_response"
)

// Entry is one message in a patient chat session.
type Entry struct {
	Timestamp           time.Time
	Type                string
	Content             string
	RiskIndicators      []string
	EscalationTriggered bool
	Techniques          []string
}

// SessionSummary renders a markdown summary of a chat session for therapist
// review.
func SessionSummary(entries []Entry, risk RiskLevel) string {
	if len(entries) == 0 {
		return "No conversation activity to summarize."
	}

	var patientMessages []string
	var patientCount, botCount, escalations int
	techniques := make(map[string]bool)
	for _, e := range entries {
		switch e.Type {
		case EntryPatient:
			patientCount++
			patientMessages = append(patientMessages, e.Content)
		case EntryBot:
			botCount++
			for _, t := range e.Techniques {
				techniques[t] = true
			}
		}
		if e.EscalationTriggered {
			escalations++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Session Summary - %s**\n\n", time.Now().UTC().Format("2006-01-02 15:04"))
	b.WriteString("**Patient Engagement:**\n")
	fmt.Fprintf(&b, "- Total messages: %d\n", patientCount)
	fmt.Fprintf(&b, "- Bot responses: %d\n", botCount)
	fmt.Fprintf(&b, "- Session duration: %s\n\n", sessionDuration(entries))
	b.WriteString("**Risk Assessment:**\n")
	fmt.Fprintf(&b, "- Current risk level: %s\n", risk)
	fmt.Fprintf(&b, "- Escalations triggered: %d\n\n", escalations)
	fmt.Fprintf(&b, "**Key Themes:**\n%s\n\n", ThemeSummary(patientMessages))
	fmt.Fprintf(&b, "**Therapeutic Techniques Used:**\n%s\n\n", techniqueSummary(techniques))
	fmt.Fprintf(&b, "**Recommendations:**\n%s\n", recommendations(risk, escalations, len(entries)))
	return b.String()
}

func sessionDuration(entries []Entry) string {
	if len(entries) < 2 {
		return "< 5 minutes"
	}
	d := entries[len(entries)-1].Timestamp.Sub(entries[0].Timestamp)
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}

func techniqueSummary(set map[string]bool) string {
	if len(set) == 0 {
		return "Active listening, validation"
	}
	names := make([]string, 0, len(set))
	for t := range set {
		names = append(names, t)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func recommendations(risk RiskLevel, escalations, totalEntries int) string {
	var recs []string
	if risk == RiskHigh || risk == RiskCrisis {
		recs = append(recs, "• Immediate follow-up required due to elevated risk level")
	}
	if escalations > 0 {
		recs = append(recs, fmt.Sprintf("• %d crisis alerts triggered - review conversation details", escalations))
	}
	if totalEntries > 20 {
		recs = append(recs, "• Extended conversation - consider scheduling additional session")
	}
	if len(recs) == 0 {
		recs = append(recs, "• Regular follow-up per treatment plan")
	}
	return strings.Join(recs, "\n")
}
