package crisis

// ResponseMessage replaces the normal chat reply when the crisis protocol
// activates.
const ResponseMessage = "I'm very concerned about what you've shared. Your safety is the most important thing right now.\n\n" +
	"**Immediate Resources:**\n" +
	"• Crisis Text Line: Text HOME to 741741\n" +
	"• 988 Suicide & Crisis Lifeline: Call or text 988\n" +
	"• Emergency Services: Call 911\n\n" +
	"I'm notifying your therapist immediately so they can provide the support you need.\n\n" +
	"You are not alone in this. There are people who want to help you through this difficult time. " +
	"Please reach out to one of these resources right away.\n\n" +
	"Is there someone safe you can be with right now?"

// SafetyPlan is the standing self-help plan served alongside emergency
// resources.
const SafetyPlan = "If you're having thoughts of self-harm: " +
	"1) Reach out to crisis support, 2) Contact someone you trust, " +
	"3) Remove means of harm, 4) Go to a safe place, 5) Stay with someone until crisis passes"

// Hotline is one crisis support line.
type Hotline struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	Description string `json:"description"`
	Website     string `json:"website,omitempty"`
}

// EmergencyContact is a non-hotline escalation path shown to patients.
type EmergencyContact struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Availability string `json:"availability"`
}

// Hotlines returns the standing crisis hotline list.
func Hotlines() []Hotline {
	return []Hotline{
		{
			Name:        "988 Suicide & Crisis Lifeline",
			Number:      "988",
			Description: "24/7 crisis support - call or text",
			Website:     "https://988lifeline.org/",
		},
		{
			Name:        "Crisis Text Line",
			Number:      "741741",
			Description: "Text HOME for 24/7 crisis support",
			Website:     "https://www.crisistextline.org/",
		},
		{
			Name:        "Emergency Services",
			Number:      "911",
			Description: "For immediate life-threatening emergencies",
		},
	}
}

// EmergencyContacts returns the non-hotline contacts shown with emergency
// resources.
func EmergencyContacts() []EmergencyContact {
	return []EmergencyContact{
		{
			Name:         "Your Therapist",
			Description:  "Will be notified automatically in crisis situations",
			Availability: "Business hours + emergency protocols",
		},
	}
}

// ResponseResources accompany a crisis chat response.
func ResponseResources() map[string]string {
	return map[string]string{
		"crisis_text_line": "Text HOME to 741741",
		"suicide_lifeline": "Call or text 988",
		"emergency":        "Call 911 if in immediate danger",
		"your_therapist":   "Your therapist has been notified and will contact you soon",
	}
}

// FallbackResources accompany the canned reply sent when the chat pipeline
// fails; patients in distress still get a way to reach help.
func FallbackResources() map[string]string {
	return map[string]string{
		"emergency":      "Call 911",
		"crisis_support": "Text 988",
	}
}
