package chatbot

import (
	"strings"

	"github.com/moonraker/engage/internal/platform/crisis"
)

// PatientFallbackMessage is returned when the support pipeline fails. The
// patient always gets crisis numbers even when nothing else works.
const PatientFallbackMessage = "I'm sorry, I'm having trouble right now. If this is an emergency, please call 911 or text 988 for crisis support. Your therapist will be notified of this issue."

// ElevatedRiskReply acknowledges distress without a full crisis escalation.
const ElevatedRiskReply = "It sounds like you're going through something really difficult right now. " +
	"Your feelings are valid, and I want you to know that support is available.\n\n" +
	"I've let your therapist know you could use some extra support. In the meantime, " +
	"would it help to talk through what's weighing on you most right now?"

// Supportive reply templates keyed by conversation theme. The first theme
// found in the message picks the reply; anything else gets the default.
var supportReplies = []struct {
	keywords   []string
	reply      string
	techniques []string
}{
	{
		keywords: []string{"anxious", "anxiety", "worried", "panic", "nervous"},
		reply: "Anxiety can feel overwhelming, and it takes courage to talk about it. " +
			"One thing that can help in the moment is slowing your breathing: in for four counts, " +
			"hold for four, out for four. What's contributing most to the anxiety right now?",
		techniques: []string{"Grounding techniques", "Breathing exercise"},
	},
	{
		keywords: []string{"sad", "depressed", "down", "empty", "unmotivated"},
		reply: "Thank you for sharing that with me. Feeling this way is hard, and it matters that " +
			"you reached out. Sometimes even one small thing — a short walk, a glass of water, a " +
			"message to someone you trust — can be a place to start. What has helped, even a little, before?",
		techniques: []string{"Validation", "Behavioral activation"},
	},
	{
		keywords: []string{"sleep", "insomnia", "tired", "exhausted"},
		reply: "Sleep troubles can make everything else feel heavier. Keeping a consistent wind-down " +
			"routine and putting screens away before bed can help. Is something in particular keeping you up?",
		techniques: []string{"Sleep hygiene", "Active listening"},
	},
	{
		keywords: []string{"alone", "lonely", "isolated", "no one"},
		reply: "Feeling alone is painful, and I'm glad you're talking about it here. You deserve " +
			"connection and support. Is there someone — a friend, family member, or group — you've " +
			"felt comfortable with before?",
		techniques: []string{"Validation", "Social connection"},
	},
	{
		keywords: []string{"angry", "frustrated", "furious", "irritated"},
		reply: "It makes sense to feel frustrated when things pile up. Naming the feeling is a good " +
			"first step. What happened that brought this up today?",
		techniques: []string{"Validation", "Emotion labeling"},
	},
}

const defaultSupportReply = "Thank you for sharing that with me. I'm here to listen and support you " +
	"between your sessions. Can you tell me more about what's on your mind today?"

// SupportReply builds the patient-support bot reply for a non-crisis
// assessment, along with the therapeutic techniques the reply draws on.
// Crisis-level messages are answered by the caller with the crisis response.
func SupportReply(message string, a crisis.Assessment) (string, []string) {
	if a.Risk == crisis.RiskHigh || a.Risk == crisis.RiskModerate {
		return ElevatedRiskReply, []string{"Active listening", "Validation"}
	}

	lower := strings.ToLower(message)
	for _, sr := range supportReplies {
		for _, kw := range sr.keywords {
			if strings.Contains(lower, kw) {
				return sr.reply, sr.techniques
			}
		}
	}
	return defaultSupportReply, []string{"Active listening", "Validation"}
}
