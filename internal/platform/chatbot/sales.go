// Package chatbot implements the two keyword-driven bots: the public sales
// and booking bot embedded on practice websites, and the patient support bot
// used by enrolled patients between sessions. Both are pure reply builders;
// CRM calls, persistence, and alert fan-out live with the callers.
package chatbot

import (
	"fmt"
	"sort"
	"strings"
)

// Visitor intents, in classification precedence order.
const (
	IntentEmergency = "emergency"
	IntentBooking   = "booking"
	IntentPricing   = "pricing"
	IntentServices  = "services"
	IntentGeneral   = "general"
	IntentError     = "error"
)

// Next actions the website widget acts on.
const (
	ActionNotifyStaff      = "notify_staff"
	ActionCollectName      = "collect_name"
	ActionCollectEmail     = "collect_email"
	ActionCollectPhone     = "collect_phone"
	ActionCollectApptType  = "collect_appointment_type"
	ActionShowCalendar     = "show_calendar"
	ActionEncourageBooking = "encourage_booking"
)

// FallbackMessage is the canned reply when reply generation or a CRM call
// fails. The widget never sees a 500.
const FallbackMessage = "I apologize, but I'm having some technical difficulties. Please feel free to call us directly or try again in a moment. For urgent matters, you can reach us at our main number."

const emergencyReply = "I'm concerned about your safety and want to make sure you get immediate help.\n\n" +
	"**For immediate support:**\n" +
	"• **Crisis Text Line**: Text HOME to 741741\n" +
	"• **988 Suicide & Crisis Lifeline**: Call or text 988\n" +
	"• **Emergency Services**: Call 911 if you're in immediate danger\n\n" +
	"Our practice staff can also help connect you with crisis resources. Would you like me to have someone call you today?"

// Keyword lists for intent classification, scanned case-insensitively.
var (
	bookingKeywords = []string{
		"appointment", "schedule", "book", "available", "session",
		"consultation", "meeting", "time", "calendar", "availability",
	}
	serviceKeywords = []string{
		"therapy", "counseling", "treatment", "help", "services",
		"what do you do", "specialize", "approach", "methods",
	}
	pricingKeywords = []string{
		"cost", "price", "fee", "insurance", "payment", "charge",
		"how much", "affordable", "billing", "copay",
	}
	emergencyKeywords = []string{
		"emergency", "crisis", "suicide", "harm", "urgent", "help me",
	}
)

var (
	defaultAppointmentTypes = []string{"Initial Consultation", "Individual Therapy", "Couples Therapy"}
	defaultServices         = []string{"Individual therapy", "Couples counseling", "Family therapy"}
)

// PracticeInfo carries the practice fields the sales bot templates replies
// from. Zero values fall back to generic wording.
type PracticeInfo struct {
	Name              string
	Address           string
	Hours             string
	ServiceDelivery   string
	Approach          string
	Services          []string
	InsuranceAccepted string
}

// AppointmentConfig is the slice of booking configuration the bot needs.
type AppointmentConfig struct {
	Types      []string
	Days       []string
	HoursStart string
	HoursEnd   string
}

// Response is the sales bot's reply to one visitor message.
type Response struct {
	Message          string            `json:"message"`
	Intent           string            `json:"intent"`
	RequiresFollowup bool              `json:"requires_followup"`
	CollectedData    map[string]string `json:"collected_data,omitempty"`
	NextAction       string            `json:"next_action,omitempty"`
	BookingReady     bool              `json:"booking_ready"`
}

// ClassifyIntent buckets a visitor message by keyword. Emergencies are
// checked first so the safety response always wins.
func ClassifyIntent(message string) string {
	lower := strings.ToLower(message)
	contains := func(group []string) bool {
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
	switch {
	case contains(emergencyKeywords):
		return IntentEmergency
	case contains(bookingKeywords):
		return IntentBooking
	case contains(pricingKeywords):
		return IntentPricing
	case contains(serviceKeywords):
		return IntentServices
	default:
		return IntentGeneral
	}
}

// SalesReply advances one visitor exchange: classifies the intent, folds any
// contact details found in the message into the session, and builds the
// reply. The session is mutated in place.
func SalesReply(message string, sess *Session, practice PracticeInfo, appt AppointmentConfig) Response {
	intent := ClassifyIntent(message)
	extracted := ExtractContactInfo(message)

	if sess.Collected == nil {
		sess.Collected = make(map[string]string)
	}
	for k, v := range extracted {
		sess.Collected[k] = v
	}
	sess.Intent = intent
	sess.Messages++

	switch intent {
	case IntentEmergency:
		return Response{
			Message:          emergencyReply,
			Intent:           IntentEmergency,
			RequiresFollowup: true,
			NextAction:       ActionNotifyStaff,
		}
	case IntentBooking:
		return bookingReply(sess, appt, extracted)
	case IntentPricing:
		return Response{
			Message:          pricingReply(practice),
			Intent:           IntentPricing,
			RequiresFollowup: true,
			CollectedData:    extracted,
			NextAction:       ActionEncourageBooking,
		}
	case IntentServices:
		return Response{
			Message:          servicesReply(practice),
			Intent:           IntentServices,
			RequiresFollowup: true,
			CollectedData:    extracted,
			NextAction:       ActionEncourageBooking,
		}
	default:
		return Response{
			Message:          generalReply(practice),
			Intent:           IntentGeneral,
			RequiresFollowup: true,
			CollectedData:    extracted,
		}
	}
}

// Fallback is the error response for the widget.
func Fallback() Response {
	return Response{
		Message:          FallbackMessage,
		Intent:           IntentError,
		RequiresFollowup: true,
	}
}

// bookingReply walks the slot-filling ladder: name, email, phone,
// appointment type, then the calendar.
func bookingReply(sess *Session, appt AppointmentConfig, extracted map[string]string) Response {
	types := appt.Types
	if len(types) == 0 {
		types = defaultAppointmentTypes
	}

	var msg, action string
	switch {
	case sess.Collected["name"] == "":
		msg = fmt.Sprintf("I'd be happy to help you schedule an appointment! We offer %s. May I start by getting your name?", strings.Join(types, ", "))
		action = ActionCollectName
	case sess.Collected["email"] == "":
		msg = fmt.Sprintf("Thanks %s! What's the best email address to send your appointment confirmation?", sess.Collected["name"])
		action = ActionCollectEmail
	case sess.Collected["phone"] == "":
		msg = "Great! And what's a good phone number where we can reach you?"
		action = ActionCollectPhone
	case sess.Collected["appointment_type"] == "":
		msg = fmt.Sprintf("Perfect! What type of appointment are you looking for?\n\n%s", bulletList(types))
		action = ActionCollectApptType
	default:
		msg = fmt.Sprintf("Excellent! I have all your information. Let me show you our available times for %s. What day works best for you this week or next?", sess.Collected["appointment_type"])
		action = ActionShowCalendar
	}

	return Response{
		Message:          msg,
		Intent:           IntentBooking,
		RequiresFollowup: true,
		CollectedData:    extracted,
		NextAction:       action,
		BookingReady:     action == ActionShowCalendar,
	}
}

func servicesReply(p PracticeInfo) string {
	services := p.Services
	if len(services) == 0 {
		services = defaultServices
	}
	approach := p.Approach
	if approach == "" {
		approach = "evidence-based therapy tailored to your individual needs"
	}
	return fmt.Sprintf(`We offer a range of mental health services including:

%s

Our approach focuses on %s.

We provide both in-person and online sessions, and we accept most major insurance plans.

Would you like to schedule a consultation to discuss how we can help you?`, bulletList(services), approach)
}

func pricingReply(p PracticeInfo) string {
	insurance := p.InsuranceAccepted
	if insurance == "" {
		insurance = "most major providers"
	}
	return fmt.Sprintf(`Here's information about our fees and insurance:

**Insurance**: We accept most major insurance plans including %s.

**Session Fees**: Individual therapy sessions typically range from $120-180, depending on the type of session and your therapist's credentials.

**Payment Options**: We accept insurance, HSA/FSA, and self-pay options.

I'd recommend scheduling a brief consultation where we can:
%s Verify your specific insurance benefits
%s Discuss your needs and goals
%s Provide exact pricing for your situation

Would you like me to help you schedule that consultation?`, insurance, "•", "•", "•")
}

func generalReply(p PracticeInfo) string {
	name := p.Name
	if name == "" {
		name = "Our practice"
	}
	delivery := p.ServiceDelivery
	if delivery == "" {
		delivery = "in-person and online"
	}
	address := p.Address
	if address == "" {
		address = "Contact us for location details"
	}
	hours := p.Hours
	if hours == "" {
		hours = "Mon-Fri 9a-5p"
	}
	return fmt.Sprintf(`Thanks for reaching out! I'm here to help you learn about our practice and schedule an appointment.

**About Us**: %s provides %s therapy services.

**Location**: %s
**Hours**: %s

I can help you with:
%s Scheduling appointments
%s Information about our services
%s Insurance and pricing questions
%s Connecting you with the right therapist

What would be most helpful for you today?`, name, delivery, address, hours, "•", "•", "•", "•")
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}

// ConversationSummary renders the note body attached to a captured lead once
// a widget conversation wraps up.
func ConversationSummary(sess *Session) string {
	if sess == nil || sess.Messages == 0 {
		return "No conversation activity."
	}

	collected := "None"
	if len(sess.Collected) > 0 {
		keys := make([]string, 0, len(sess.Collected))
		for k := range sess.Collected {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		collected = strings.Join(keys, ", ")
	}

	status := "In progress"
	if sess.Collected["name"] != "" && sess.Collected["email"] != "" {
		status = "Ready to book"
	}

	intent := sess.Intent
	if intent == "" {
		intent = IntentGeneral
	}

	var b strings.Builder
	b.WriteString("**Conversation Summary**\n")
	fmt.Fprintf(&b, "- Total messages: %d\n", 2*sess.Messages)
	fmt.Fprintf(&b, "- Visitor messages: %d\n", sess.Messages)
	fmt.Fprintf(&b, "- Primary intent: %s\n", intent)
	fmt.Fprintf(&b, "- Information collected: %s\n", collected)
	fmt.Fprintf(&b, "- Booking status: %s\n", status)
	return b.String()
}
