package chatbot

import (
	"strings"
	"testing"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"booking keyword", "I'd like to schedule an appointment", IntentBooking},
		{"booking via availability", "what's your availability next week", IntentBooking},
		{"pricing keyword", "how much does a session cost", IntentPricing},
		{"insurance is pricing", "do you take insurance", IntentPricing},
		{"services keyword", "what kind of therapy do you offer", IntentServices},
		{"emergency wins over booking", "this is an emergency, I need an appointment", IntentEmergency},
		{"crisis keyword", "I'm in crisis", IntentEmergency},
		{"general fallthrough", "hello there", IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyIntent(tt.message); got != tt.want {
				t.Errorf("ClassifyIntent(%q) = %s, want %s", tt.message, got, tt.want)
			}
		})
	}
}

func TestSalesReply_EmergencyCarriesCrisisResources(t *testing.T) {
	sess := &Session{}
	resp := SalesReply("I'm having a crisis", sess, PracticeInfo{}, AppointmentConfig{})

	if resp.Intent != IntentEmergency {
		t.Fatalf("Intent = %s, want %s", resp.Intent, IntentEmergency)
	}
	if resp.NextAction != ActionNotifyStaff {
		t.Errorf("NextAction = %s, want %s", resp.NextAction, ActionNotifyStaff)
	}
	for _, want := range []string{"988", "741741", "911"} {
		if !strings.Contains(resp.Message, want) {
			t.Errorf("emergency reply missing %q", want)
		}
	}
}

func TestSalesReply_BookingLadder(t *testing.T) {
	sess := &Session{Collected: make(map[string]string)}
	appt := AppointmentConfig{Types: []string{"Initial Consultation"}}

	steps := []struct {
		message    string
		wantAction string
	}{
		{"I want to book an appointment", ActionCollectName},
		{"my name is Jane Doe, let's schedule", ActionCollectEmail},
		{"jane@example.com works, book me", ActionCollectPhone},
		{"413-555-0101 is my number, schedule away", ActionCollectApptType},
	}
	for _, step := range steps {
		resp := SalesReply(step.message, sess, PracticeInfo{}, appt)
		if resp.Intent != IntentBooking {
			t.Fatalf("SalesReply(%q).Intent = %s, want %s", step.message, resp.Intent, IntentBooking)
		}
		if resp.NextAction != step.wantAction {
			t.Fatalf("SalesReply(%q).NextAction = %s, want %s", step.message, resp.NextAction, step.wantAction)
		}
		if resp.BookingReady {
			t.Fatalf("BookingReady before ladder complete")
		}
	}

	sess.Collected["appointment_type"] = "Initial Consultation"
	resp := SalesReply("book it please", sess, PracticeInfo{}, appt)
	if resp.NextAction != ActionShowCalendar {
		t.Fatalf("NextAction = %s, want %s", resp.NextAction, ActionShowCalendar)
	}
	if !resp.BookingReady {
		t.Errorf("BookingReady = false once all fields collected")
	}
}

func TestSalesReply_CollectsContactAcrossMessages(t *testing.T) {
	sess := &Session{}

	SalesReply("my name is John Smith, and I need an appointment", sess, PracticeInfo{}, AppointmentConfig{})
	SalesReply("you can reach me at john@smith.io to schedule", sess, PracticeInfo{}, AppointmentConfig{})

	if sess.Collected["name"] != "John Smith" {
		t.Errorf("Collected[name] = %q, want %q", sess.Collected["name"], "John Smith")
	}
	if sess.Collected["email"] != "john@smith.io" {
		t.Errorf("Collected[email] = %q, want %q", sess.Collected["email"], "john@smith.io")
	}
	if sess.Messages != 2 {
		t.Errorf("Messages = %d, want 2", sess.Messages)
	}
}

func TestSalesReply_PracticeInfoShapesAnswers(t *testing.T) {
	practice := PracticeInfo{
		Name:              "Intensive Therapy Retreats",
		InsuranceAccepted: "Aetna and BCBS",
		Services:          []string{"EMDR intensives"},
	}

	pricing := SalesReply("what are your fees", &Session{}, practice, AppointmentConfig{})
	if !strings.Contains(pricing.Message, "Aetna and BCBS") {
		t.Errorf("pricing reply missing configured insurance: %q", pricing.Message)
	}

	services := SalesReply("what do you treat", &Session{}, practice, AppointmentConfig{})
	if !strings.Contains(services.Message, "EMDR intensives") {
		t.Errorf("services reply missing configured services")
	}

	general := SalesReply("hello", &Session{}, practice, AppointmentConfig{})
	if !strings.Contains(general.Message, "Intensive Therapy Retreats") {
		t.Errorf("general reply missing practice name")
	}
}

func TestFallback(t *testing.T) {
	resp := Fallback()
	if resp.Intent != IntentError {
		t.Errorf("Intent = %s, want %s", resp.Intent, IntentError)
	}
	if resp.Message != FallbackMessage {
		t.Errorf("Message = %q, want canned fallback", resp.Message)
	}
}

func TestConversationSummary(t *testing.T) {
	sess := &Session{
		Intent:   IntentBooking,
		Messages: 3,
		Collected: map[string]string{
			"name":  "Jane Doe",
			"email": "jane@example.com",
		},
	}

	got := ConversationSummary(sess)
	for _, want := range []string{"Visitor messages: 3", "Primary intent: booking", "email, name", "Ready to book"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}

	if got := ConversationSummary(nil); got != "No conversation activity." {
		t.Errorf("nil session summary = %q", got)
	}
}
