package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/moonraker/engage/internal/platform/chatbot"
	"github.com/moonraker/engage/internal/platform/db"
	"github.com/moonraker/engage/internal/platform/mcp"
)

// -- Fake CRM --

type fakeCRM struct {
	configured   bool
	fail         bool
	leads        []mcp.LeadParams
	notes        map[string][]string
	appointments []mcp.AppointmentParams
}

func newFakeCRM(configured bool) *fakeCRM {
	return &fakeCRM{configured: configured, notes: make(map[string][]string)}
}

func (f *fakeCRM) Configured() bool { return f.configured }

func (f *fakeCRM) CreateLeadContact(_ context.Context, p mcp.LeadParams) (*mcp.Contact, error) {
	if f.fail {
		return nil, errors.New("mcp: connection refused")
	}
	f.leads = append(f.leads, p)
	return &mcp.Contact{ID: fmt.Sprintf("contact-%d", len(f.leads))}, nil
}

func (f *fakeCRM) AddContactNote(_ context.Context, contactID, note string) error {
	if f.fail {
		return errors.New("mcp: connection refused")
	}
	f.notes[contactID] = append(f.notes[contactID], note)
	return nil
}

func (f *fakeCRM) EnsureTherapyCalendar(_ context.Context) (string, error) {
	if f.fail {
		return "", errors.New("mcp: connection refused")
	}
	return "cal-1", nil
}

func (f *fakeCRM) CreateAppointment(_ context.Context, p mcp.AppointmentParams) (*mcp.Appointment, error) {
	if f.fail {
		return nil, errors.New("mcp: connection refused")
	}
	f.appointments = append(f.appointments, p)
	return &mcp.Appointment{ID: fmt.Sprintf("appt-%d", len(f.appointments))}, nil
}

// -- Setup --

func setupChatHandler(t *testing.T, crm *fakeCRM) (*echo.Echo, *Service) {
	t.Helper()
	svc, _ := newTestService()
	h := NewChatHandler(svc, chatbot.NewStore(0), crm, zerolog.Nop())
	e := echo.New()
	h.RegisterPublicRoutes(e.Group("/api/public/v1", db.PracticeScope("")))
	return e, svc
}

func postChat(t *testing.T, e *echo.Echo, practiceID, message, sessionID string) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	body := map[string]string{"message": message}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/chat/message", strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	if practiceID != "" {
		req.Header.Set("X-Practice-ID", practiceID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp chatResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return rec, resp
}

// -- Tests --

func TestChat_GeneralMessage(t *testing.T) {
	e, _ := setupChatHandler(t, newFakeCRM(false))

	rec, resp := postChat(t, e, "practice-1", "hello there", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Intent != chatbot.IntentGeneral {
		t.Errorf("expected general intent, got %s", resp.Intent)
	}
	if resp.SessionID == "" {
		t.Error("expected a session id")
	}
	if resp.GHLConnected {
		t.Error("expected ghl_connected false with unconfigured CRM")
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	e, _ := setupChatHandler(t, newFakeCRM(false))

	rec, _ := postChat(t, e, "practice-1", "   ", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d", rec.Code)
	}
}

func TestChat_MissingPractice(t *testing.T) {
	e, _ := setupChatHandler(t, newFakeCRM(false))

	rec, _ := postChat(t, e, "", "hello", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without practice, got %d", rec.Code)
	}
}

func TestChat_EmergencyCarriesCrisisResources(t *testing.T) {
	e, _ := setupChatHandler(t, newFakeCRM(false))

	_, resp := postChat(t, e, "practice-1", "this is an emergency, I need help", "")
	if resp.Intent != chatbot.IntentEmergency {
		t.Fatalf("expected emergency intent, got %s", resp.Intent)
	}
	if !strings.Contains(resp.Message, "988") {
		t.Error("emergency reply should carry the 988 lifeline")
	}
	if resp.NextAction != chatbot.ActionNotifyStaff {
		t.Errorf("expected notify_staff action, got %s", resp.NextAction)
	}
}

func TestChat_BookingFlowProgresses(t *testing.T) {
	e, _ := setupChatHandler(t, newFakeCRM(false))

	_, first := postChat(t, e, "practice-1", "I'd like to schedule an appointment", "")
	if first.Intent != chatbot.IntentBooking {
		t.Fatalf("expected booking intent, got %s", first.Intent)
	}
	if first.NextAction != chatbot.ActionCollectName {
		t.Errorf("expected collect_name, got %s", first.NextAction)
	}

	_, second := postChat(t, e, "practice-1", "my name is sarah johnson", first.SessionID)
	if second.NextAction != chatbot.ActionCollectEmail {
		t.Errorf("expected collect_email after name, got %s", second.NextAction)
	}
	if second.SessionID != first.SessionID {
		t.Error("expected the session to persist across messages")
	}
}

func TestChat_LeadCapture(t *testing.T) {
	crm := newFakeCRM(true)
	e, svc := setupChatHandler(t, crm)

	_, first := postChat(t, e, "practice-1", "my name is sarah johnson", "")
	if first.ContactCreated {
		t.Error("no contact should be created before contact info arrives")
	}

	_, second := postChat(t, e, "practice-1", "you can reach me at sarah@example.com", first.SessionID)
	if !second.ContactCreated {
		t.Fatal("expected contact_created once an email arrived")
	}
	if !second.GHLConnected {
		t.Error("expected ghl_connected true")
	}
	if len(crm.leads) != 1 {
		t.Fatalf("expected 1 lead in CRM, got %d", len(crm.leads))
	}
	if crm.leads[0].Email != "sarah@example.com" {
		t.Errorf("unexpected lead email: %s", crm.leads[0].Email)
	}
	if crm.leads[0].Name != "Sarah Johnson" {
		t.Errorf("unexpected lead name: %s", crm.leads[0].Name)
	}
	if len(crm.notes["contact-1"]) != 1 {
		t.Errorf("expected a conversation note on the contact, got %d", len(crm.notes["contact-1"]))
	}

	conv, err := svc.GetBySession(context.Background(), "practice-1", first.SessionID)
	if err != nil {
		t.Fatalf("conversation lookup: %v", err)
	}
	if conv.ContactID == nil || *conv.ContactID != "contact-1" {
		t.Errorf("expected contact attached to conversation, got %v", conv.ContactID)
	}
	if conv.Outcome == nil || *conv.Outcome != OutcomeLeadCaptured {
		t.Errorf("expected lead_captured outcome, got %v", conv.Outcome)
	}

	// A later message must not create a second contact.
	_, third := postChat(t, e, "practice-1", "thanks!", first.SessionID)
	if third.ContactCreated {
		t.Error("contact should only be created once per session")
	}
	if len(crm.leads) != 1 {
		t.Errorf("expected 1 lead after followup, got %d", len(crm.leads))
	}
}

func TestChat_CRMFailureReturnsFallback(t *testing.T) {
	crm := newFakeCRM(true)
	crm.fail = true
	e, _ := setupChatHandler(t, crm)

	rec, resp := postChat(t, e, "practice-1", "my email is sarah@example.com", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("widget must never see an error status, got %d", rec.Code)
	}
	if resp.Intent != chatbot.IntentError {
		t.Errorf("expected error intent, got %s", resp.Intent)
	}
	if resp.Message != chatbot.FallbackMessage {
		t.Errorf("expected canned fallback, got %q", resp.Message)
	}
}

func postBook(t *testing.T, e *echo.Echo, practiceID, sessionID, startTime string) (*httptest.ResponseRecorder, bookResponse) {
	t.Helper()
	raw, _ := json.Marshal(map[string]string{
		"session_id": sessionID,
		"start_time": startTime,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/chat/book", strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	if practiceID != "" {
		req.Header.Set("X-Practice-ID", practiceID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp bookResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding book response: %v", err)
		}
	}
	return rec, resp
}

// bookableSession walks a widget session far enough to have a name and an
// email on file, then returns its id.
func bookableSession(t *testing.T, e *echo.Echo, practiceID string) string {
	t.Helper()
	_, first := postChat(t, e, practiceID, "my name is sarah johnson", "")
	postChat(t, e, practiceID, "you can reach me at sarah@example.com", first.SessionID)
	return first.SessionID
}

func TestChatSlots_GeneratedFromDefaults(t *testing.T) {
	e, _ := setupChatHandler(t, newFakeCRM(false))

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/chat/slots", nil)
	req.Header.Set("X-Practice-ID", "practice-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Slots []string `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) == 0 {
		t.Fatal("expected at least one open slot from the default schedule")
	}
	for _, s := range resp.Slots {
		at, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatalf("slot %q is not RFC 3339: %v", s, err)
		}
		switch at.Weekday() {
		case time.Saturday, time.Sunday:
			t.Errorf("default schedule offered a weekend slot: %s", s)
		}
	}
}

func TestChatBook_WithoutCRM(t *testing.T) {
	e, svc := setupChatHandler(t, newFakeCRM(false))
	sessionID := bookableSession(t, e, "practice-1")
	start := "2026-09-07T10:00:00Z"

	rec, resp := postBook(t, e, "practice-1", sessionID, start)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.Booked {
		t.Error("expected booked true")
	}
	if resp.AppointmentID != "" {
		t.Errorf("no CRM appointment expected, got %s", resp.AppointmentID)
	}

	conv, err := svc.GetBySession(context.Background(), "practice-1", sessionID)
	if err != nil {
		t.Fatalf("conversation lookup: %v", err)
	}
	if conv.Outcome == nil || *conv.Outcome != OutcomeBooked {
		t.Errorf("expected booked outcome, got %v", conv.Outcome)
	}

	// The slot is held, so a second visitor cannot take the same time.
	other := bookableSession(t, e, "practice-1")
	rec, _ = postBook(t, e, "practice-1", other, start)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a taken slot, got %d", rec.Code)
	}
}

func TestChatBook_CreatesCRMAppointment(t *testing.T) {
	crm := newFakeCRM(true)
	e, _ := setupChatHandler(t, crm)
	sessionID := bookableSession(t, e, "practice-1")

	rec, resp := postBook(t, e, "practice-1", sessionID, "2026-09-08T14:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.AppointmentID != "appt-1" {
		t.Errorf("appointment_id = %q, want appt-1", resp.AppointmentID)
	}
	if len(crm.appointments) != 1 {
		t.Fatalf("expected 1 CRM appointment, got %d", len(crm.appointments))
	}
	booked := crm.appointments[0]
	if booked.CalendarID != "cal-1" {
		t.Errorf("calendar = %q", booked.CalendarID)
	}
	if got := booked.EndTime.Sub(booked.StartTime); got != sessionLength {
		t.Errorf("session length = %v, want %v", got, sessionLength)
	}
	if !strings.Contains(booked.Title, "Sarah Johnson") {
		t.Errorf("title should carry the visitor name, got %q", booked.Title)
	}
}

func TestChatBook_IncompleteDetails(t *testing.T) {
	e, _ := setupChatHandler(t, newFakeCRM(false))

	// Session exists but only has a name.
	_, first := postChat(t, e, "practice-1", "my name is sarah johnson", "")

	rec, _ := postBook(t, e, "practice-1", first.SessionID, "2026-09-07T10:00:00Z")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without contact info, got %d", rec.Code)
	}
}

func TestChatBook_CRMFailureReleasesSlot(t *testing.T) {
	crm := newFakeCRM(true)
	e, _ := setupChatHandler(t, crm)
	sessionID := bookableSession(t, e, "practice-1")
	start := "2026-09-09T11:00:00Z"

	crm.fail = true
	rec, resp := postBook(t, e, "practice-1", sessionID, start)
	if rec.Code != http.StatusOK {
		t.Fatalf("widget must never see an error status, got %d", rec.Code)
	}
	if resp.Booked {
		t.Error("expected fallback, not a booking")
	}

	// The failed attempt must not hold the slot.
	crm.fail = false
	rec, resp = postBook(t, e, "practice-1", sessionID, start)
	if rec.Code != http.StatusOK || !resp.Booked {
		t.Errorf("retry should succeed, got %d booked=%v", rec.Code, resp.Booked)
	}
}

func TestChat_TopicRecorded(t *testing.T) {
	e, svc := setupChatHandler(t, newFakeCRM(false))

	_, resp := postChat(t, e, "practice-1", "I'd like to schedule an appointment", "")

	conv, err := svc.GetBySession(context.Background(), "practice-1", resp.SessionID)
	if err != nil {
		t.Fatalf("conversation lookup: %v", err)
	}
	if conv.Topic == nil || *conv.Topic != "Appointment Scheduling" {
		t.Errorf("expected Appointment Scheduling topic, got %v", conv.Topic)
	}
}

func TestTopicFor(t *testing.T) {
	tests := []struct {
		intent  string
		message string
		want    string
	}{
		{chatbot.IntentBooking, "book me in", "Appointment Scheduling"},
		{chatbot.IntentPricing, "how much", "Pricing"},
		{chatbot.IntentServices, "what do you treat", "Service Information"},
		{chatbot.IntentGeneral, "do you take insurance?", "Insurance Questions"},
		{chatbot.IntentGeneral, "what are your hours", "Office Hours"},
		{chatbot.IntentGeneral, "hello", ""},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := topicFor(tt.intent, tt.message); got != tt.want {
				t.Errorf("topicFor(%s, %q) = %q, want %q", tt.intent, tt.message, got, tt.want)
			}
		})
	}
}
