package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/moonraker/engage/internal/domain/conversation"
	"github.com/moonraker/engage/internal/platform/auth"
	"github.com/moonraker/engage/internal/platform/chatbot"
)

type supportFixture struct {
	e        *echo.Echo
	patients *Service
	convs    *conversation.Service
	tm       *auth.TokenManager
}

func setupSupportHandler(t *testing.T) *supportFixture {
	t.Helper()
	patients, _ := newTestService(t)
	convs := conversation.NewService(conversation.NewMemoryRepository())
	tm := auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour)

	h := NewSupportHandler(patients, convs, chatbot.NewPatientStore(0), zerolog.Nop())
	e := echo.New()
	h.RegisterPublicRoutes(e.Group("/api/public/v1"), tm)
	return &supportFixture{e: e, patients: patients, convs: convs, tm: tm}
}

// enrollPatient creates a patient with granted consent and returns their
// chat token.
func (f *supportFixture) enrollPatient(t *testing.T, practiceID string) (*Patient, string) {
	t.Helper()
	p := seedPatient(t, f.patients, practiceID)
	if _, err := f.patients.UpdateConsent(context.Background(), practiceID, p.ID, ConsentGranted); err != nil {
		t.Fatal(err)
	}
	token, err := f.tm.GeneratePatientToken(p.ID.String(), practiceID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return p, token
}

func postSupport(t *testing.T, e *echo.Echo, token, message, sessionID string) (*httptest.ResponseRecorder, supportResponse) {
	t.Helper()
	raw, _ := json.Marshal(map[string]string{"message": message})
	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/patient-chat/message", strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set("Session-Id", sessionID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp supportResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return rec, resp
}

func TestSupportChat_RequiresToken(t *testing.T) {
	f := setupSupportHandler(t)

	rec, _ := postSupport(t, f.e, "", "hello", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestSupportChat_ConsentGate(t *testing.T) {
	f := setupSupportHandler(t)

	p := seedPatient(t, f.patients, "practice-1")
	token, err := f.tm.GeneratePatientToken(p.ID.String(), "practice-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	rec, _ := postSupport(t, f.e, token, "hello", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for pending consent, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "consent required") {
		t.Errorf("expected consent message, got %s", rec.Body.String())
	}
}

func TestSupportChat_SupportiveReply(t *testing.T) {
	f := setupSupportHandler(t)
	_, token := f.enrollPatient(t, "practice-1")

	rec, resp := postSupport(t, f.e, token, "I've been feeling anxious before work", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.RiskLevel != "low" {
		t.Errorf("risk = %q, want low", resp.RiskLevel)
	}
	if resp.Escalated {
		t.Error("benign message should not escalate")
	}
	if resp.SessionID == "" {
		t.Error("expected a session id")
	}
	if resp.Message == "" {
		t.Error("expected a reply")
	}
}

func TestSupportChat_StoresExchange(t *testing.T) {
	f := setupSupportHandler(t)
	p, token := f.enrollPatient(t, "practice-1")

	rec, resp := postSupport(t, f.e, token, "feeling a bit down today", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	conv, err := f.convs.GetBySession(context.Background(), "practice-1", resp.SessionID)
	if err != nil {
		t.Fatalf("conversation not stored: %v", err)
	}
	if conv.Bot != conversation.BotSupport {
		t.Errorf("bot = %q, want support", conv.Bot)
	}
	if conv.PatientID == nil || *conv.PatientID != p.ID.String() {
		t.Error("expected patient attached to conversation")
	}
	if conv.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", conv.MessageCount)
	}
}

func TestSupportChat_SessionPersistsAcrossMessages(t *testing.T) {
	f := setupSupportHandler(t)
	_, token := f.enrollPatient(t, "practice-1")

	_, first := postSupport(t, f.e, token, "hello", "")
	rec, second := postSupport(t, f.e, token, "still feeling low", first.SessionID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session id changed: %q -> %q", first.SessionID, second.SessionID)
	}

	conv, err := f.convs.GetBySession(context.Background(), "practice-1", first.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if conv.MessageCount != 4 {
		t.Errorf("message count = %d, want 4", conv.MessageCount)
	}
}

func TestSupportChat_CrisisEscalation(t *testing.T) {
	f := setupSupportHandler(t)
	p, token := f.enrollPatient(t, "practice-1")

	rec, resp := postSupport(t, f.e, token, "I want to end my life", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.RiskLevel != "crisis" {
		t.Errorf("risk = %q, want crisis", resp.RiskLevel)
	}
	if !resp.Escalated || !resp.TherapistNotified {
		t.Error("expected escalated + therapist_notified")
	}
	if !strings.Contains(resp.Message, "988") {
		t.Error("crisis reply should carry the 988 lifeline")
	}
	if resp.Resources["suicide_lifeline"] == "" {
		t.Error("expected crisis resources")
	}

	alerts, total, err := f.patients.ListAlerts(context.Background(), "practice-1", AlertOpen, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("expected 1 open alert, got %d", total)
	}
	if alerts[0].PatientID != p.ID {
		t.Error("alert bound to wrong patient")
	}

	got, err := f.patients.Get(context.Background(), "practice-1", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RiskLevel != RiskCrisis {
		t.Errorf("patient risk = %q, want crisis", got.RiskLevel)
	}
}

func TestSupportChat_ElevatedRiskNoAlert(t *testing.T) {
	f := setupSupportHandler(t)
	_, token := f.enrollPatient(t, "practice-1")

	rec, resp := postSupport(t, f.e, token, "I keep hearing voices at night", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.RiskLevel != "high" {
		t.Errorf("risk = %q, want high", resp.RiskLevel)
	}
	if !resp.Escalated {
		t.Error("expected escalated for high risk")
	}
	if resp.TherapistNotified {
		t.Error("high risk should note the conversation, not page the therapist")
	}

	_, total, err := f.patients.ListAlerts(context.Background(), "practice-1", "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("expected no persisted alerts, got %d", total)
	}
}

func TestSupportChat_EmptyMessage(t *testing.T) {
	f := setupSupportHandler(t)
	_, token := f.enrollPatient(t, "practice-1")

	rec, _ := postSupport(t, f.e, token, "   ", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d", rec.Code)
	}
}

func TestSupportConsentEndpoint(t *testing.T) {
	f := setupSupportHandler(t)
	p := seedPatient(t, f.patients, "practice-1")
	token, err := f.tm.GeneratePatientToken(p.ID.String(), "practice-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		granted    bool
		wantStatus string
	}{
		{"granted", true, ConsentGranted},
		{"declined", false, ConsentRevoked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(map[string]bool{"granted": tt.granted})
			req := httptest.NewRequest(http.MethodPost, "/api/public/v1/patient-chat/consent", strings.NewReader(string(raw)))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			f.e.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp struct {
				ConsentStatus string   `json:"consent_status"`
				NextSteps     []string `json:"next_steps"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if resp.ConsentStatus != tt.wantStatus {
				t.Errorf("consent = %q, want %q", resp.ConsentStatus, tt.wantStatus)
			}
			if len(resp.NextSteps) == 0 {
				t.Error("expected next steps")
			}

			got, err := f.patients.Get(context.Background(), "practice-1", p.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.ConsentStatus != tt.wantStatus {
				t.Errorf("stored consent = %q, want %q", got.ConsentStatus, tt.wantStatus)
			}
		})
	}
}

func TestSupportHistory(t *testing.T) {
	f := setupSupportHandler(t)
	_, token := f.enrollPatient(t, "practice-1")

	_, resp := postSupport(t, f.e, token, "feeling overwhelmed at work", "")

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/patient-chat/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Session-Id", resp.SessionID)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var hist struct {
		Messages []conversation.HistoryEntry `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(hist.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(hist.Messages))
	}
	if hist.Messages[0].Sender != "You" || hist.Messages[1].Sender != "AI Support" {
		t.Errorf("unexpected senders: %s / %s", hist.Messages[0].Sender, hist.Messages[1].Sender)
	}
}

func TestSupportHistory_OtherPatientsSession(t *testing.T) {
	f := setupSupportHandler(t)
	_, token := f.enrollPatient(t, "practice-1")
	_, otherToken := f.enrollPatient(t, "practice-1")

	_, resp := postSupport(t, f.e, token, "hello", "")

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/patient-chat/history", nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	req.Header.Set("Session-Id", resp.SessionID)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another patient's session, got %d", rec.Code)
	}
}

func TestSupportEndSession(t *testing.T) {
	f := setupSupportHandler(t)
	_, token := f.enrollPatient(t, "practice-1")

	_, resp := postSupport(t, f.e, token, "I want to end my life", "")

	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/patient-chat/session/end", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Session-Id", resp.SessionID)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Status  string `json:"status"`
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.Status != "ended" {
		t.Errorf("status = %q, want ended", out.Status)
	}
	if out.Outcome != conversation.OutcomeEscalated {
		t.Errorf("outcome = %q, want escalated", out.Outcome)
	}

	conv, err := f.convs.GetBySession(context.Background(), "practice-1", resp.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if conv.Status != conversation.StatusCompleted {
		t.Errorf("conversation status = %q, want completed", conv.Status)
	}
}

// faultyConversationRepo fails every session lookup, standing in for a
// database outage.
type faultyConversationRepo struct {
	*conversation.MemoryRepository
}

func (r *faultyConversationRepo) GetBySession(context.Context, string, string) (*conversation.Conversation, error) {
	return nil, errors.New("connection reset")
}

func TestSupportEndSession_LookupFailureLogged(t *testing.T) {
	patients, _ := newTestService(t)
	convs := conversation.NewService(&faultyConversationRepo{conversation.NewMemoryRepository()})
	tm := auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour)

	var logs bytes.Buffer
	h := NewSupportHandler(patients, convs, chatbot.NewPatientStore(0), zerolog.New(&logs))
	e := echo.New()
	h.RegisterPublicRoutes(e.Group("/api/public/v1"), tm)
	f := &supportFixture{e: e, patients: patients, convs: convs, tm: tm}
	_, token := f.enrollPatient(t, "practice-1")

	_, resp := postSupport(t, f.e, token, "how do I reschedule?", "")
	if resp.SessionID == "" {
		t.Fatal("expected a session id")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/patient-chat/session/end", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Session-Id", resp.SessionID)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(logs.String(), "conversation lookup failed") {
		t.Errorf("expected lookup failure in log, got %s", logs.String())
	}
}

func TestSupportEndSession_UnknownSession(t *testing.T) {
	f := setupSupportHandler(t)
	_, token := f.enrollPatient(t, "practice-1")

	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/patient-chat/session/end", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Session-Id", "session_nope")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestEmergencyResources_Public(t *testing.T) {
	f := setupSupportHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/patient-chat/emergency-resources", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "988") || !strings.Contains(body, "741741") {
		t.Error("expected 988 lifeline and crisis text line in resources")
	}
	if !strings.Contains(body, "safety_plan") {
		t.Error("expected safety plan")
	}
}

func TestWellnessCheck_Public(t *testing.T) {
	f := setupSupportHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/patient-chat/wellness-check", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected wellness payload: %s", rec.Body.String())
	}
}
