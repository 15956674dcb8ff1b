package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
)

func setupHandler(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc, _ := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, svc
}

// withAuth injects the context a request would carry after the JWT
// middleware ran.
func withAuth(req *http.Request, practiceID, role string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.PracticeIDKey, practiceID)
	ctx = context.WithValue(ctx, auth.RoleKey, role)
	return req.WithContext(ctx)
}

func TestListConversations(t *testing.T) {
	e, svc := setupHandler(t)

	conv, _ := svc.Open(context.Background(), "practice-1", "session-1", BotSales)
	_ = svc.RecordExchange(context.Background(), conv, SenderVisitor, "hi", "Hello!", nil)
	_, _ = svc.Open(context.Background(), "practice-2", "session-9", BotSales)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil), "practice-1", auth.RoleOwner)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data  []Conversation `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 conversation for practice-1, got %d", resp.Total)
	}
}

func TestListConversations_RequiresPracticeContext(t *testing.T) {
	e, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.RoleKey, auth.RoleOwner))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without practice context, got %d", rec.Code)
	}
}

func TestListConversations_RejectsUnauthorizedRole(t *testing.T) {
	e, _ := setupHandler(t)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil), "practice-1", "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without role, got %d", rec.Code)
	}
}

func TestGetConversation(t *testing.T) {
	e, svc := setupHandler(t)

	conv, _ := svc.Open(context.Background(), "practice-1", "session-1", BotSales)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID.String(), nil), "practice-1", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.ID != conv.ID {
		t.Error("expected matching conversation")
	}
}

func TestGetConversation_ForeignPractice(t *testing.T) {
	e, svc := setupHandler(t)

	conv, _ := svc.Open(context.Background(), "practice-1", "session-1", BotSales)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID.String(), nil), "practice-2", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign practice, got %d", rec.Code)
	}
}

func TestGetHistory(t *testing.T) {
	e, svc := setupHandler(t)

	conv, _ := svc.Open(context.Background(), "practice-1", "session-1", BotSales)
	_ = svc.RecordExchange(context.Background(), conv, SenderVisitor, "what are your hours?", "We're open Mon-Fri 9-5.", nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID.String()+"/messages", nil), "practice-1", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Messages []HistoryEntry `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Sender != "You" || resp.Messages[1].Sender != "AI Support" {
		t.Errorf("unexpected senders: %s / %s", resp.Messages[0].Sender, resp.Messages[1].Sender)
	}
}

func TestCompleteConversation(t *testing.T) {
	e, svc := setupHandler(t)

	conv, _ := svc.Open(context.Background(), "practice-1", "session-1", BotSales)

	body := strings.NewReader(`{"outcome":"booked"}`)
	req := withAuth(httptest.NewRequest(http.MethodPatch, "/api/v1/conversations/"+conv.ID.String()+"/complete", body), "practice-1", auth.RoleStaff)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

func TestCompleteConversation_InvalidOutcome(t *testing.T) {
	e, svc := setupHandler(t)

	conv, _ := svc.Open(context.Background(), "practice-1", "session-1", BotSales)

	body := strings.NewReader(`{"outcome":"converted"}`)
	req := withAuth(httptest.NewRequest(http.MethodPatch, "/api/v1/conversations/"+conv.ID.String()+"/complete", body), "practice-1", auth.RoleStaff)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
