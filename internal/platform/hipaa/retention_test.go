package hipaa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.Disabled)
}

// --- DefaultRetentionPolicies tests ---

func TestDefaultRetentionPolicies_CoversRequiredTypes(t *testing.T) {
	policies := DefaultRetentionPolicies()
	required := map[string]bool{
		"chat_transcript": false,
		"session_summary": false,
		"crisis_alert":    false,
		"audit_log":       false,
		"consent_record":  false,
		"temporary_data":  false,
	}

	for _, p := range policies {
		if _, ok := required[p.ResourceType]; ok {
			required[p.ResourceType] = true
		}
	}

	for rt, found := range required {
		if !found {
			t.Errorf("DefaultRetentionPolicies missing required type: %s", rt)
		}
	}
}

func TestDefaultRetentionPolicies_Transcripts6Years(t *testing.T) {
	policies := DefaultRetentionPolicies()
	for _, p := range policies {
		if p.ResourceType == "chat_transcript" {
			if p.RetentionDays < 2190 {
				t.Errorf("chat_transcript retention should be at least 6 years (2190 days), got %d", p.RetentionDays)
			}
			if p.PurgeAfter != 0 {
				t.Errorf("chat_transcript should never be purged (PurgeAfter=0), got %d", p.PurgeAfter)
			}
			return
		}
	}
	t.Error("chat_transcript policy not found")
}

func TestDefaultRetentionPolicies_AuditLog6Years(t *testing.T) {
	policies := DefaultRetentionPolicies()
	for _, p := range policies {
		if p.ResourceType == "audit_log" {
			if p.RetentionDays < 2190 {
				t.Errorf("audit_log retention should be at least 6 years (2190 days), got %d", p.RetentionDays)
			}
			return
		}
	}
	t.Error("audit_log policy not found")
}

func TestDefaultRetentionPolicies_CrisisAlertsNeverPurged(t *testing.T) {
	policies := DefaultRetentionPolicies()
	for _, p := range policies {
		if p.ResourceType == "crisis_alert" {
			if p.PurgeAfter != 0 {
				t.Errorf("crisis_alert should never be purged (PurgeAfter=0), got %d", p.PurgeAfter)
			}
			return
		}
	}
	t.Error("crisis_alert policy not found")
}

func TestDefaultRetentionPolicies_ConsentRecords10Years(t *testing.T) {
	policies := DefaultRetentionPolicies()
	for _, p := range policies {
		if p.ResourceType == "consent_record" {
			if p.RetentionDays < 3650 {
				t.Errorf("consent_record retention should be at least 10 years (3650 days), got %d", p.RetentionDays)
			}
			if p.PurgeAfter != 0 {
				t.Errorf("consent_record should never be purged (PurgeAfter=0), got %d", p.PurgeAfter)
			}
			return
		}
	}
	t.Error("consent_record policy not found")
}

func TestDefaultRetentionPolicies_TempData90Days(t *testing.T) {
	policies := DefaultRetentionPolicies()
	for _, p := range policies {
		if p.ResourceType == "temporary_data" {
			if p.RetentionDays != 90 {
				t.Errorf("temporary_data retention should be 90 days, got %d", p.RetentionDays)
			}
			if p.PurgeAfter != 90 {
				t.Errorf("temporary_data purge should be 90 days, got %d", p.PurgeAfter)
			}
			return
		}
	}
	t.Error("temporary_data policy not found")
}

func TestDefaultRetentionPolicies_AllHaveDescriptions(t *testing.T) {
	policies := DefaultRetentionPolicies()
	for _, p := range policies {
		if p.Description == "" {
			t.Errorf("policy %s has no description", p.ResourceType)
		}
	}
}

// --- RetentionService tests ---

func TestRetentionService_GetPolicy_Known(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	policy := svc.GetPolicy("chat_transcript")
	if policy == nil {
		t.Fatal("expected policy for chat_transcript, got nil")
	}
	if policy.ResourceType != "chat_transcript" {
		t.Errorf("expected resource type chat_transcript, got %s", policy.ResourceType)
	}
}

func TestRetentionService_GetPolicy_Unknown(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	policy := svc.GetPolicy("nonexistent_type")
	if policy != nil {
		t.Errorf("expected nil for unknown resource type, got %+v", policy)
	}
}

func TestRetentionService_GetAllPolicies(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	policies := svc.GetAllPolicies()
	if len(policies) != 6 {
		t.Errorf("expected 6 policies, got %d", len(policies))
	}
}

func TestRetentionService_SetPolicy_Overrides(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())

	svc.SetPolicy(RetentionPolicy{
		ResourceType:  "audit_log",
		RetentionDays: 3650,
		PurgeAfter:    3650,
		Description:   "extended by state law",
	})

	policy := svc.GetPolicy("audit_log")
	if policy == nil {
		t.Fatal("expected audit_log policy")
	}
	if policy.RetentionDays != 3650 {
		t.Errorf("expected overridden retention 3650, got %d", policy.RetentionDays)
	}
}

func TestRetentionService_CheckRetention_Active(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())

	// A session summary created 1 year ago should be active (ArchiveAfter=2 years)
	createdAt := time.Now().UTC().AddDate(-1, 0, 0)
	status := svc.CheckRetention("session_summary", createdAt)

	if status.State != RetentionStateActive {
		t.Errorf("expected state %s, got %s", RetentionStateActive, status.State)
	}
	if status.PolicyName != "session_summary" {
		t.Errorf("expected policy name session_summary, got %s", status.PolicyName)
	}
}

func TestRetentionService_CheckRetention_ArchiveEligible(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())

	// An audit log created 4 years ago should be archive-eligible (ArchiveAfter=3 years)
	createdAt := time.Now().UTC().AddDate(-4, 0, 0)
	status := svc.CheckRetention("audit_log", createdAt)

	if status.State != RetentionStateArchiveEligible {
		t.Errorf("expected state %s, got %s", RetentionStateArchiveEligible, status.State)
	}
	if status.PolicyName != "audit_log" {
		t.Errorf("expected policy name audit_log, got %s", status.PolicyName)
	}
}

func TestRetentionService_CheckRetention_PurgeEligible(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())

	// Temporary data created 100 days ago should be purge-eligible (PurgeAfter=90 days)
	createdAt := time.Now().UTC().AddDate(0, 0, -100)
	status := svc.CheckRetention("temporary_data", createdAt)

	if status.State != RetentionStatePurgeEligible {
		t.Errorf("expected state %s, got %s", RetentionStatePurgeEligible, status.State)
	}
	if status.PolicyName != "temporary_data" {
		t.Errorf("expected policy name temporary_data, got %s", status.PolicyName)
	}
}

func TestRetentionService_CheckRetention_UnknownType(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())

	status := svc.CheckRetention("unknown_type", time.Now().UTC().AddDate(-10, 0, 0))

	if status.State != RetentionStateActive {
		t.Errorf("expected state %s for unknown type, got %s", RetentionStateActive, status.State)
	}
	if status.PolicyName != "unknown" {
		t.Errorf("expected policy name 'unknown', got %s", status.PolicyName)
	}
}

func TestRetentionService_CheckRetention_NeverPurge(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())

	// Chat transcripts should never reach purge-eligible (PurgeAfter=0)
	createdAt := time.Now().UTC().AddDate(-20, 0, 0) // 20 years old
	status := svc.CheckRetention("chat_transcript", createdAt)

	if status.State == RetentionStatePurgeEligible {
		t.Error("chat transcripts should never be purge-eligible")
	}
}

func TestRetentionService_CheckRetention_AuditPurge(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())

	// An audit log created 8 years ago should be purge-eligible (PurgeAfter=7 years)
	createdAt := time.Now().UTC().AddDate(-8, 0, 0)
	status := svc.CheckRetention("audit_log", createdAt)

	if status.State != RetentionStatePurgeEligible {
		t.Errorf("expected state %s, got %s", RetentionStatePurgeEligible, status.State)
	}
}

// --- Sweep tests ---

type mockPurger struct {
	cutoff time.Time
	purged int64
	err    error
	called bool
}

func (m *mockPurger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.called = true
	m.cutoff = cutoff
	return m.purged, m.err
}

func TestSweepAuditLogs_PurgesPastWindow(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	purger := &mockPurger{purged: 42}

	n, err := svc.SweepAuditLogs(context.Background(), purger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("expected 42 purged, got %d", n)
	}
	if !purger.called {
		t.Fatal("expected purger to be called")
	}

	// Cutoff should be roughly PurgeAfter days ago.
	wantCutoff := time.Now().UTC().AddDate(0, 0, -2555)
	if diff := purger.cutoff.Sub(wantCutoff); diff < -time.Hour || diff > time.Hour {
		t.Errorf("cutoff %v not within an hour of expected %v", purger.cutoff, wantCutoff)
	}
}

func TestSweepAuditLogs_NoPurgeWindow(t *testing.T) {
	svc := NewRetentionService([]RetentionPolicy{
		{ResourceType: "audit_log", RetentionDays: 2190, PurgeAfter: 0},
	}, testLogger())
	purger := &mockPurger{}

	n, err := svc.SweepAuditLogs(context.Background(), purger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 purged, got %d", n)
	}
	if purger.called {
		t.Error("purger should not be called when no purge window is set")
	}
}

func TestSweepAuditLogs_PurgerError(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	purger := &mockPurger{err: errors.New("db down")}

	_, err := svc.SweepAuditLogs(context.Background(), purger)
	if err == nil {
		t.Fatal("expected error from failing purger")
	}
}

// --- Handler tests ---

func TestRetentionHandler_ListPolicies(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	h := NewRetentionHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/retention-policies", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleListPolicies(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	total, ok := resp["total"].(float64)
	if !ok || int(total) != 6 {
		t.Errorf("expected total 6, got %v", resp["total"])
	}

	policies, ok := resp["policies"].([]interface{})
	if !ok || len(policies) != 6 {
		t.Errorf("expected 6 policies in response, got %v", len(policies))
	}
}

func TestRetentionHandler_GetPolicy_Found(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	h := NewRetentionHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/retention-policies/chat_transcript", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("chat_transcript")

	if err := h.HandleGetPolicy(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var policy RetentionPolicy
	if err := json.Unmarshal(rec.Body.Bytes(), &policy); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if policy.ResourceType != "chat_transcript" {
		t.Errorf("expected resource type chat_transcript, got %s", policy.ResourceType)
	}
}

func TestRetentionHandler_GetPolicy_NotFound(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	h := NewRetentionHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/retention-policies/nonexistent", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("nonexistent")

	if err := h.HandleGetPolicy(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestRetentionHandler_RetentionStatus(t *testing.T) {
	svc := NewRetentionService(DefaultRetentionPolicies(), testLogger())
	h := NewRetentionHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/retention-status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleRetentionStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	summaries, ok := resp["summaries"].([]interface{})
	if !ok {
		t.Fatal("expected summaries array in response")
	}
	if len(summaries) != 6 {
		t.Errorf("expected 6 summaries, got %d", len(summaries))
	}
}

func TestRetentionService_CustomPolicies(t *testing.T) {
	custom := []RetentionPolicy{
		{
			ResourceType:  "custom_type",
			RetentionDays: 365,
			ArchiveAfter:  180,
			PurgeAfter:    730,
			Description:   "Custom policy",
		},
	}
	svc := NewRetentionService(custom, testLogger())

	policy := svc.GetPolicy("custom_type")
	if policy == nil {
		t.Fatal("expected custom policy, got nil")
	}
	if policy.RetentionDays != 365 {
		t.Errorf("expected 365 retention days, got %d", policy.RetentionDays)
	}

	all := svc.GetAllPolicies()
	if len(all) != 1 {
		t.Errorf("expected 1 policy, got %d", len(all))
	}
}
