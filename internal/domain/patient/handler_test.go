package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
	"github.com/moonraker/engage/internal/platform/crisis"
)

func setupHandler(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
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

func TestCreatePatient(t *testing.T) {
	e, _ := setupHandler(t)

	body := strings.NewReader(`{"first_name":"Jane","last_name":"Doe","email":"jane@example.com"}`)
	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/patients", body), "practice-1", auth.RoleOwner)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.PracticeID != "practice-1" {
		t.Errorf("practice_id = %q, want practice-1", got.PracticeID)
	}
	if got.ConsentStatus != ConsentPending {
		t.Errorf("consent = %q, want pending", got.ConsentStatus)
	}
}

func TestCreatePatient_RejectsStaffRole(t *testing.T) {
	e, _ := setupHandler(t)

	body := strings.NewReader(`{"first_name":"Jane","last_name":"Doe"}`)
	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/patients", body), "practice-1", auth.RoleStaff)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for staff role, got %d", rec.Code)
	}
}

func TestListPatients_ScopedToPractice(t *testing.T) {
	e, svc := setupHandler(t)

	seedPatient(t, svc, "practice-1")
	seedPatient(t, svc, "practice-2")

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), "practice-1", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data  []Patient `json:"data"`
		Total int       `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 patient for practice-1, got %d", resp.Total)
	}
}

func TestListPatients_RequiresPracticeContext(t *testing.T) {
	e, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.RoleKey, auth.RoleOwner))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without practice context, got %d", rec.Code)
	}
}

func TestGetPatient_ForeignPractice(t *testing.T) {
	e, svc := setupHandler(t)

	p := seedPatient(t, svc, "practice-1")

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+p.ID.String(), nil), "practice-2", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign practice, got %d", rec.Code)
	}
}

func TestUpdateConsentEndpoint(t *testing.T) {
	e, svc := setupHandler(t)

	p := seedPatient(t, svc, "practice-1")

	body := strings.NewReader(`{"consent_status":"granted"}`)
	req := withAuth(httptest.NewRequest(http.MethodPut, "/api/v1/patients/"+p.ID.String()+"/consent", body), "practice-1", auth.RoleOwner)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.ConsentStatus != ConsentGranted {
		t.Errorf("consent = %q, want granted", got.ConsentStatus)
	}
}

func TestUpdateConsentEndpoint_InvalidStatus(t *testing.T) {
	e, svc := setupHandler(t)

	p := seedPatient(t, svc, "practice-1")

	body := strings.NewReader(`{"consent_status":"maybe"}`)
	req := withAuth(httptest.NewRequest(http.MethodPut, "/api/v1/patients/"+p.ID.String()+"/consent", body), "practice-1", auth.RoleOwner)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateRiskEndpoint(t *testing.T) {
	e, svc := setupHandler(t)

	p := seedPatient(t, svc, "practice-1")

	body := strings.NewReader(`{"risk_level":"high"}`)
	req := withAuth(httptest.NewRequest(http.MethodPut, "/api/v1/patients/"+p.ID.String()+"/risk", body), "practice-1", auth.RoleTherapist)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.RiskLevel != RiskHigh {
		t.Errorf("risk = %q, want high", got.RiskLevel)
	}
}

func TestListAlertsEndpoint(t *testing.T) {
	e, svc := setupHandler(t)

	p := seedPatient(t, svc, "practice-1")
	alert := crisis.BuildAlert("anon-1", "I want to end my life", crisis.Assessment{Risk: crisis.RiskCrisis, Escalate: true})
	if _, err := svc.RecordAlert(context.Background(), "practice-1", p.ID, alert); err != nil {
		t.Fatal(err)
	}

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/alerts?status=open", nil), "practice-1", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data  []CrisisAlert `json:"data"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected 1 open alert, got %d", resp.Total)
	}
	if resp.Data[0].AlertType != crisis.AlertSuicideIdeation {
		t.Errorf("alert_type = %q, want suicide_ideation", resp.Data[0].AlertType)
	}
}

func TestListAlertsEndpoint_InvalidStatus(t *testing.T) {
	e, _ := setupHandler(t)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/alerts?status=urgent", nil), "practice-1", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestAcknowledgeAlertEndpoint(t *testing.T) {
	e, svc := setupHandler(t)

	p := seedPatient(t, svc, "practice-1")
	alert := crisis.BuildAlert("anon-1", "cut myself", crisis.Assessment{Risk: crisis.RiskCrisis, Escalate: true})
	stored, err := svc.RecordAlert(context.Background(), "practice-1", p.ID, alert)
	if err != nil {
		t.Fatal(err)
	}

	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/alerts/"+stored.ID.String()+"/acknowledge", nil), "practice-1", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got CrisisAlert
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Status != AlertAcknowledged {
		t.Errorf("status = %q, want acknowledged", got.Status)
	}
}

func TestPatientAlertsEndpoint(t *testing.T) {
	e, svc := setupHandler(t)

	p := seedPatient(t, svc, "practice-1")
	alert := crisis.BuildAlert("anon-1", "hopeless and in crisis", crisis.Assessment{Risk: crisis.RiskHigh, Escalate: true})
	if _, err := svc.RecordAlert(context.Background(), "practice-1", p.ID, alert); err != nil {
		t.Fatal(err)
	}

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+p.ID.String()+"/alerts", nil), "practice-1", auth.RoleTherapist)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Alerts []CrisisAlert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Alerts) != 1 {
		t.Errorf("expected 1 alert, got %d", len(resp.Alerts))
	}
}
