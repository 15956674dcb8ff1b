package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newAuthContext(t *testing.T, authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GenerateAccessToken("user-1", "practice-1", "therapist")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	c, _ := newAuthContext(t, "Bearer "+token)

	var gotUserID, gotRole, gotPractice string
	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		gotUserID = UserIDFromContext(ctx)
		gotRole = RoleFromContext(ctx)
		gotPractice = PracticeIDFromContext(ctx)
		return c.String(http.StatusOK, "ok")
	}

	mw := JWTMiddleware(tm)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotUserID != "user-1" {
		t.Errorf("expected user_id 'user-1', got %q", gotUserID)
	}
	if gotRole != "therapist" {
		t.Errorf("expected role 'therapist', got %q", gotRole)
	}
	if gotPractice != "practice-1" {
		t.Errorf("expected practice_id 'practice-1', got %q", gotPractice)
	}
	if pid, _ := c.Get("jwt_practice_id").(string); pid != "practice-1" {
		t.Errorf("expected jwt_practice_id 'practice-1' on echo context, got %q", pid)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	tm := newTestTokenManager()
	c, _ := newAuthContext(t, "")

	mw := JWTMiddleware(tm)
	err := mw(func(c echo.Context) error {
		t.Error("handler should not be called")
		return nil
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_MalformedHeader(t *testing.T) {
	tm := newTestTokenManager()

	for _, header := range []string{"Basic abc123", "Bearer", "just-a-token"} {
		c, _ := newAuthContext(t, header)
		mw := JWTMiddleware(tm)
		err := mw(func(c echo.Context) error { return nil })(c)

		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("header %q: expected echo.HTTPError, got %T", header, err)
		}
		if httpErr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, httpErr.Code)
		}
	}
}

func TestJWTMiddleware_RejectsPatientToken(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GeneratePatientToken("anon_abc123", "practice-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("GeneratePatientToken: %v", err)
	}

	c, _ := newAuthContext(t, "Bearer "+token)
	mw := JWTMiddleware(tm)
	err = mw(func(c echo.Context) error {
		t.Error("handler should not be called for patient token on staff route")
		return nil
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestPatientTokenMiddleware_ValidToken(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GeneratePatientToken("anon_abc123", "practice-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("GeneratePatientToken: %v", err)
	}

	c, _ := newAuthContext(t, "Bearer "+token)

	var gotSubject string
	mw := PatientTokenMiddleware(tm)
	err = mw(func(c echo.Context) error {
		gotSubject = UserIDFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSubject != "anon_abc123" {
		t.Errorf("expected anonymized subject, got %q", gotSubject)
	}
}

func TestDevAuthMiddleware_SetsDefaults(t *testing.T) {
	c, _ := newAuthContext(t, "")

	var gotUserID, gotRole string
	mw := DevAuthMiddleware()
	err := mw(func(c echo.Context) error {
		ctx := c.Request().Context()
		gotUserID = UserIDFromContext(ctx)
		gotRole = RoleFromContext(ctx)
		return c.String(http.StatusOK, "ok")
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUserID != "dev-user" {
		t.Errorf("expected 'dev-user', got %q", gotUserID)
	}
	if gotRole != "admin" {
		t.Errorf("expected role 'admin', got %q", gotRole)
	}
	if pid, _ := c.Get("jwt_practice_id").(string); pid != "default" {
		t.Errorf("expected jwt_practice_id 'default', got %q", pid)
	}
}

func TestRequireRole_AllowsMatchingRole(t *testing.T) {
	tm := newTestTokenManager()
	token, _ := tm.GenerateAccessToken("user-1", "practice-1", "therapist")
	c, _ := newAuthContext(t, "Bearer "+token)

	called := false
	chain := JWTMiddleware(tm)(RequireRole(RoleTherapist)(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	}))

	if err := chain(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestRequireRole_AdminBypasses(t *testing.T) {
	tm := newTestTokenManager()
	token, _ := tm.GenerateAccessToken("user-1", "practice-1", "admin")
	c, _ := newAuthContext(t, "Bearer "+token)

	called := false
	chain := JWTMiddleware(tm)(RequireRole(RoleOwner)(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	}))

	if err := chain(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected admin to bypass role check")
	}
}

func TestRequireRole_RejectsOtherRole(t *testing.T) {
	tm := newTestTokenManager()
	token, _ := tm.GenerateAccessToken("user-1", "practice-1", "staff")
	c, _ := newAuthContext(t, "Bearer "+token)

	chain := JWTMiddleware(tm)(RequireRole(RoleOwner)(func(c echo.Context) error {
		t.Error("handler should not be called")
		return nil
	}))

	err := chain(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}
