package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-secret-key-at-least-32-chars!!", 30*time.Minute, 7*24*time.Hour)
}

func TestTokenManager_AccessToken_RoundTrip(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.GenerateAccessToken("user-1", "practice-1", "therapist")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := tm.Verify(token, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("expected subject 'user-1', got %q", claims.Subject)
	}
	if claims.PracticeID != "practice-1" {
		t.Errorf("expected practice_id 'practice-1', got %q", claims.PracticeID)
	}
	if claims.Role != "therapist" {
		t.Errorf("expected role 'therapist', got %q", claims.Role)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("expected token_type 'access', got %q", claims.TokenType)
	}
}

func TestTokenManager_RefreshToken_RoundTrip(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.GenerateRefreshToken("user-2", "practice-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	claims, err := tm.Verify(token, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-2" {
		t.Errorf("expected subject 'user-2', got %q", claims.Subject)
	}
	if claims.Role != "" {
		t.Errorf("expected empty role on refresh token, got %q", claims.Role)
	}
}

func TestTokenManager_PatientToken_RoundTrip(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.GeneratePatientToken("anon_abc123def456", "practice-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("GeneratePatientToken: %v", err)
	}

	claims, err := tm.Verify(token, TokenTypePatient)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "anon_abc123def456" {
		t.Errorf("expected anonymized subject, got %q", claims.Subject)
	}
	if claims.Role != "patient" {
		t.Errorf("expected role 'patient', got %q", claims.Role)
	}
}

func TestTokenManager_Verify_WrongType(t *testing.T) {
	tm := newTestTokenManager()

	refresh, err := tm.GenerateRefreshToken("user-1", "practice-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	// A refresh token must not pass as an access token.
	_, err = tm.Verify(refresh, TokenTypeAccess)
	if !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestTokenManager_Verify_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret-key-at-least-32-chars!!", -1*time.Minute, 7*24*time.Hour)

	token, err := tm.GenerateAccessToken("user-1", "practice-1", "therapist")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	_, err = tm.Verify(token, TokenTypeAccess)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	tm := newTestTokenManager()
	other := NewTokenManager("a-completely-different-secret-key!!!", 30*time.Minute, 7*24*time.Hour)

	token, err := tm.GenerateAccessToken("user-1", "practice-1", "therapist")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	_, err = other.Verify(token, TokenTypeAccess)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestTokenManager_Verify_Garbage(t *testing.T) {
	tm := newTestTokenManager()

	_, err := tm.Verify("not.a.token", TokenTypeAccess)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for garbage input, got %v", err)
	}
}
