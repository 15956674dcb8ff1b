package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the token_type claim. Access tokens authenticate
// practice staff on the dashboard API, refresh tokens mint new access tokens,
// and patient tokens scope an enrolled patient to the public chat surface.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypePatient = "patient"
)

var (
	// ErrInvalidToken is returned when a token fails signature or expiry checks.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrWrongTokenType is returned when a valid token carries the wrong token_type
	// claim, e.g. a refresh token presented where an access token is required.
	ErrWrongTokenType = errors.New("auth: wrong token type")
)

// Claims are the JWT claims issued by the platform. Subject holds the user ID
// for staff tokens and the patient ID for patient tokens.
type Claims struct {
	jwt.RegisteredClaims
	PracticeID string `json:"practice_id,omitempty"`
	Role       string `json:"role,omitempty"`
	TokenType  string `json:"token_type"`
}

// TokenManager issues and verifies HMAC-signed tokens. All tokens use HS256
// with a single shared secret; there is no external identity provider.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager creates a TokenManager with the given signing secret and
// token lifetimes.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// GenerateAccessToken issues a short-lived access token for a staff user.
func (tm *TokenManager) GenerateAccessToken(userID, practiceID, role string) (string, error) {
	return tm.generate(userID, practiceID, role, TokenTypeAccess, tm.accessTTL)
}

// GenerateRefreshToken issues a long-lived refresh token. Refresh tokens carry
// no role; the role is resolved from the account when a new access token is minted.
func (tm *TokenManager) GenerateRefreshToken(userID, practiceID string) (string, error) {
	return tm.generate(userID, practiceID, "", TokenTypeRefresh, tm.refreshTTL)
}

// GeneratePatientToken issues a patient-scoped token for the public chat
// surface. The token carries the patient ID and practice only; name and
// contact details never go into a token.
func (tm *TokenManager) GeneratePatientToken(patientID, practiceID string, ttl time.Duration) (string, error) {
	return tm.generate(patientID, practiceID, "patient", TokenTypePatient, ttl)
}

func (tm *TokenManager) generate(subject, practiceID, role, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		PracticeID: practiceID,
		Role:       role,
		TokenType:  tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Verify parses and validates a token and checks its token_type claim. It
// returns ErrWrongTokenType for a valid token of a different type so callers
// can distinguish a replayed refresh token from a forged one.
func (tm *TokenManager) Verify(tokenStr, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
