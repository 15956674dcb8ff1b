package therapist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/moonraker/engage/internal/platform/auth"
	"github.com/moonraker/engage/internal/platform/hipaa"
)

// ErrInvalidCredentials is returned for a bad email/password pair. Login
// never reveals which half was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	repo   Repository
	tokens *auth.TokenManager
	enc    hipaa.FieldEncryptor
}

func NewService(repo Repository, tokens *auth.TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// SetEncryptor attaches an optional field encryptor. Session note content is
// stored encrypted when one is configured.
func (s *Service) SetEncryptor(enc hipaa.FieldEncryptor) {
	s.enc = enc
}

var validRoles = map[string]bool{
	auth.RoleOwner:     true,
	auth.RoleTherapist: true,
	auth.RoleStaff:     true,
}

var validNoteRisk = map[string]bool{
	"low":      true,
	"moderate": true,
	"high":     true,
	"crisis":   true,
}

// Register creates a staff account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, t *Therapist, password string) error {
	if t.PracticeID == "" {
		return fmt.Errorf("practice_id is required")
	}
	if t.Email == "" {
		return fmt.Errorf("email is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if t.Role == "" {
		t.Role = auth.RoleTherapist
	}
	if !validRoles[t.Role] {
		return fmt.Errorf("invalid role: %s", t.Role)
	}
	if t.Status == "" {
		t.Status = StatusActive
	}

	if _, err := s.repo.GetByEmail(ctx, t.Email); err == nil {
		return fmt.Errorf("email already registered")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	t.Email = strings.ToLower(t.Email)
	t.PasswordHash = hash
	return s.repo.Create(ctx, t)
}

// TokenPair is the login/refresh response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, *Therapist, error) {
	t, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if t.Status != StatusActive || !auth.VerifyPassword(t.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	access, err := s.tokens.GenerateAccessToken(t.ID.String(), t.PracticeID, t.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(t.ID.String(), t.PracticeID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, t, nil
}

// Refresh mints a new access token from a refresh token. The role is
// resolved from the current account state, not the old token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	t, err := s.repo.GetByID(ctx, claims.PracticeID, id)
	if err != nil || t.Status != StatusActive {
		return nil, ErrInvalidCredentials
	}

	access, err := s.tokens.GenerateAccessToken(t.ID.String(), t.PracticeID, t.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &TokenPair{AccessToken: access, TokenType: "bearer"}, nil
}

func (s *Service) Get(ctx context.Context, practiceID string, id uuid.UUID) (*Therapist, error) {
	return s.repo.GetByID(ctx, practiceID, id)
}

func (s *Service) List(ctx context.Context, practiceID string, limit, offset int) ([]*Therapist, int, error) {
	return s.repo.List(ctx, practiceID, limit, offset)
}

// AddSessionNote stores an encrypted clinical note.
func (s *Service) AddSessionNote(ctx context.Context, n *SessionNote) error {
	if n.PracticeID == "" || n.TherapistID == uuid.Nil || n.PatientID == uuid.Nil {
		return fmt.Errorf("practice, therapist and patient are required")
	}
	if strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("note content is required")
	}
	if n.RiskAssessment == "" {
		n.RiskAssessment = "low"
	}
	if !validNoteRisk[n.RiskAssessment] {
		return fmt.Errorf("invalid risk assessment: %s", n.RiskAssessment)
	}

	stored := *n
	content, err := s.encrypt(stored.Content)
	if err != nil {
		return fmt.Errorf("encrypt session note: %w", err)
	}
	stored.Content = content
	if stored.NextSessionPlan != nil {
		plan, err := s.encrypt(*stored.NextSessionPlan)
		if err != nil {
			return fmt.Errorf("encrypt session plan: %w", err)
		}
		stored.NextSessionPlan = &plan
	}

	if err := s.repo.CreateNote(ctx, &stored); err != nil {
		return err
	}
	n.ID = stored.ID
	n.CreatedAt = stored.CreatedAt
	return nil
}

// SessionNotes returns decrypted notes for a patient, newest session first.
func (s *Service) SessionNotes(ctx context.Context, practiceID string, patientID uuid.UUID, limit int) ([]*SessionNote, error) {
	notes, err := s.repo.ListNotes(ctx, practiceID, patientID, limit)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		content, err := s.decrypt(n.Content)
		if err != nil {
			return nil, fmt.Errorf("decrypt session note: %w", err)
		}
		n.Content = content
		if n.NextSessionPlan != nil {
			plan, err := s.decrypt(*n.NextSessionPlan)
			if err != nil {
				return nil, fmt.Errorf("decrypt session plan: %w", err)
			}
			n.NextSessionPlan = &plan
		}
	}
	return notes, nil
}

func (s *Service) encrypt(plaintext string) (string, error) {
	if s.enc == nil {
		return plaintext, nil
	}
	return s.enc.Encrypt(plaintext)
}

func (s *Service) decrypt(ciphertext string) (string, error) {
	if s.enc == nil {
		return ciphertext, nil
	}
	return s.enc.Decrypt(ciphertext)
}
