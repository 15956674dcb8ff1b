package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moonraker/engage/internal/platform/crisis"
	"github.com/moonraker/engage/internal/platform/hipaa"
)

// ErrConsentRequired gates the support bot: no AI interaction without
// granted consent.
var ErrConsentRequired = errors.New("Patient consent required for AI interaction")

type Service struct {
	repo Repository
	enc  hipaa.FieldEncryptor
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetEncryptor attaches an optional field encryptor. PHI fields are stored
// encrypted when one is configured.
func (s *Service) SetEncryptor(enc hipaa.FieldEncryptor) {
	s.enc = enc
}

var validConsent = map[string]bool{
	ConsentPending: true,
	ConsentGranted: true,
	ConsentRevoked: true,
	ConsentExpired: true,
}

var validRisk = map[string]bool{
	RiskLow:      true,
	RiskModerate: true,
	RiskHigh:     true,
	RiskCrisis:   true,
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.PracticeID == "" {
		return fmt.Errorf("practice_id is required")
	}
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.ConsentStatus == "" {
		p.ConsentStatus = ConsentPending
	}
	if !validConsent[p.ConsentStatus] {
		return fmt.Errorf("invalid consent status: %s", p.ConsentStatus)
	}
	if p.RiskLevel == "" {
		p.RiskLevel = RiskLow
	}
	if !validRisk[p.RiskLevel] {
		return fmt.Errorf("invalid risk level: %s", p.RiskLevel)
	}

	stored := *p
	if err := s.encryptPatient(&stored); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, &stored); err != nil {
		return err
	}
	p.ID = stored.ID
	p.CreatedAt = stored.CreatedAt
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *Service) Get(ctx context.Context, practiceID string, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}
	if err := s.decryptPatient(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, practiceID string, limit, offset int) ([]*Patient, int, error) {
	patients, total, err := s.repo.List(ctx, practiceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range patients {
		if err := s.decryptPatient(p); err != nil {
			return nil, 0, err
		}
	}
	return patients, total, nil
}

// ListSummaries returns anonymized summaries for therapist surfaces,
// optionally restricted to one therapist's caseload.
func (s *Service) ListSummaries(ctx context.Context, practiceID, therapistID string, limit, offset int) ([]Summary, int, error) {
	var (
		patients []*Patient
		total    int
		err      error
	)
	if therapistID != "" {
		patients, total, err = s.repo.ListByTherapist(ctx, practiceID, therapistID, limit, offset)
	} else {
		patients, total, err = s.repo.List(ctx, practiceID, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]Summary, 0, len(patients))
	for _, p := range patients {
		if err := s.decryptPatient(p); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, p.Anonymized())
	}
	return summaries, total, nil
}

func (s *Service) UpdateConsent(ctx context.Context, practiceID string, id uuid.UUID, status string) (*Patient, error) {
	if !validConsent[status] {
		return nil, fmt.Errorf("invalid consent status: %s", status)
	}

	p, err := s.repo.GetByID(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.ConsentStatus = status
	p.ConsentUpdatedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := s.decryptPatient(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateRisk(ctx context.Context, practiceID string, id uuid.UUID, level string) (*Patient, error) {
	if !validRisk[level] {
		return nil, fmt.Errorf("invalid risk level: %s", level)
	}

	p, err := s.repo.GetByID(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}
	p.RiskLevel = level
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := s.decryptPatient(p); err != nil {
		return nil, err
	}
	return p, nil
}

// EnsureConsent returns ErrConsentRequired unless the patient has granted
// AI-interaction consent.
func (s *Service) EnsureConsent(ctx context.Context, practiceID string, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, practiceID, id)
	if err != nil {
		return err
	}
	if p.ConsentStatus != ConsentGranted {
		return ErrConsentRequired
	}
	return nil
}

// RecordAlert persists a crisis detection as an open alert and raises the
// patient's stored risk level when the alert outranks it.
func (s *Service) RecordAlert(ctx context.Context, practiceID string, patientID uuid.UUID, alert crisis.Alert) (*CrisisAlert, error) {
	stored := &CrisisAlert{
		PracticeID:        practiceID,
		PatientID:         patientID,
		AlertType:         alert.AlertType,
		Severity:          alert.Severity,
		Summary:           alert.Summary,
		RecommendedAction: alert.RecommendedAction,
		Status:            AlertOpen,
		CreatedAt:         alert.CreatedAt,
	}
	if err := s.repo.CreateAlert(ctx, stored); err != nil {
		return nil, err
	}

	if level := riskForSeverity(alert.Severity); level != "" {
		p, err := s.repo.GetByID(ctx, practiceID, patientID)
		if err == nil && riskRank(level) > riskRank(p.RiskLevel) {
			p.RiskLevel = level
			if err := s.repo.Update(ctx, p); err != nil {
				return nil, err
			}
		}
	}
	return stored, nil
}

func (s *Service) AcknowledgeAlert(ctx context.Context, practiceID string, id uuid.UUID) (*CrisisAlert, error) {
	a, err := s.repo.GetAlert(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	a.Status = AlertAcknowledged
	a.AcknowledgedAt = &now
	if err := s.repo.UpdateAlert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAlerts(ctx context.Context, practiceID, status string, limit, offset int) ([]*CrisisAlert, int, error) {
	return s.repo.ListAlerts(ctx, practiceID, status, limit, offset)
}

func (s *Service) AlertsByPatient(ctx context.Context, practiceID string, patientID uuid.UUID, limit int) ([]*CrisisAlert, error) {
	return s.repo.ListAlertsByPatient(ctx, practiceID, patientID, limit)
}

func (s *Service) CountAlertsSince(ctx context.Context, practiceID string, since time.Time) (int, error) {
	return s.repo.CountAlertsSince(ctx, practiceID, since)
}

func (s *Service) ConsentFunnel(ctx context.Context, practiceID string) (map[string]int, error) {
	return s.repo.CountByConsent(ctx, practiceID)
}

func riskForSeverity(severity string) string {
	switch severity {
	case "critical":
		return RiskCrisis
	case "high":
		return RiskHigh
	case "medium":
		return RiskModerate
	}
	return ""
}

func riskRank(level string) int {
	switch level {
	case RiskCrisis:
		return 3
	case RiskHigh:
		return 2
	case RiskModerate:
		return 1
	}
	return 0
}

func (p *Patient) phiFields() []*string {
	fields := []*string{&p.FirstName, &p.LastName}
	for _, opt := range []*string{p.Email, p.Phone, p.EmergencyContactName, p.EmergencyContactPhone} {
		if opt != nil {
			fields = append(fields, opt)
		}
	}
	return fields
}

func (s *Service) encryptPatient(p *Patient) error {
	if s.enc == nil {
		return nil
	}
	for _, f := range p.phiFields() {
		enc, err := s.enc.Encrypt(*f)
		if err != nil {
			return fmt.Errorf("encrypt patient field: %w", err)
		}
		*f = enc
	}
	return nil
}

func (s *Service) decryptPatient(p *Patient) error {
	if s.enc == nil {
		return nil
	}
	for _, f := range p.phiFields() {
		dec, err := s.enc.Decrypt(*f)
		if err != nil {
			return fmt.Errorf("decrypt patient field: %w", err)
		}
		*f = dec
	}
	return nil
}
