// Package patient manages enrolled patients, their AI-interaction consent,
// risk levels and crisis alerts, and serves the public patient support chat.
package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moonraker/engage/internal/platform/hipaa"
)

// Consent statuses for AI interaction.
const (
	ConsentPending = "pending"
	ConsentGranted = "granted"
	ConsentRevoked = "revoked"
	ConsentExpired = "expired"
)

// Patient risk levels, aligned with the crisis detector's ladder.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
	RiskCrisis   = "crisis"
)

// Crisis alert statuses.
const (
	AlertOpen         = "open"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
)

// Patient is one enrolled patient. Name, contact and emergency contact
// fields are PHI and stored encrypted; the service decrypts on read.
type Patient struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	PracticeID            string     `db:"practice_id" json:"practice_id"`
	TherapistID           *string    `db:"therapist_id" json:"therapist_id,omitempty"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	Email                 *string    `db:"email" json:"email,omitempty"`
	Phone                 *string    `db:"phone" json:"phone,omitempty"`
	EmergencyContactName  *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	CRMContactID          *string    `db:"crm_contact_id" json:"crm_contact_id,omitempty"`
	ConsentStatus         string     `db:"consent_status" json:"consent_status"`
	ConsentUpdatedAt      *time.Time `db:"consent_updated_at" json:"consent_updated_at,omitempty"`
	RiskLevel             string     `db:"risk_level" json:"risk_level"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Summary is the anonymized patient view for therapist-facing surfaces.
// Identity never leaves the service un-anonymized there: initials only.
type Summary struct {
	AnonymizedID  string `json:"anonymized_id"`
	Initials      string `json:"initials"`
	RiskLevel     string `json:"risk_level"`
	ConsentStatus string `json:"consent_status"`
}

// Anonymized returns the therapist-facing summary of the patient.
func (p *Patient) Anonymized() Summary {
	return Summary{
		AnonymizedID:  hipaa.AnonymizePatientID(p.ID.String()),
		Initials:      hipaa.Initials(p.FullName()),
		RiskLevel:     p.RiskLevel,
		ConsentStatus: p.ConsentStatus,
	}
}

// CrisisAlert is a persisted crisis event awaiting therapist attention.
type CrisisAlert struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PracticeID        string     `db:"practice_id" json:"practice_id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	AlertType         string     `db:"alert_type" json:"alert_type"`
	Severity          string     `db:"severity" json:"severity"`
	Summary           string     `db:"summary" json:"summary"`
	RecommendedAction string     `db:"recommended_action" json:"recommended_action"`
	Status            string     `db:"status" json:"status"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	AcknowledgedAt    *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
}
