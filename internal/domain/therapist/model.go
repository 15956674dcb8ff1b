// Package therapist manages practice staff accounts, their login tokens,
// and the therapist-facing patient care surfaces.
package therapist

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Therapist is one staff account. Role maps onto the JWT role claim the
// dashboard API authorizes against.
type Therapist struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PracticeID    string    `db:"practice_id" json:"practice_id"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Role          string    `db:"role" json:"role"`
	LicenseType   *string   `db:"license_type" json:"license_type,omitempty"`
	LicenseNumber *string   `db:"license_number" json:"license_number,omitempty"`
	LicenseState  *string   `db:"license_state" json:"license_state,omitempty"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts.
func (t *Therapist) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// SessionNote is a clinical note attached to a patient. Content and the
// next-session plan are PHI and stored encrypted.
type SessionNote struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PracticeID      string    `db:"practice_id" json:"practice_id"`
	TherapistID     uuid.UUID `db:"therapist_id" json:"therapist_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	SessionDate     time.Time `db:"session_date" json:"session_date"`
	Content         string    `db:"content" json:"content"`
	RiskAssessment  string    `db:"risk_assessment" json:"risk_assessment"`
	NextSessionPlan *string   `db:"next_session_plan" json:"next_session_plan,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
