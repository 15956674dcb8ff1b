package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for patients that do not exist or belong to
// another practice.
var ErrNotFound = errors.New("patient not found")

// ErrAlertNotFound is returned for crisis alerts that do not exist or belong
// to another practice.
var ErrAlertNotFound = errors.New("crisis alert not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, practiceID string, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, practiceID string, limit, offset int) ([]*Patient, int, error)
	ListByTherapist(ctx context.Context, practiceID, therapistID string, limit, offset int) ([]*Patient, int, error)
	CountByConsent(ctx context.Context, practiceID string) (map[string]int, error)

	// Crisis alerts
	CreateAlert(ctx context.Context, a *CrisisAlert) error
	GetAlert(ctx context.Context, practiceID string, id uuid.UUID) (*CrisisAlert, error)
	UpdateAlert(ctx context.Context, a *CrisisAlert) error
	ListAlerts(ctx context.Context, practiceID, status string, limit, offset int) ([]*CrisisAlert, int, error)
	ListAlertsByPatient(ctx context.Context, practiceID string, patientID uuid.UUID, limit int) ([]*CrisisAlert, error)
	CountAlertsSince(ctx context.Context, practiceID string, since time.Time) (int, error)
}
