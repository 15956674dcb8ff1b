package therapist

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned for therapists that do not exist or belong to
// another practice.
var ErrNotFound = errors.New("therapist not found")

type Repository interface {
	Create(ctx context.Context, t *Therapist) error
	GetByID(ctx context.Context, practiceID string, id uuid.UUID) (*Therapist, error)
	// GetByEmail is unscoped: login happens before a practice context exists.
	GetByEmail(ctx context.Context, email string) (*Therapist, error)
	Update(ctx context.Context, t *Therapist) error
	List(ctx context.Context, practiceID string, limit, offset int) ([]*Therapist, int, error)

	// Session notes
	CreateNote(ctx context.Context, n *SessionNote) error
	ListNotes(ctx context.Context, practiceID string, patientID uuid.UUID, limit int) ([]*SessionNote, error)
}
