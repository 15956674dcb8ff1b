package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for conversations that do not exist or belong to
// another practice.
var ErrNotFound = errors.New("conversation not found")

type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	GetByID(ctx context.Context, practiceID string, id uuid.UUID) (*Conversation, error)
	GetBySession(ctx context.Context, practiceID, sessionID string) (*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	List(ctx context.Context, practiceID string, limit, offset int) ([]*Conversation, int, error)
	ListByPatient(ctx context.Context, practiceID, patientID string, limit, offset int) ([]*Conversation, int, error)
	Recent(ctx context.Context, practiceID string, n int) ([]*Conversation, error)
	CountSince(ctx context.Context, practiceID string, since time.Time) (int, error)
	CountOutcomeSince(ctx context.Context, practiceID, outcome string, since time.Time) (int, error)

	// Messages
	AddMessage(ctx context.Context, msg *Message) error
	Messages(ctx context.Context, practiceID string, conversationID uuid.UUID, limit int) ([]*Message, error)
}
