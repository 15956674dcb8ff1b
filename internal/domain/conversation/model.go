// Package conversation stores chat transcripts for both bots and serves the
// practice-facing conversation APIs plus the public website widget chat.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Bots that open conversations.
const (
	BotSales   = "sales"
	BotSupport = "support"
)

// Conversation statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// Conversation outcomes recorded on completion.
const (
	OutcomeBooked       = "booked"
	OutcomeLeadCaptured = "lead_captured"
	OutcomeEscalated    = "escalated"
	OutcomeInfoOnly     = "info_only"
)

// Message senders.
const (
	SenderVisitor   = "visitor"
	SenderPatient   = "patient"
	SenderBot       = "bot"
	SenderTherapist = "therapist"
	SenderSystem    = "system"
)

// Conversation is one chat dialog between a bot and a visitor or patient,
// scoped to the practice whose widget or patient portal opened it.
type Conversation struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PracticeID   string     `db:"practice_id" json:"practice_id"`
	SessionID    string     `db:"session_id" json:"session_id"`
	Bot          string     `db:"bot" json:"bot"`
	ContactID    *string    `db:"contact_id" json:"contact_id,omitempty"`
	ContactName  *string    `db:"contact_name" json:"contact_name,omitempty"`
	PatientID    *string    `db:"patient_id" json:"patient_id,omitempty"`
	Status       string     `db:"status" json:"status"`
	Outcome      *string    `db:"outcome" json:"outcome,omitempty"`
	Topic        *string    `db:"topic" json:"topic,omitempty"`
	LastMessage  *string    `db:"last_message" json:"last_message,omitempty"`
	MessageCount int        `db:"message_count" json:"message_count"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	EndedAt      *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Message is one stored exchange line. Body is encrypted at rest; the
// service decrypts on read.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	PracticeID     string    `db:"practice_id" json:"practice_id"`
	Sender         string    `db:"sender" json:"sender"`
	Body           string    `db:"body" json:"body"`
	RiskLevel      *string   `db:"risk_level" json:"risk_level,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HistoryEntry is one transcript line as shown to the person who chatted.
// System notes are masked before they reach this shape.
type HistoryEntry struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ReviewEntry is one decrypted transcript line for care-team review, with
// the risk grade recorded at the time of the message.
type ReviewEntry struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	RiskLevel *string   `json:"risk_level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
