package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moonraker/engage/internal/platform/hipaa"
)

type Service struct {
	repo Repository
	enc  hipaa.FieldEncryptor
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetEncryptor attaches an optional field encryptor. Message bodies are
// stored encrypted when one is configured.
func (s *Service) SetEncryptor(enc hipaa.FieldEncryptor) {
	s.enc = enc
}

var validBots = map[string]bool{
	BotSales:   true,
	BotSupport: true,
}

var validStatuses = map[string]bool{
	StatusActive:    true,
	StatusCompleted: true,
	StatusAbandoned: true,
}

var validOutcomes = map[string]bool{
	OutcomeBooked:       true,
	OutcomeLeadCaptured: true,
	OutcomeEscalated:    true,
	OutcomeInfoOnly:     true,
}

// supportPreview replaces the last-message preview for support chats so
// patient content never lands in an unencrypted column.
const supportPreview = "Support session in progress"

// Open returns the active conversation for a session, starting one when none
// exists yet.
func (s *Service) Open(ctx context.Context, practiceID, sessionID, bot string) (*Conversation, error) {
	if practiceID == "" {
		return nil, fmt.Errorf("practice_id is required")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if !validBots[bot] {
		return nil, fmt.Errorf("invalid bot: %s", bot)
	}

	conv, err := s.repo.GetBySession(ctx, practiceID, sessionID)
	if err == nil && conv.Status == StatusActive {
		return conv, nil
	}
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	conv = &Conversation{
		PracticeID: practiceID,
		SessionID:  sessionID,
		Bot:        bot,
		Status:     StatusActive,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// RecordExchange stores one inbound message and the bot's reply, then
// refreshes the conversation counters and preview.
func (s *Service) RecordExchange(ctx context.Context, conv *Conversation, sender, inbound, reply string, risk *string) error {
	if conv == nil || conv.ID == uuid.Nil {
		return fmt.Errorf("conversation is required")
	}

	inBody, err := s.encrypt(inbound)
	if err != nil {
		return fmt.Errorf("encrypt message: %w", err)
	}
	if err := s.repo.AddMessage(ctx, &Message{
		ConversationID: conv.ID,
		PracticeID:     conv.PracticeID,
		Sender:         sender,
		Body:           inBody,
		RiskLevel:      risk,
	}); err != nil {
		return err
	}

	replyBody, err := s.encrypt(reply)
	if err != nil {
		return fmt.Errorf("encrypt reply: %w", err)
	}
	if err := s.repo.AddMessage(ctx, &Message{
		ConversationID: conv.ID,
		PracticeID:     conv.PracticeID,
		Sender:         SenderBot,
		Body:           replyBody,
	}); err != nil {
		return err
	}

	conv.MessageCount += 2
	preview := inbound
	if conv.Bot == BotSupport {
		preview = supportPreview
	}
	conv.LastMessage = &preview
	return s.repo.Update(ctx, conv)
}

// AddNote stores a system note on the conversation. Notes are masked out of
// the patient-facing history.
func (s *Service) AddNote(ctx context.Context, conv *Conversation, note string) error {
	body, err := s.encrypt(note)
	if err != nil {
		return fmt.Errorf("encrypt note: %w", err)
	}
	return s.repo.AddMessage(ctx, &Message{
		ConversationID: conv.ID,
		PracticeID:     conv.PracticeID,
		Sender:         SenderSystem,
		Body:           body,
	})
}

// Complete closes a conversation with an outcome. An empty outcome records
// info_only.
func (s *Service) Complete(ctx context.Context, practiceID string, id uuid.UUID, outcome string) (*Conversation, error) {
	if outcome == "" {
		outcome = OutcomeInfoOnly
	}
	if !validOutcomes[outcome] {
		return nil, fmt.Errorf("invalid outcome: %s", outcome)
	}

	conv, err := s.repo.GetByID(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conv.Status = StatusCompleted
	conv.Outcome = &outcome
	conv.EndedAt = &now
	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// SetTopic records the dashboard topic bucket once per conversation; later
// exchanges keep the first classification.
func (s *Service) SetTopic(ctx context.Context, conv *Conversation, topic string) error {
	if topic == "" || conv.Topic != nil {
		return nil
	}
	conv.Topic = &topic
	return s.repo.Update(ctx, conv)
}

// AttachPatient links an enrolled patient to a support conversation.
func (s *Service) AttachPatient(ctx context.Context, conv *Conversation, patientID string) error {
	if patientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if conv.PatientID != nil && *conv.PatientID == patientID {
		return nil
	}
	conv.PatientID = &patientID
	return s.repo.Update(ctx, conv)
}

// AttachContact links a CRM contact captured mid-chat to the conversation.
func (s *Service) AttachContact(ctx context.Context, conv *Conversation, contactID, name string) error {
	if contactID == "" {
		return fmt.Errorf("contact_id is required")
	}
	conv.ContactID = &contactID
	if name != "" {
		conv.ContactName = &name
	}
	outcome := OutcomeLeadCaptured
	if conv.Outcome == nil {
		conv.Outcome = &outcome
	}
	return s.repo.Update(ctx, conv)
}

func (s *Service) Get(ctx context.Context, practiceID string, id uuid.UUID) (*Conversation, error) {
	return s.repo.GetByID(ctx, practiceID, id)
}

func (s *Service) GetBySession(ctx context.Context, practiceID, sessionID string) (*Conversation, error) {
	return s.repo.GetBySession(ctx, practiceID, sessionID)
}

func (s *Service) List(ctx context.Context, practiceID string, limit, offset int) ([]*Conversation, int, error) {
	return s.repo.List(ctx, practiceID, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, practiceID, patientID string, limit, offset int) ([]*Conversation, int, error) {
	return s.repo.ListByPatient(ctx, practiceID, patientID, limit, offset)
}

func (s *Service) Recent(ctx context.Context, practiceID string, n int) ([]*Conversation, error) {
	return s.repo.Recent(ctx, practiceID, n)
}

func (s *Service) CountSince(ctx context.Context, practiceID string, since time.Time) (int, error) {
	return s.repo.CountSince(ctx, practiceID, since)
}

func (s *Service) CountOutcomeSince(ctx context.Context, practiceID, outcome string, since time.Time) (int, error) {
	return s.repo.CountOutcomeSince(ctx, practiceID, outcome, since)
}

// maskedNote stands in for system notes in patient-facing history.
const maskedNote = "[Note added for your care team]"

// History returns the decrypted transcript the way the person who chatted
// sees it: visitor and patient lines become "You", bot lines "AI Support",
// and system notes are masked.
func (s *Service) History(ctx context.Context, practiceID string, conversationID uuid.UUID, limit int) ([]HistoryEntry, error) {
	msgs, err := s.repo.Messages(ctx, practiceID, conversationID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entry := HistoryEntry{Timestamp: m.CreatedAt}
		switch m.Sender {
		case SenderVisitor, SenderPatient:
			entry.Sender = "You"
		case SenderBot:
			entry.Sender = "AI Support"
		case SenderTherapist:
			entry.Sender = "Therapist"
		default:
			entry.Sender = "Care Team"
			entry.Message = maskedNote
			entries = append(entries, entry)
			continue
		}
		body, err := s.decrypt(m.Body)
		if err != nil {
			return nil, fmt.Errorf("decrypt message: %w", err)
		}
		entry.Message = body
		entries = append(entries, entry)
	}
	return entries, nil
}

// Review returns the full decrypted transcript, system notes included, for
// care-team review surfaces.
func (s *Service) Review(ctx context.Context, practiceID string, conversationID uuid.UUID, limit int) ([]ReviewEntry, error) {
	msgs, err := s.repo.Messages(ctx, practiceID, conversationID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]ReviewEntry, 0, len(msgs))
	for _, m := range msgs {
		body, err := s.decrypt(m.Body)
		if err != nil {
			return nil, fmt.Errorf("decrypt message: %w", err)
		}
		entries = append(entries, ReviewEntry{
			Sender:    m.Sender,
			Message:   body,
			RiskLevel: m.RiskLevel,
			Timestamp: m.CreatedAt,
		})
	}
	return entries, nil
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
