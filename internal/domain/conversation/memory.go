package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used in development mode and
// tests, where no database is configured.
type MemoryRepository struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*Conversation
	messages      []*Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{conversations: make(map[uuid.UUID]*Conversation)}
}

func (r *MemoryRepository) Create(_ context.Context, conv *Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Mirrors the schema: one active conversation per session.
	if conv.Status == StatusActive {
		for _, existing := range r.conversations {
			if existing.PracticeID == conv.PracticeID && existing.SessionID == conv.SessionID && existing.Status == StatusActive {
				return fmt.Errorf("active conversation already open for session %s", conv.SessionID)
			}
		}
	}

	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	cp := *conv
	r.conversations[conv.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, practiceID string, id uuid.UUID) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok || conv.PracticeID != practiceID {
		return nil, ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (r *MemoryRepository) GetBySession(_ context.Context, practiceID, sessionID string) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Conversation
	for _, conv := range r.conversations {
		if conv.PracticeID != practiceID || conv.SessionID != sessionID {
			continue
		}
		if latest == nil || conv.StartedAt.After(latest.StartedAt) {
			latest = conv
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *MemoryRepository) Update(_ context.Context, conv *Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.conversations[conv.ID]
	if !ok || existing.PracticeID != conv.PracticeID {
		return ErrNotFound
	}
	conv.UpdatedAt = time.Now().UTC()
	cp := *conv
	r.conversations[conv.ID] = &cp
	return nil
}

func (r *MemoryRepository) List(_ context.Context, practiceID string, limit, offset int) ([]*Conversation, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.sorted(practiceID)
	total := len(matches)
	return page(matches, limit, offset), total, nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, practiceID, patientID string, limit, offset int) ([]*Conversation, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Conversation
	for _, conv := range r.sorted(practiceID) {
		if conv.PatientID != nil && *conv.PatientID == patientID {
			matches = append(matches, conv)
		}
	}
	total := len(matches)
	return page(matches, limit, offset), total, nil
}

func (r *MemoryRepository) Recent(_ context.Context, practiceID string, n int) ([]*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.sorted(practiceID)
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

func (r *MemoryRepository) CountSince(_ context.Context, practiceID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, conv := range r.conversations {
		if conv.PracticeID == practiceID && !conv.StartedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) CountOutcomeSince(_ context.Context, practiceID, outcome string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, conv := range r.conversations {
		if conv.PracticeID == practiceID && conv.Outcome != nil && *conv.Outcome == outcome && !conv.StartedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) AddMessage(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	cp := *msg
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *MemoryRepository) Messages(_ context.Context, practiceID string, conversationID uuid.UUID, limit int) ([]*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Message
	for _, msg := range r.messages {
		if msg.PracticeID != practiceID || msg.ConversationID != conversationID {
			continue
		}
		cp := *msg
		result = append(result, &cp)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// sorted returns the practice's conversations newest-first. Callers hold the
// lock.
func (r *MemoryRepository) sorted(practiceID string) []*Conversation {
	var matches []*Conversation
	for _, conv := range r.conversations {
		if conv.PracticeID == practiceID {
			cp := *conv
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].StartedAt.After(matches[j].StartedAt) })
	return matches
}

func page(convs []*Conversation, limit, offset int) []*Conversation {
	if offset >= len(convs) {
		return nil
	}
	convs = convs[offset:]
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs
}
