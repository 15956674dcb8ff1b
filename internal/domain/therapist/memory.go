package therapist

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used in development mode and
// tests, where no database is configured.
type MemoryRepository struct {
	mu         sync.RWMutex
	therapists map[uuid.UUID]*Therapist
	notes      map[uuid.UUID]*SessionNote
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		therapists: make(map[uuid.UUID]*Therapist),
		notes:      make(map[uuid.UUID]*SessionNote),
	}
}

func (r *MemoryRepository) Create(_ context.Context, t *Therapist) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	r.therapists[t.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, practiceID string, id uuid.UUID) (*Therapist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.therapists[id]
	if !ok || t.PracticeID != practiceID {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*Therapist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.therapists {
		if strings.EqualFold(t.Email, email) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) Update(_ context.Context, t *Therapist) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.therapists[t.ID]
	if !ok || existing.PracticeID != t.PracticeID {
		return ErrNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	r.therapists[t.ID] = &cp
	return nil
}

func (r *MemoryRepository) List(_ context.Context, practiceID string, limit, offset int) ([]*Therapist, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Therapist
	for _, t := range r.therapists {
		if t.PracticeID == practiceID {
			cp := *t
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	total := len(matches)
	if offset >= len(matches) {
		return nil, total, nil
	}
	matches = matches[offset:]
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}

func (r *MemoryRepository) CreateNote(_ context.Context, n *SessionNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	r.notes[n.ID] = &cp
	return nil
}

func (r *MemoryRepository) ListNotes(_ context.Context, practiceID string, patientID uuid.UUID, limit int) ([]*SessionNote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*SessionNote
	for _, n := range r.notes {
		if n.PracticeID == practiceID && n.PatientID == patientID {
			cp := *n
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].SessionDate.After(matches[j].SessionDate) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
