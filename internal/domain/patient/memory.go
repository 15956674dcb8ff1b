package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used in development mode and
// tests, where no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
	alerts   map[uuid.UUID]*CrisisAlert
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients: make(map[uuid.UUID]*Patient),
		alerts:   make(map[uuid.UUID]*CrisisAlert),
	}
}

func (r *MemoryRepository) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, practiceID string, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok || p.PracticeID != practiceID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.patients[p.ID]
	if !ok || existing.PracticeID != p.PracticeID {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) List(_ context.Context, practiceID string, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.sortedPatients(func(p *Patient) bool { return p.PracticeID == practiceID })
	total := len(matches)
	return pagePatients(matches, limit, offset), total, nil
}

func (r *MemoryRepository) ListByTherapist(_ context.Context, practiceID, therapistID string, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.sortedPatients(func(p *Patient) bool {
		return p.PracticeID == practiceID && p.TherapistID != nil && *p.TherapistID == therapistID
	})
	total := len(matches)
	return pagePatients(matches, limit, offset), total, nil
}

func (r *MemoryRepository) CountByConsent(_ context.Context, practiceID string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, p := range r.patients {
		if p.PracticeID == practiceID {
			counts[p.ConsentStatus]++
		}
	}
	return counts, nil
}

func (r *MemoryRepository) CreateAlert(_ context.Context, a *CrisisAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetAlert(_ context.Context, practiceID string, id uuid.UUID) (*CrisisAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok || a.PracticeID != practiceID {
		return nil, ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) UpdateAlert(_ context.Context, a *CrisisAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.alerts[a.ID]
	if !ok || existing.PracticeID != a.PracticeID {
		return ErrAlertNotFound
	}
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) ListAlerts(_ context.Context, practiceID, status string, limit, offset int) ([]*CrisisAlert, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*CrisisAlert
	for _, a := range r.alerts {
		if a.PracticeID != practiceID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		cp := *a
		matches = append(matches, &cp)
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

func (r *MemoryRepository) ListAlertsByPatient(_ context.Context, practiceID string, patientID uuid.UUID, limit int) ([]*CrisisAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*CrisisAlert
	for _, a := range r.alerts {
		if a.PracticeID != practiceID || a.PatientID != patientID {
			continue
		}
		cp := *a
		matches = append(matches, &cp)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *MemoryRepository) CountAlertsSince(_ context.Context, practiceID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, a := range r.alerts {
		if a.PracticeID == practiceID && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) sortedPatients(match func(*Patient) bool) []*Patient {
	var matches []*Patient
	for _, p := range r.patients {
		if match(p) {
			cp := *p
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	return matches
}

func pagePatients(patients []*Patient, limit, offset int) []*Patient {
	if offset >= len(patients) {
		return nil
	}
	patients = patients[offset:]
	if limit > 0 && len(patients) > limit {
		patients = patients[:limit]
	}
	return patients
}
