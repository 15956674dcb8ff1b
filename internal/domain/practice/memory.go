package practice

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
	mu        sync.RWMutex
	practices map[uuid.UUID]*Practice
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{practices: make(map[uuid.UUID]*Practice)}
}

func (r *MemoryRepository) Create(_ context.Context, p *Practice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	r.practices[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Practice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.practices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) Update(_ context.Context, p *Practice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.practices[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	r.practices[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) List(_ context.Context, limit, offset int) ([]*Practice, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Practice
	for _, p := range r.practices {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}
