package project

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps project records in process memory. Used by one-shot
// CLI runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*Project
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]*Project)}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.projects[p.ID]; exists {
		return fmt.Errorf("project %q already exists", p.ID)
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
