// Package memory holds process-local repositories for the development-only
// "memory" storage driver and for tests. Records are copied on the way in
// and out so callers never share state with the store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/service/contact"
)

// ContactRepo implements contact.Repository in memory.
type ContactRepo struct {
	mu   sync.RWMutex
	byID map[string]*domain.Contact
}

// NewContactRepo creates an empty in-memory contact repository.
func NewContactRepo() *ContactRepo {
	return &ContactRepo{byID: make(map[string]*domain.Contact)}
}

func cloneContact(c *domain.Contact) *domain.Contact {
	out := *c
	out.Tags = append([]string(nil), c.Tags...)
	return &out
}

func (r *ContactRepo) FindRecentByEmail(_ context.Context, email string, since time.Time) (*domain.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var newest *domain.Contact
	for _, c := range r.byID {
		if c.Email != email || c.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, contact.ErrNotFound
	}
	return cloneContact(newest), nil
}

func (r *ContactRepo) Insert(_ context.Context, c *domain.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = cloneContact(c)
	return nil
}

func (r *ContactRepo) Get(_ context.Context, id string) (*domain.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	return cloneContact(c), nil
}

func (r *ContactRepo) UpdateStatus(_ context.Context, id string, status domain.ContactStatus, notes *string, at time.Time) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	c.Status = status
	if notes != nil {
		c.Notes = *notes
	}
	c.UpdatedAt = at
	return cloneContact(c), nil
}

func (r *ContactRepo) Stats(_ context.Context, since time.Time) (*domain.ContactStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := &domain.ContactStats{
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
		BySource:   make(map[string]int),
	}
	for _, c := range r.byID {
		st.Total++
		st.ByStatus[string(c.Status)]++
		st.ByPriority[string(c.Priority)]++
		st.BySource[c.Source]++
		if !c.CreatedAt.Before(since) {
			st.Last24Hours++
		}
	}
	return st, nil
}

// Len returns the number of stored contacts.
func (r *ContactRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
