package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/service/subscriber"
)

// SubscriberRepo implements subscriber.Repository in memory, keyed by email.
type SubscriberRepo struct {
	mu      sync.RWMutex
	byEmail map[string]*domain.Subscriber
}

// NewSubscriberRepo creates an empty in-memory subscriber repository.
func NewSubscriberRepo() *SubscriberRepo {
	return &SubscriberRepo{byEmail: make(map[string]*domain.Subscriber)}
}

func cloneSubscriber(s *domain.Subscriber) *domain.Subscriber {
	out := *s
	out.Tags = append([]string(nil), s.Tags...)
	out.Preferences.Categories = append([]string(nil), s.Preferences.Categories...)
	if s.LastEmailSent != nil {
		t := *s.LastEmailSent
		out.LastEmailSent = &t
	}
	if s.UnsubscribedAt != nil {
		t := *s.UnsubscribedAt
		out.UnsubscribedAt = &t
	}
	return &out
}

func (r *SubscriberRepo) GetByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byEmail[email]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	return cloneSubscriber(s), nil
}

func (r *SubscriberRepo) Insert(_ context.Context, s *domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[s.Email]; ok {
		return subscriber.ErrDuplicate
	}
	r.byEmail[s.Email] = cloneSubscriber(s)
	return nil
}

func (r *SubscriberRepo) Update(_ context.Context, s *domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byEmail[s.Email]
	if !ok || cur.ID != s.ID {
		return subscriber.ErrNotFound
	}
	r.byEmail[s.Email] = cloneSubscriber(s)
	return nil
}

func (r *SubscriberRepo) RecordEmailSent(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byEmail {
		if s.ID == id {
			s.EmailsSent++
			t := at
			s.LastEmailSent = &t
			s.UpdatedAt = at
			return nil
		}
	}
	return subscriber.ErrNotFound
}

func (r *SubscriberRepo) Stats(_ context.Context) (*domain.SubscriberStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := &domain.SubscriberStats{
		ByStatus: make(map[string]int),
		BySource: make(map[string]int),
	}
	for _, s := range r.byEmail {
		st.Total++
		st.ByStatus[string(s.Status)]++
		st.BySource[s.Source]++
		if s.Status == domain.SubscriberActive {
			st.Active++
		}
	}
	return st, nil
}

// Len returns the number of stored subscribers.
func (r *SubscriberRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEmail)
}
