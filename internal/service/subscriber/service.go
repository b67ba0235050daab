package subscriber

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jbrand/leadintake/internal/classifier"
	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/pkg/distlock"
	"github.com/jbrand/leadintake/internal/pkg/logger"
)

const (
	defaultTimeout = 5 * time.Second
	lockTTL        = 10 * time.Second
)

// Service implements subscriber business logic.
type Service struct {
	repo    Repository
	locks   distlock.Factory
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLocks serializes the lookup-then-write per email.
func WithLocks(f distlock.Factory) Option { return func(s *Service) { s.locks = f } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithTimeout bounds every repository call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a subscriber service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now, timeout: defaultTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SubscribeResult reports what Subscribe did. A brand-new record has both
// flags false; WelcomeDue tells the caller whether to send a welcome email.
type SubscribeResult struct {
	Record      *domain.Subscriber
	IsExisting  bool
	Reactivated bool
}

// WelcomeDue is true for new and reactivated subscribers.
func (r *SubscribeResult) WelcomeDue() bool { return !r.IsExisting || r.Reactivated }

func normalize(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Subscribe creates, reactivates or refreshes the subscriber for in.Email.
func (s *Service) Subscribe(ctx context.Context, in domain.SubscriptionInput, client domain.ClientInfo) (*SubscribeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	in.Email = normalize(in.Email)
	if in.Email == "" {
		return nil, domain.ValidationError(domain.FieldError{Field: "email", Message: "email is required"})
	}

	ctx, release := distlock.Guard(ctx, s.locks, "subscriber:"+in.Email, lockTTL)
	defer release()

	now := s.now().UTC()
	client = client.Normalized()
	tags := classifier.SubscriberTags(in, client, now)

	existing, err := s.repo.GetByEmail(ctx, in.Email)
	if errors.Is(err, ErrNotFound) {
		sub := newSubscriber(in, client, tags, now)
		err = s.repo.Insert(ctx, sub)
		if err == nil {
			logger.Info("subscriber created", "subscriber_id", sub.ID, "email", sub.Email, "source", sub.Source)
			return &SubscribeResult{Record: sub}, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return nil, domain.StorageError("subscriber.insert", err)
		}
		// lost a race with a concurrent sign-up; treat as existing
		existing, err = s.repo.GetByEmail(ctx, in.Email)
	}
	if err != nil {
		return nil, domain.StorageError("subscriber.get", err)
	}

	res := &SubscribeResult{Record: existing, IsExisting: true}
	if existing.Status == domain.SubscriberUnsubscribed {
		existing.Status = domain.SubscriberActive
		existing.SubscribedAt = now
		existing.UnsubscribedAt = nil
		res.Reactivated = true
	}
	existing.Tags = domain.MergeTags(existing.Tags, tags)
	if in.Source != "" {
		existing.Source = in.Source
	}
	if !in.Preferences.Empty() {
		existing.Preferences = in.Preferences.Apply(existing.Preferences)
	}
	existing.UpdatedAt = now

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, domain.StorageError("subscriber.update", err)
	}
	logger.Info("subscriber refreshed", "subscriber_id", existing.ID, "email", existing.Email, "reactivated", res.Reactivated)
	return res, nil
}

func newSubscriber(in domain.SubscriptionInput, client domain.ClientInfo, tags []string, now time.Time) *domain.Subscriber {
	source := in.Source
	if source == "" {
		source = domain.DefaultSubscriberSource
	}
	return &domain.Subscriber{
		ID:              uuid.New().String(),
		Email:           in.Email,
		Status:          domain.SubscriberActive,
		Source:          source,
		Tags:            tags,
		Preferences:     in.Preferences.Apply(domain.DefaultPreferences()),
		EngagementScore: domain.DefaultEngagementScore,
		IPAddress:       client.IPAddress,
		UserAgent:       client.UserAgent,
		SubscribedAt:    now,
		UpdatedAt:       now,
	}
}

// Unsubscribe marks the subscriber unsubscribed. The record is kept.
// Unsubscribing twice keeps the original unsubscribe time.
func (s *Service) Unsubscribe(ctx context.Context, email string) (*domain.Subscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sub, err := s.repo.GetByEmail(ctx, normalize(email))
	if err != nil {
		return nil, s.wrap("subscriber.unsubscribe", err)
	}
	if sub.Status == domain.SubscriberUnsubscribed && sub.UnsubscribedAt != nil {
		return sub, nil
	}
	now := s.now().UTC()
	sub.Status = domain.SubscriberUnsubscribed
	sub.UnsubscribedAt = &now
	sub.UpdatedAt = now
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, s.wrap("subscriber.unsubscribe", err)
	}
	logger.Info("subscriber unsubscribed", "subscriber_id", sub.ID, "email", sub.Email)
	return sub, nil
}

// UpdatePreferences lays patch over the stored preferences and merges tags.
func (s *Service) UpdatePreferences(ctx context.Context, email string, patch domain.PreferencePatch, tags []string) (*domain.Subscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sub, err := s.repo.GetByEmail(ctx, normalize(email))
	if err != nil {
		return nil, s.wrap("subscriber.update_preferences", err)
	}
	sub.Preferences = patch.Apply(sub.Preferences)
	sub.Tags = domain.MergeTags(sub.Tags, tags)
	sub.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, s.wrap("subscriber.update_preferences", err)
	}
	return sub, nil
}

// RecordEmailSent counts a delivered email against the subscriber.
func (s *Service) RecordEmailSent(ctx context.Context, sub *domain.Subscriber) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	at := s.now().UTC()
	if err := s.repo.RecordEmailSent(ctx, sub.ID, at); err != nil {
		return s.wrap("subscriber.record_email_sent", err)
	}
	sub.EmailsSent++
	sub.LastEmailSent = &at
	sub.UpdatedAt = at
	return nil
}

// Get returns a subscriber by email.
func (s *Service) Get(ctx context.Context, email string) (*domain.Subscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sub, err := s.repo.GetByEmail(ctx, normalize(email))
	if err != nil {
		return nil, s.wrap("subscriber.get", err)
	}
	return sub, nil
}

// Stats aggregates subscribers.
func (s *Service) Stats(ctx context.Context) (*domain.SubscriberStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	st, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, domain.StorageError("subscriber.stats", err)
	}
	return st, nil
}

func (s *Service) wrap(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return domain.NotFoundError(op, "subscriber")
	}
	return domain.StorageError(op, err)
}
