package contact

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

// Service implements lead persistence. It is safe for concurrent use if the
// underlying repository is.
type Service struct {
	repo    Repository
	locks   distlock.Factory
	now     func() time.Time
	timeout time.Duration
	window  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLocks serializes the dedup lookup-then-insert per email.
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

// WithDedupWindow sets how long a repeat submission counts as a duplicate.
func WithDedupWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// NewService creates a contact service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		now:     time.Now,
		timeout: defaultTimeout,
		window:  domain.DefaultDedupWindow,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SaveResult reports what Save did. ID is the stored record's id, whether it
// was just created or found as a duplicate.
type SaveResult struct {
	Record      *domain.Contact
	ID          string
	Created     bool
	IsDuplicate bool
}

// Save stores a validated lead unless the same email was stored within the
// dedup window, in which case the existing record is returned instead.
func (s *Service) Save(ctx context.Context, in domain.ContactInput, client domain.ClientInfo) (*SaveResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, domain.ValidationError(domain.FieldError{Field: "email", Message: "email is required"})
	}
	in.Email = email

	ctx, release := distlock.Guard(ctx, s.locks, "contact:"+email, lockTTL)
	defer release()

	now := s.now().UTC()
	existing, err := s.repo.FindRecentByEmail(ctx, email, now.Add(-s.window))
	switch {
	case err == nil:
		logger.Info("duplicate contact suppressed", "email", email, "contact_id", existing.ID)
		return &SaveResult{Record: existing, ID: existing.ID, IsDuplicate: true}, nil
	case !errors.Is(err, ErrNotFound):
		return nil, domain.StorageError("contact.find_recent", err)
	}

	cls := classifier.Classify(in)
	client = client.Normalized()
	c := &domain.Contact{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Email:     email,
		Phone:     in.Phone,
		Company:   in.Company,
		Website:   in.Website,
		Service:   in.Service,
		Budget:    in.Budget,
		Timeline:  in.Timeline,
		Message:   in.Message,
		Status:    domain.ContactNew,
		Priority:  cls.Priority,
		Tags:      cls.Tags,
		LeadScore: cls.LeadScore,
		Source:    domain.ContactSource,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, domain.StorageError("contact.insert", err)
	}

	logger.Info("contact stored", "contact_id", c.ID, "email", email, "priority", c.Priority, "lead_score", c.LeadScore)
	return &SaveResult{Record: c, ID: c.ID, Created: true}, nil
}

// Get returns a stored lead.
func (s *Service) Get(ctx context.Context, id string) (*domain.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.wrap("contact.get", err)
	}
	return c, nil
}

// UpdateStatus moves a lead through the sales pipeline. notes replaces the
// stored notes when non-nil.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.ContactStatus, notes *string) (*domain.Contact, error) {
	if !status.Valid() {
		return nil, domain.InvalidStatusError(string(status))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.repo.UpdateStatus(ctx, id, status, notes, s.now().UTC())
	if err != nil {
		return nil, s.wrap("contact.update_status", err)
	}
	logger.Info("contact status updated", "contact_id", id, "status", status)
	return c, nil
}

// Stats aggregates stored leads.
func (s *Service) Stats(ctx context.Context) (*domain.ContactStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	st, err := s.repo.Stats(ctx, s.now().UTC().Add(-24*time.Hour))
	if err != nil {
		return nil, domain.StorageError("contact.stats", err)
	}
	return st, nil
}

func (s *Service) wrap(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return domain.NotFoundError(op, "contact")
	}
	return domain.StorageError(op, err)
}
