package subscriber

import (
	"context"
	"time"

	"github.com/jbrand/leadintake/internal/domain"
)

// Repository defines the data access contract for subscribers. Email is the
// natural key and is always passed normalized.
type Repository interface {
	// GetByEmail returns ErrNotFound if no subscriber has this email.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// Insert stores a new subscriber. Returns ErrDuplicate if the email is taken.
	Insert(ctx context.Context, s *domain.Subscriber) error

	// Update overwrites the mutable fields of an existing subscriber by ID.
	Update(ctx context.Context, s *domain.Subscriber) error

	// RecordEmailSent increments emails_sent and stamps last_email_sent.
	RecordEmailSent(ctx context.Context, id string, at time.Time) error

	// Stats aggregates all subscribers.
	Stats(ctx context.Context) (*domain.SubscriberStats, error)
}
