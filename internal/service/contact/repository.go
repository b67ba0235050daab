package contact

import (
	"context"
	"time"

	"github.com/jbrand/leadintake/internal/domain"
)

// Repository defines the data access contract for contact leads.
type Repository interface {
	// FindRecentByEmail returns the newest contact for email created at or
	// after since. Returns ErrNotFound if there is none.
	FindRecentByEmail(ctx context.Context, email string, since time.Time) (*domain.Contact, error)

	// Insert stores a new contact. The caller assigns the ID.
	Insert(ctx context.Context, c *domain.Contact) error

	// Get returns a contact by ID. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Contact, error)

	// UpdateStatus sets status, and notes when non-nil, and returns the
	// updated record. Returns ErrNotFound if the ID doesn't exist.
	UpdateStatus(ctx context.Context, id string, status domain.ContactStatus, notes *string, at time.Time) (*domain.Contact, error)

	// Stats aggregates all contacts; Last24Hours counts those created after since.
	Stats(ctx context.Context, since time.Time) (*domain.ContactStats, error)
}
