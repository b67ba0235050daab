package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jbrand/leadintake/internal/config"
	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/notify"
	"github.com/jbrand/leadintake/internal/service/contact"
	"github.com/jbrand/leadintake/internal/service/subscriber"
)

// Notifier sends the transactional emails. *notify.Dispatcher implements it.
type Notifier interface {
	SendContactAlert(ctx context.Context, c *domain.Contact) (*notify.Delivery, error)
	SendInquiry(ctx context.Context, in domain.ContactInput, cls domain.Classification) (*notify.Delivery, error)
	SendWelcomeEmail(ctx context.Context, s *domain.Subscriber, reactivated bool) (*notify.Delivery, error)
}

// Archiver keeps an out-of-band copy of new leads.
type Archiver interface {
	Archive(ctx context.Context, c *domain.Contact) error
}

const archiveTimeout = 10 * time.Second

// Deps are the collaborators of the HTTP handlers. Archiver may be nil.
type Deps struct {
	Mode        config.Mode
	Contacts    *contact.Service
	Subscribers *subscriber.Service
	Notifier    Notifier
	Archiver    Archiver
}

// Handlers contains the HTTP handlers for the intake endpoints.
type Handlers struct {
	mode        config.Mode
	contacts    *contact.Service
	subscribers *subscriber.Service
	notifier    Notifier
	archiver    Archiver

	// background lead archive uploads
	jobs sync.WaitGroup
}

// NewHandlers creates Handlers from d.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		mode:        d.Mode,
		contacts:    d.Contacts,
		subscribers: d.Subscribers,
		notifier:    d.Notifier,
		archiver:    d.Archiver,
	}
}

// Wait blocks until background work started by requests has finished.
func (h *Handlers) Wait() { h.jobs.Wait() }

// Server represents the API server
type Server struct {
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(h *Handlers, health *HealthChecker, corsOrigins []string) *Server {
	return &Server{handler: SetupRoutes(h, health, corsOrigins), handlers: h}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and waits for pending archive
// uploads.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
