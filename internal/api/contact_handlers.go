package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/pkg/logger"
	"github.com/jbrand/leadintake/internal/validation"
)

type notificationStatus struct {
	Sent  bool   `json:"sent"`
	Mode  string `json:"mode,omitempty"`
	Error string `json:"error,omitempty"`
}

type contactDetails struct {
	ID             string              `json:"id"`
	IsDuplicate    bool                `json:"isDuplicate"`
	Priority       domain.Priority     `json:"priority"`
	Tags           []string            `json:"tags"`
	LeadScore      int                 `json:"leadScore"`
	Notification   *notificationStatus `json:"notification,omitempty"`
	ProcessingTime string              `json:"processingTime"`
}

// CreateContact stores a lead. New leads are archived and announced to the
// team; the notification outcome is reported but never fails the request.
//
//	POST /contact
func (h *Handlers) CreateContact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	raw, err := decode(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	v := validation.Contact(raw)
	if !v.OK() {
		h.respondError(w, r, v.Err())
		return
	}

	saved, err := h.contacts.Save(r.Context(), v.Value, clientInfo(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c := saved.Record
	details := contactDetails{
		ID:          saved.ID,
		IsDuplicate: saved.IsDuplicate,
		Priority:    c.Priority,
		Tags:        c.Tags,
		LeadScore:   c.LeadScore,
	}
	msg := "Thank you! Your message has been received."
	if saved.IsDuplicate {
		msg = "Thank you! We already have your message and will be in touch soon."
	}
	if saved.Created {
		h.archive(r.Context(), c)
		details.Notification = h.alert(r.Context(), c)
	}
	details.ProcessingTime = processingTime(start)
	respondOK(w, msg, details)
}

func (h *Handlers) alert(ctx context.Context, c *domain.Contact) *notificationStatus {
	del, err := h.notifier.SendContactAlert(ctx, c)
	if err != nil {
		logger.Warn("contact alert failed", "contact_id", c.ID, "error", err)
		return &notificationStatus{Error: string(domain.KindOf(err))}
	}
	return &notificationStatus{Sent: del.Sent, Mode: del.Mode}
}

// archive uploads c in the background. Failures are logged only.
func (h *Handlers) archive(ctx context.Context, c *domain.Contact) {
	if h.archiver == nil {
		return
	}
	h.jobs.Add(1)
	go func() {
		defer h.jobs.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := h.archiver.Archive(actx, c); err != nil {
			logger.Warn("lead archive failed", "contact_id", c.ID, "error", err)
		}
	}()
}

// ContactStats reports aggregate lead counts.
//
//	GET /contact
func (h *Handlers) ContactStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.contacts.Stats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"statistics": st,
	})
}

// UpdateContactStatus moves a lead through the sales pipeline.
//
//	PUT /contact
func (h *Handlers) UpdateContactStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := decode(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	up, err := validation.StatusUpdate(raw)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	c, err := h.contacts.UpdateStatus(r.Context(), up.ID, up.Status, up.Notes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, "Contact status updated", map[string]any{
		"id":        c.ID,
		"status":    c.Status,
		"notes":     c.Notes,
		"updatedAt": c.UpdatedAt,
	})
}
