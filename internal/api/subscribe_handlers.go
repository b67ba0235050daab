package api

import (
	"net/http"
	"time"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/pkg/logger"
	"github.com/jbrand/leadintake/internal/validation"
)

type subscribeDetails struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	IsExisting        bool               `json:"isExisting"`
	Reactivated       bool               `json:"reactivated"`
	WelcomeEmailSent  bool               `json:"welcomeEmailSent"`
	WelcomeEmailError string             `json:"welcomeEmailError,omitempty"`
	Tags              []string           `json:"tags"`
	EngagementScore   int                `json:"engagementScore"`
	Preferences       domain.Preferences `json:"preferences"`
	ProcessingTime    string             `json:"processingTime"`
}

// Subscribe creates or reactivates a newsletter subscriber. The welcome email
// goes only to new and reactivated subscribers; its failure is reported next
// to the stored subscription rather than undoing it.
//
//	POST /subscribe
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	raw, err := decode(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	v := validation.Subscription(raw)
	if !v.OK() {
		h.respondError(w, r, v.Err())
		return
	}

	res, err := h.subscribers.Subscribe(r.Context(), v.Value, clientInfo(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	s := res.Record
	details := subscribeDetails{
		ID:          s.ID,
		Email:       s.Email,
		IsExisting:  res.IsExisting,
		Reactivated: res.Reactivated,
	}

	if res.WelcomeDue() {
		del, err := h.notifier.SendWelcomeEmail(r.Context(), s, res.Reactivated)
		switch {
		case err != nil:
			logger.Warn("welcome email failed", "subscriber_id", s.ID, "error", err)
			details.WelcomeEmailError = string(domain.KindOf(err))
		case del.Sent:
			details.WelcomeEmailSent = true
			if err := h.subscribers.RecordEmailSent(r.Context(), s); err != nil {
				logger.Warn("record welcome email failed", "subscriber_id", s.ID, "error", err)
			}
		}
	}

	details.Tags = s.Tags
	details.EngagementScore = s.EngagementScore
	details.Preferences = s.Preferences
	details.ProcessingTime = processingTime(start)

	msg := "Successfully subscribed! Check your inbox for a welcome email."
	switch {
	case res.Reactivated:
		msg = "Welcome back! Your subscription has been reactivated."
	case res.IsExisting:
		msg = "You're already subscribed. Thanks for staying with us!"
	}
	respondOK(w, msg, details)
}

// SubscriberStats reports aggregate subscriber counts.
//
//	GET /subscribe
func (h *Handlers) SubscriberStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.subscribers.Stats(r.Context())
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

// Unsubscribe soft-deletes a subscription.
//
//	DELETE /subscribe?email=...
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("email")
	if raw == "" {
		h.respondError(w, r, domain.ValidationError(domain.FieldError{Field: "email", Message: "email is required"}))
		return
	}
	email, ok := validation.NormalizeEmail(raw)
	if !ok {
		h.respondError(w, r, domain.ValidationError(domain.FieldError{Field: "email", Message: "email is not a valid email address"}))
		return
	}
	s, err := h.subscribers.Unsubscribe(r.Context(), email)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, "You have been unsubscribed.", map[string]any{
		"email":          s.Email,
		"unsubscribedAt": s.UnsubscribedAt,
	})
}

// UpdatePreferences changes a subscriber's preferences and tags.
//
//	PUT /subscribe
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	raw, err := decode(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	v := validation.PreferenceUpdate(raw)
	if !v.OK() {
		h.respondError(w, r, v.Err())
		return
	}
	s, err := h.subscribers.UpdatePreferences(r.Context(), v.Value.Email, v.Value.Preferences, v.Value.Tags)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, "Preferences updated", map[string]any{
		"email":       s.Email,
		"preferences": s.Preferences,
		"tags":        s.Tags,
	})
}
