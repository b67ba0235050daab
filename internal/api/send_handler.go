package api

import (
	"net/http"
	"time"

	"github.com/jbrand/leadintake/internal/classifier"
	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/validation"
)

type sendDetails struct {
	Mode           string          `json:"mode"`
	EmailID        string          `json:"emailId"`
	Priority       domain.Priority `json:"priority"`
	LeadScore      int             `json:"leadScore"`
	ProcessingTime string          `json:"processingTime"`
}

// SendInquiry classifies a project inquiry and emails it to the team without
// storing it. success reflects the actual delivery outcome.
//
//	POST /send
func (h *Handlers) SendInquiry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	raw, err := decode(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	v := validation.Inquiry(raw)
	if !v.OK() {
		h.respondError(w, r, v.Err())
		return
	}

	cls := classifier.Classify(v.Value)
	del, err := h.notifier.SendInquiry(r.Context(), v.Value, cls)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, "Thank you! Your inquiry has been sent.", sendDetails{
		Mode:           del.Mode,
		EmailID:        del.MessageID,
		Priority:       cls.Priority,
		LeadScore:      cls.LeadScore,
		ProcessingTime: processingTime(start),
	})
}
