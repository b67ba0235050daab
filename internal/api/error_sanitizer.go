package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/pkg/httputil"
	"github.com/jbrand/leadintake/internal/pkg/logger"
)

// envelope is the body of every intake response.
type envelope struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Details     any                 `json:"details,omitempty"`
	Error       string              `json:"error,omitempty"`
	Fields      []domain.FieldError `json:"fields,omitempty"`
	ErrorDetail string              `json:"error_detail,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	httputil.JSON(w, status, data)
}

func respondOK(w http.ResponseWriter, message string, details any) {
	httputil.OK(w, envelope{Success: true, Message: message, Details: details})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidStatus:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStorage, domain.KindMailConfiguration:
		return http.StatusServiceUnavailable
	case domain.KindMailSend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the client-safe message for err. Validation and
// lookup messages describe the caller's own input and pass through.
func publicMessage(kind domain.ErrorKind, err error) string {
	switch kind {
	case domain.KindValidation, domain.KindInvalidStatus, domain.KindNotFound:
		var de *domain.Error
		if errors.As(err, &de) {
			return de.Message
		}
		return "Bad request"
	case domain.KindStorage:
		return "Service temporarily unavailable, please try again later"
	case domain.KindMailConfiguration:
		return "Email service is not configured"
	case domain.KindMailSend:
		return "Email could not be delivered, please try again later"
	default:
		return "An internal error occurred"
	}
}

// respondError converts err to a JSON error response. Server-side faults are
// logged in full; the raw cause reaches the client only in development.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	body := envelope{Message: publicMessage(kind, err), Error: string(kind)}
	if body.Error == "" {
		body.Error = "internal_error"
	}
	var de *domain.Error
	if errors.As(err, &de) {
		body.Fields = de.Fields
	}
	if !h.mode.IsProduction() {
		body.ErrorDetail = err.Error()
	}

	if status >= 500 {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	respondJSON(w, status, body)
}

// decode reads the JSON object body, reporting malformed input as a
// validation error.
func decode(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	raw, err := httputil.DecodeObject(w, r)
	if err != nil {
		return nil, domain.ValidationError(domain.FieldError{Field: "body", Message: err.Error()})
	}
	return raw, nil
}

func clientInfo(r *http.Request) domain.ClientInfo {
	return domain.ClientInfo{IPAddress: httputil.ClientIP(r), UserAgent: r.UserAgent()}.Normalized()
}

func processingTime(start time.Time) string {
	return fmt.Sprintf("%dms", time.Since(start).Milliseconds())
}
