package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/jbrand/leadintake/internal/pkg/logger"
)

// MaxBodyBytes caps request bodies read by DecodeObject.
const MaxBodyBytes = 64 << 10

// JSON writes a JSON response with the given status code. The data is
// serialized and Content-Type is set automatically.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("json encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// DecodeObject reads a JSON object body into a generic map. Empty bodies,
// non-object JSON and trailing data are rejected.
func DecodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return nil, errors.New("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil, errors.New("request body is required")
		case errors.As(err, &maxErr):
			return nil, fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)
		default:
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	if raw == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if dec.More() {
		return nil, errors.New("invalid JSON: unexpected data after object")
	}
	return raw, nil
}

// ClientIP returns the caller's address without port. chi's RealIP
// middleware has already applied X-Forwarded-For / X-Real-IP.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
