// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers use these helpers instead of writing raw http.ResponseWriter calls
// so that JSON formatting and body limits stay consistent across endpoints.
package httputil
