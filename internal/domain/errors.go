package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind tags an Error with the failure class the HTTP layer maps to a
// status code.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidStatus     ErrorKind = "invalid_status"
	KindStorage           ErrorKind = "storage_error"
	KindMailConfiguration ErrorKind = "mail_configuration_error"
	KindMailSend          ErrorKind = "mail_send_error"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type crossing layer boundaries.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }

// ValidationError builds a validation failure from field errors. The message
// is the first field's message so a single-field failure reads naturally.
func ValidationError(fields ...FieldError) *Error {
	msg := "invalid input"
	if len(fields) > 0 {
		msg = fields[0].Message
	}
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// NotFoundError reports that the referenced record does not exist.
func NotFoundError(op, what string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: what + " not found"}
}

// InvalidStatusError reports a status outside ContactStatuses.
func InvalidStatusError(status string) *Error {
	return &Error{
		Kind:    KindInvalidStatus,
		Message: fmt.Sprintf("invalid status %q", status),
		Fields:  []FieldError{{Field: "status", Message: "status must be one of new, contacted, qualified, converted, closed"}},
	}
}

// StorageError wraps a storage fault, keeping the cause for logs.
func StorageError(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Message: "storage unavailable", Err: err}
}

// MailConfigurationError reports that mail cannot be sent in this process.
func MailConfigurationError(msg string) *Error {
	return &Error{Kind: KindMailConfiguration, Message: msg}
}

// MailSendError wraps a delivery failure from the mail provider.
func MailSendError(op string, err error) *Error {
	return &Error{Kind: KindMailSend, Op: op, Message: "email delivery failed", Err: err}
}
