package contact

import "errors"

// Sentinel errors returned by Repository implementations.
var (
	ErrNotFound = errors.New("contact not found")
)
