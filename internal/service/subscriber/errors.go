package subscriber

import "errors"

// Sentinel errors returned by Repository implementations.
var (
	ErrNotFound  = errors.New("subscriber not found")
	ErrDuplicate = errors.New("subscriber already exists")
)
