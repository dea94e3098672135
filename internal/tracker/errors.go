package tracker

import "errors"

// Domain error categories. Operations wrap these with context so callers
// can branch with errors.Is while still seeing a human-readable message.
var (
	// ErrValidation marks a request rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks an illegal state transition or duplicate record.
	ErrConflict = errors.New("conflict")

	// ErrForbidden marks an actor lacking required ownership.
	ErrForbidden = errors.New("forbidden")
)
