package domain

import "errors"

// Error kinds returned by the core. Callers classify with errors.Is and
// decide the user-facing representation themselves.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrValidation  = errors.New("validation failed")
	ErrHoldExpired = errors.New("hold expired")
)
