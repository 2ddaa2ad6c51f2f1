package domain

import "errors"

var (
	// ErrNotFound is returned when a record does not exist for the user.
	ErrNotFound = errors.New("not found")

	// ErrValidation wraps every input validation failure. Operations that
	// return it have not touched the store.
	ErrValidation = errors.New("validation failed")
)
