package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrInvalidCursor is returned when a cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor format")

	// ErrInvalidRecord is returned when a staged record fails validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrNotFound is returned when a run or analysis does not exist.
	ErrNotFound = errors.New("not found")
)
