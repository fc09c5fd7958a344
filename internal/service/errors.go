package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a status change would move backwards
	// or leave a terminal status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrConcurrentUpdate is returned when a write kept losing to concurrent
	// writers after all retries. Callers may retry later.
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
)
