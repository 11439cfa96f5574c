package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a task record is not found.
	ErrNotFound = errors.New("task record not found")

	// ErrAlreadyCompleted is returned when CompleteTask is called for a
	// record that already carries finalized results.
	ErrAlreadyCompleted = errors.New("task record already completed")
)
