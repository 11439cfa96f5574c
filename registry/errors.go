package registry

import "errors"

// Common registry errors.
var (
	// ErrNotFound is returned when a vocabulary or version is not found.
	ErrNotFound = errors.New("registry entity not found")
)
