package task

import "fmt"

// ConfigurationError reports an invalid task description. It is surfaced
// before any provider executes; the run never starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid task configuration: " + e.Reason
}

// ConcurrencyConflictError reports that a run is already active for the
// same vocabulary version. The new run is rejected, never queued.
type ConcurrencyConflictError struct {
	VocabularyID string
	VersionID    string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("a run is already active for vocabulary %s version %s",
		e.VocabularyID, e.VersionID)
}

// PersistenceError reports that the task store was unavailable. When Op is
// "complete" the run itself finished and Results carries the computed
// record that could not be written; callers must distinguish this from a
// processing failure.
type PersistenceError struct {
	Op      string
	Results *Results
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("task store unavailable during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
