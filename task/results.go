package task

import (
	"errors"
	"fmt"
)

// Status is the terminal status of a run.
type Status string

const (
	// StatusSuccess means every subtask succeeded.
	StatusSuccess Status = "success"
	// StatusPartial means at least one non-critical subtask failed but no
	// critical subtask did.
	StatusPartial Status = "partial"
	// StatusError means a critical subtask failed and the run aborted.
	StatusError Status = "error"
)

// StatusKey is the reserved Results label carrying the terminal status.
const StatusKey = "status"

// StepOutcome is what a provider reports for one subtask.
type StepOutcome struct {
	// Success reports whether the step did its work.
	Success bool `json:"success"`

	// Message is a human-readable account of what happened.
	Message string `json:"message"`

	// Artifacts are context entries produced by the step. They are merged
	// into the RunContext only when the step succeeded.
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// Succeed builds a successful outcome.
func Succeed(format string, args ...any) StepOutcome {
	return StepOutcome{Success: true, Message: fmt.Sprintf(format, args...)}
}

// Fail builds a failed outcome. Providers convert every internal error into
// one of these; failures never propagate out of Execute.
func Fail(format string, args ...any) StepOutcome {
	return StepOutcome{Success: false, Message: fmt.Sprintf(format, args...)}
}

// WithArtifacts attaches produced artifacts to an outcome.
func (o StepOutcome) WithArtifacts(artifacts map[string]string) StepOutcome {
	o.Artifacts = artifacts
	return o
}

// Entry is one ordered Results record: the subtask's label and its outcome
// rendered as a string.
type Entry struct {
	Label   string `json:"label"`
	Outcome string `json:"outcome"`
}

// Results is the append-only outcome record of one run: exactly one entry
// per executed subtask, in execution order, plus a terminal status set
// exactly once. Skipped subtasks after an abort are absent, not failed.
// Finalization is carried by the Status field itself, so a record stays
// sealed across serialization round trips.
type Results struct {
	Entries []Entry `json:"entries"`
	Status  Status  `json:"status,omitempty"`
}

// ErrAlreadyFinalized is returned when a Results record is appended to or
// finalized after its terminal status has been set.
var ErrAlreadyFinalized = errors.New("results already finalized")

// Append records one executed subtask's outcome.
func (r *Results) Append(label string, outcome StepOutcome) error {
	if r.Finalized() {
		return ErrAlreadyFinalized
	}
	rendered := outcome.Message
	if !outcome.Success && rendered == "" {
		rendered = "failed"
	}
	if outcome.Success && rendered == "" {
		rendered = "ok"
	}
	r.Entries = append(r.Entries, Entry{Label: label, Outcome: rendered})
	return nil
}

// Finalize sets the terminal status. It may be called exactly once, with
// one of the three terminal statuses.
func (r *Results) Finalize(status Status) error {
	if r.Finalized() {
		return ErrAlreadyFinalized
	}
	switch status {
	case StatusSuccess, StatusPartial, StatusError:
	default:
		return fmt.Errorf("invalid terminal status: %q", status)
	}
	r.Status = status
	return nil
}

// Finalized reports whether the terminal status has been set.
func (r *Results) Finalized() bool { return r.Status != "" }

// Get returns the outcome recorded under label.
func (r *Results) Get(label string) (string, bool) {
	for _, e := range r.Entries {
		if e.Label == label {
			return e.Outcome, true
		}
	}
	return "", false
}

// Len returns the number of per-subtask entries.
func (r *Results) Len() int { return len(r.Entries) }

// stepResult pairs a subtask's criticality with whether it succeeded, the
// input to status aggregation.
type stepResult struct {
	succeeded bool
	critical  bool
}

// aggregateStatus derives the terminal status from the ordered sequence of
// executed step results. It is a pure function: recomputing it from the
// same sequence always yields the same status, which supports
// crash-recovery reconciliation.
func aggregateStatus(steps []stepResult) Status {
	status := StatusSuccess
	for _, s := range steps {
		if s.succeeded {
			continue
		}
		if s.critical {
			return StatusError
		}
		status = StatusPartial
	}
	return status
}
