// Package storage provides durable task records for the vocabulary
// pipeline, backed by NATS JetStream KV, plus an in-memory implementation
// for tests and single-shot runs.
package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// TaskRecord is the persisted form of one submitted run: the immutable
// TaskInfo snapshot, the finalized Results once the run reaches a terminal
// state, and timestamps. The record is created when a run is accepted and
// updated exactly once at completion, so a crash mid-run leaves a
// discoverable record with no results.
type TaskRecord struct {
	ID          string        `json:"id"`
	Info        task.TaskInfo `json:"info"`
	Results     *task.Results `json:"results,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Completed reports whether the record carries finalized results.
func (r *TaskRecord) Completed() bool { return r.CompletedAt != nil }

// newTaskID mints the external task handle.
func newTaskID() string { return uuid.New().String() }
