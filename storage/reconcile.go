package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// RecordStore is the shared contract of Store and MemoryStore: the two
// narrow pipeline writes plus the read operations the CLI consumes.
type RecordStore interface {
	CreateTask(ctx context.Context, info task.TaskInfo) (string, error)
	CompleteTask(ctx context.Context, taskID string, results task.Results) error
	GetTask(ctx context.Context, taskID string) (*TaskRecord, error)
	ListTasks(ctx context.Context) ([]*TaskRecord, error)
}

// FailAbandoned finalizes records older than the given age that never
// completed, marking them as error. Processes that crashed mid-run leave
// such orphans behind; running this at startup reconciles them.
func FailAbandoned(ctx context.Context, store RecordStore, olderThan time.Duration) (int, error) {
	records, err := store.ListTasks(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	failed := 0
	for _, record := range records {
		if record.Completed() || record.CreatedAt.After(cutoff) {
			continue
		}
		results := task.Results{}
		if err := results.Finalize(task.StatusError); err != nil {
			return failed, fmt.Errorf("finalize abandoned results: %w", err)
		}
		if err := store.CompleteTask(ctx, record.ID, results); err != nil {
			return failed, fmt.Errorf("fail abandoned task %s: %w", record.ID, err)
		}
		failed++
	}
	return failed, nil
}
