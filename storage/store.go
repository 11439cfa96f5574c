package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// BucketTasks is the KV bucket holding task records.
const BucketTasks = "VOCAB_TASKS"

// Store persists task records in NATS JetStream KV. It implements
// task.Store plus the read operations consumed by the CLI.
type Store struct {
	tasks jetstream.KeyValue
}

// NewStore creates a Store on the given JetStream context, creating the
// tasks bucket if it does not exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	tasks, err := getOrCreateBucket(ctx, js, BucketTasks)
	if err != nil {
		return nil, fmt.Errorf("create tasks bucket: %w", err)
	}
	return &Store{tasks: tasks}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Vocabulary pipeline task records",
		History:     5, // Keep last 5 revisions
	})
}

// CreateTask records an accepted run and returns its task ID.
func (s *Store) CreateTask(ctx context.Context, info task.TaskInfo) (string, error) {
	record := &TaskRecord{
		ID:        newTaskID(),
		Info:      info,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal task record: %w", err)
	}
	if _, err := s.tasks.Create(ctx, record.ID, data); err != nil {
		return "", fmt.Errorf("store task record: %w", err)
	}
	return record.ID, nil
}

// CompleteTask attaches the finalized Results to a record, exactly once.
// The KV revision check makes the update atomic against concurrent writes.
func (s *Store) CompleteTask(ctx context.Context, taskID string, results task.Results) error {
	entry, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("get task record: %w", err)
	}

	var record TaskRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return fmt.Errorf("unmarshal task record: %w", err)
	}
	if record.Completed() {
		return ErrAlreadyCompleted
	}

	now := time.Now().UTC()
	record.Results = &results
	record.CompletedAt = &now

	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	if _, err := s.tasks.Update(ctx, taskID, data, entry.Revision()); err != nil {
		return fmt.Errorf("update task record: %w", err)
	}
	return nil
}

// GetTask retrieves a task record by ID.
func (s *Store) GetTask(ctx context.Context, taskID string) (*TaskRecord, error) {
	entry, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task record: %w", err)
	}

	var record TaskRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal task record: %w", err)
	}
	return &record, nil
}

// ListTasks returns all task records, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]*TaskRecord, error) {
	keys, err := s.tasks.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list task keys: %w", err)
	}

	records := make([]*TaskRecord, 0, len(keys))
	for _, key := range keys {
		entry, err := s.tasks.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var record TaskRecord
		if err := json.Unmarshal(entry.Value(), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound)
}
