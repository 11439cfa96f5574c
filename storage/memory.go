package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// MemoryStore is an in-memory task store with the same contract as Store.
// Used by tests and by single-shot CLI runs that have no NATS available.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*TaskRecord
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*TaskRecord)}
}

// CreateTask records an accepted run and returns its task ID.
func (s *MemoryStore) CreateTask(_ context.Context, info task.TaskInfo) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &TaskRecord{
		ID:        newTaskID(),
		Info:      info,
		CreatedAt: time.Now().UTC(),
	}
	s.records[record.ID] = record
	return record.ID, nil
}

// CompleteTask attaches the finalized Results to a record, exactly once.
func (s *MemoryStore) CompleteTask(_ context.Context, taskID string, results task.Results) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[taskID]
	if !ok {
		return ErrNotFound
	}
	if record.Completed() {
		return ErrAlreadyCompleted
	}

	now := time.Now().UTC()
	record.Results = &results
	record.CompletedAt = &now
	return nil
}

// GetTask retrieves a task record by ID.
func (s *MemoryStore) GetTask(_ context.Context, taskID string) (*TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

// ListTasks returns all task records, newest first.
func (s *MemoryStore) ListTasks(_ context.Context) ([]*TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*TaskRecord, 0, len(s.records))
	for _, record := range s.records {
		copied := *record
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
