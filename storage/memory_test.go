package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

func sampleInfo(t *testing.T) task.TaskInfo {
	t.Helper()
	info, err := task.NewTaskInfo("voc-1", "ver-1", []task.SubtaskSpec{{Kind: task.KindHarvest}})
	if err != nil {
		t.Fatalf("build task info: %v", err)
	}
	return info
}

func finalizedResults(t *testing.T, status task.Status) task.Results {
	t.Helper()
	results := task.Results{}
	if err := results.Append("harvest", task.Succeed("fetched")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := results.Finalize(status); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return results
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	taskID, err := store.CreateTask(ctx, sampleInfo(t))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if taskID == "" {
		t.Fatal("expected a task ID")
	}

	record, err := store.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Completed() {
		t.Error("fresh record must not be completed")
	}
	if record.Info.VocabularyID != "voc-1" {
		t.Errorf("info snapshot lost: %+v", record.Info)
	}

	results := finalizedResults(t, task.StatusSuccess)
	if err := store.CompleteTask(ctx, taskID, results); err != nil {
		t.Fatalf("complete: %v", err)
	}

	record, err = store.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get after complete: %v", err)
	}
	if !record.Completed() {
		t.Fatal("record must be completed")
	}
	if record.Results.Status != task.StatusSuccess {
		t.Errorf("unexpected status %s", record.Results.Status)
	}
	if len(record.Results.Entries) != 1 || record.Results.Entries[0].Label != "harvest" {
		t.Errorf("results snapshot differs: %+v", record.Results.Entries)
	}
}

func TestMemoryStoreCompleteExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	taskID, err := store.CreateTask(ctx, sampleInfo(t))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CompleteTask(ctx, taskID, finalizedResults(t, task.StatusSuccess)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.CompleteTask(ctx, taskID, finalizedResults(t, task.StatusError)); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.GetTask(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.CompleteTask(ctx, "nope", finalizedResults(t, task.StatusError)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, _ := store.CreateTask(ctx, sampleInfo(t))
	time.Sleep(2 * time.Millisecond)
	second, _ := store.CreateTask(ctx, sampleInfo(t))

	records, err := store.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != second || records[1].ID != first {
		t.Errorf("records not newest first: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestFailAbandoned(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	orphanID, _ := store.CreateTask(ctx, sampleInfo(t))
	completedID, _ := store.CreateTask(ctx, sampleInfo(t))
	if err := store.CompleteTask(ctx, completedID, finalizedResults(t, task.StatusSuccess)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	failed, err := FailAbandoned(ctx, store, time.Millisecond)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 reconciled record, got %d", failed)
	}

	orphan, err := store.GetTask(ctx, orphanID)
	if err != nil {
		t.Fatalf("get orphan: %v", err)
	}
	if !orphan.Completed() || orphan.Results.Status != task.StatusError {
		t.Errorf("orphan not failed: %+v", orphan.Results)
	}

	completed, _ := store.GetTask(ctx, completedID)
	if completed.Results.Status != task.StatusSuccess {
		t.Error("completed record must be untouched")
	}
}
