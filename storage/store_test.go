package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// newTestJetStream starts an in-process NATS server with JetStream enabled
// and returns a JetStream context bound to it. The server is torn down with
// the test.
func newTestJetStream(t *testing.T) jetstream.JetStream {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("server not ready in time")
	}

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	js, err := jetstream.New(conn)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	return js
}

// runRecordStoreContract exercises the behavior Store and MemoryStore share.
// Each subtest gets a fresh store from the factory.
func runRecordStoreContract(t *testing.T, newStore func(t *testing.T) RecordStore) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		store := newStore(t)

		taskID, err := store.CreateTask(ctx, sampleInfo(t))
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		record, err := store.GetTask(ctx, taskID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if record.Completed() {
			t.Error("fresh record must not be completed")
		}
		if record.Info.VocabularyID != "voc-1" || record.Info.VersionID != "ver-1" {
			t.Errorf("info snapshot lost: %+v", record.Info)
		}

		if err := store.CompleteTask(ctx, taskID, finalizedResults(t, task.StatusPartial)); err != nil {
			t.Fatalf("complete: %v", err)
		}

		record, err = store.GetTask(ctx, taskID)
		if err != nil {
			t.Fatalf("get after complete: %v", err)
		}
		if !record.Completed() {
			t.Fatal("record must be completed")
		}
		if record.Results.Status != task.StatusPartial {
			t.Errorf("unexpected status %s", record.Results.Status)
		}
		if len(record.Results.Entries) != 1 || record.Results.Entries[0].Label != "harvest" {
			t.Errorf("results snapshot differs: %+v", record.Results.Entries)
		}
	})

	t.Run("complete exactly once", func(t *testing.T) {
		store := newStore(t)

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

		record, err := store.GetTask(ctx, taskID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if record.Results.Status != task.StatusSuccess {
			t.Errorf("first completion must win, got %s", record.Results.Status)
		}
	})

	t.Run("not found", func(t *testing.T) {
		store := newStore(t)

		if _, err := store.GetTask(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := store.CompleteTask(ctx, "nope", finalizedResults(t, task.StatusError)); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		store := newStore(t)

		first, err := store.CreateTask(ctx, sampleInfo(t))
		if err != nil {
			t.Fatalf("create first: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
		second, err := store.CreateTask(ctx, sampleInfo(t))
		if err != nil {
			t.Fatalf("create second: %v", err)
		}

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
	})
}

func TestRecordStoreContractMemory(t *testing.T) {
	runRecordStoreContract(t, func(t *testing.T) RecordStore {
		return NewMemoryStore()
	})
}

func TestRecordStoreContractJetStream(t *testing.T) {
	runRecordStoreContract(t, func(t *testing.T) RecordStore {
		store, err := NewStore(context.Background(), newTestJetStream(t))
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		return store
	})
}
