package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// newTestStore starts an in-process NATS server with JetStream enabled and
// returns a registry Store backed by it. The server is torn down with the
// test.
func newTestStore(t *testing.T) *Store {
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
	store, err := NewStore(context.Background(), js)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestStoreVocabularies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateVocabulary(ctx, &Vocabulary{Slug: "anzsrc-for", Title: "ANZSRC FoR"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	v, err := store.GetVocabulary(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Slug != "anzsrc-for" || v.Title != "ANZSRC FoR" {
		t.Errorf("vocabulary snapshot lost: %+v", v)
	}

	if _, err := store.GetVocabulary(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreVersionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	versionID, err := store.CreateVersion(ctx, &Version{VocabularyID: "voc-1", Title: "2008"})
	if err != nil {
		t.Fatalf("create version: %v", err)
	}

	v, err := store.GetVersion(ctx, "voc-1", versionID)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if v.Status != VersionStatusDraft {
		t.Errorf("new versions must be drafts, got %s", v.Status)
	}

	if err := store.SetVersionStatus(ctx, "voc-1", versionID, "published"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	v, err = store.GetVersion(ctx, "voc-1", versionID)
	if err != nil {
		t.Fatalf("get after set: %v", err)
	}
	if v.Status != VersionStatusPublished {
		t.Errorf("expected published, got %s", v.Status)
	}

	if err := store.SetVersionStatus(ctx, "voc-1", versionID, "bogus"); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestStoreSetStatusCreatesVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SetVersionStatus(ctx, "voc-9", "ver-9", "processing"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	v, err := store.GetVersion(ctx, "voc-9", "ver-9")
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if v.Status != VersionStatusProcessing {
		t.Errorf("expected processing, got %s", v.Status)
	}
}

func TestStoreVersionRequiresVocabulary(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateVersion(context.Background(), &Version{Title: "orphan"}); err == nil {
		t.Error("expected error for version without vocabulary ID")
	}
}
