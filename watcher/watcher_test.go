package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/harvest"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// recordingSubmitter captures submitted tasks without running a pipeline.
type recordingSubmitter struct {
	mu    sync.Mutex
	infos []task.TaskInfo
}

func (s *recordingSubmitter) Run(_ context.Context, info task.TaskInfo) (*task.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = append(s.infos, info)
	var results task.Results
	_ = results.Finalize(task.StatusSuccess)
	return &task.RunReport{TaskID: "t-1", Results: results}, nil
}

func (s *recordingSubmitter) submitted() []task.TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.TaskInfo, len(s.infos))
	copy(out, s.infos)
	return out
}

func TestTaskForUpload(t *testing.T) {
	info, err := TaskForUpload("/srv/uploads/gcmd-keywords.ttl")
	require.NoError(t, err)

	assert.Equal(t, "gcmd-keywords", info.VocabularyID)
	assert.NotEmpty(t, info.VersionID)

	require.Len(t, info.Subtasks, 4)
	assert.Equal(t, task.KindHarvest, info.Subtasks[0].Kind)
	assert.Equal(t, harvest.SourceFile, info.Subtasks[0].Config[harvest.ConfigSourceType])
	assert.Equal(t, "/srv/uploads/gcmd-keywords.ttl", info.Subtasks[0].Config[harvest.ConfigPath])
	assert.Equal(t, task.KindTransform, info.Subtasks[1].Kind)
	assert.Equal(t, task.KindImport, info.Subtasks[2].Kind)
	assert.Equal(t, task.KindCleanup, info.Subtasks[3].Kind)
}

func TestWatcherSubmitsSettledUploads(t *testing.T) {
	dir := t.TempDir()
	submitter := &recordingSubmitter{}

	w, err := New(Config{Dir: dir, DebounceDelay: 50 * time.Millisecond}, submitter, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "anzsrc-for.json"), []byte(`[]`), 0o644))

	require.Eventually(t, func() bool {
		return len(submitter.submitted()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	infos := submitter.submitted()
	assert.Equal(t, "anzsrc-for", infos[0].VocabularyID)
}

// blockingSubmitter holds every run until released, reporting each start.
type blockingSubmitter struct {
	started chan string
	release chan struct{}
}

func (s *blockingSubmitter) Run(_ context.Context, info task.TaskInfo) (*task.RunReport, error) {
	s.started <- info.VocabularyID
	<-s.release
	var results task.Results
	_ = results.Finalize(task.StatusSuccess)
	return &task.RunReport{TaskID: "t-1", Results: results}, nil
}

func TestWatcherLongRunDoesNotStallSubmissions(t *testing.T) {
	dir := t.TempDir()
	submitter := &blockingSubmitter{
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	var once sync.Once
	unblock := func() { once.Do(func() { close(submitter.release) }) }

	w, err := New(Config{Dir: dir, DebounceDelay: 50 * time.Millisecond}, submitter, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	defer unblock()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.json"), []byte(`[]`), 0o644))
	select {
	case <-submitter.started:
	case <-time.After(3 * time.Second):
		t.Fatal("first upload was never submitted")
	}

	// The first run is still blocked; a second upload must still be
	// debounced and submitted.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.json"), []byte(`[]`), 0o644))
	select {
	case name := <-submitter.started:
		assert.Equal(t, "second", name)
	case <-time.After(3 * time.Second):
		t.Fatal("second upload stalled behind the running first one")
	}

	unblock()
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	submitter := &recordingSubmitter{}

	w, err := New(Config{Dir: dir, DebounceDelay: 50 * time.Millisecond}, submitter, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, submitter.submitted())
}

func TestWatcherCustomExtensions(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir(), FileExtensions: []string{"nt", ".TTL"}}, &recordingSubmitter{}, nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.True(t, w.extensions[".nt"])
	assert.True(t, w.extensions[".ttl"])
	assert.False(t, w.extensions[".json"])
}
