// Package watcher watches the uploads directory for new vocabulary files
// and submits a processing task for each one.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/harvest"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// Submitter accepts task submissions; the pipeline runner satisfies it.
type Submitter interface {
	Run(ctx context.Context, info task.TaskInfo) (*task.RunReport, error)
}

// Config configures the uploads watcher.
type Config struct {
	// Dir is the watched uploads directory.
	Dir string

	// DebounceDelay is how long to wait for more writes to a file before
	// submitting it, so half-written uploads are not harvested.
	DebounceDelay time.Duration

	// FileExtensions lists accepted upload extensions.
	FileExtensions []string
}

// UploadWatcher turns files dropped into the uploads directory into
// pipeline runs: harvest (file source), transform, import, cleanup.
type UploadWatcher struct {
	config    Config
	submitter Submitter
	watcher   *fsnotify.Watcher
	logger    *slog.Logger

	extensions map[string]bool

	// Debouncing: collect writes before submitting
	pendingMu sync.Mutex
	pending   map[string]time.Time

	// In-flight run submissions
	runs sync.WaitGroup
}

// New creates an uploads watcher.
func New(config Config, submitter Submitter, logger *slog.Logger) (*UploadWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = 500 * time.Millisecond
	}

	extensions := make(map[string]bool)
	if len(config.FileExtensions) == 0 {
		extensions[".json"] = true
		extensions[".ttl"] = true
		extensions[".rdf"] = true
	} else {
		for _, ext := range config.FileExtensions {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			extensions[strings.ToLower(ext)] = true
		}
	}

	return &UploadWatcher{
		config:     config,
		submitter:  submitter,
		watcher:    fsw,
		logger:     logger,
		extensions: extensions,
		pending:    make(map[string]time.Time),
	}, nil
}

// Start begins watching the uploads directory.
func (w *UploadWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("uploads watcher started",
		slog.String("dir", w.config.Dir),
		slog.Duration("debounce", w.config.DebounceDelay))
	return nil
}

// Stop stops the watcher and waits for in-flight runs to finish.
func (w *UploadWatcher) Stop() error {
	err := w.watcher.Close()
	w.runs.Wait()
	return err
}

func (w *UploadWatcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.extensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("uploads watcher error", slog.String("error", err.Error()))
		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// flushPending submits every upload whose last write is older than the
// debounce delay. Submissions run off the event loop so a long pipeline
// run cannot stall event draining; the runner's version gate keeps
// concurrent runs safe.
func (w *UploadWatcher) flushPending(ctx context.Context) {
	cutoff := time.Now().Add(-w.config.DebounceDelay)

	w.pendingMu.Lock()
	var ready []string
	for path, last := range w.pending {
		if last.Before(cutoff) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	for _, path := range ready {
		w.runs.Add(1)
		go func(path string) {
			defer w.runs.Done()
			w.submit(ctx, path)
		}(path)
	}
}

func (w *UploadWatcher) submit(ctx context.Context, path string) {
	info, err := TaskForUpload(path)
	if err != nil {
		w.logger.Warn("invalid upload task",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}

	report, err := w.submitter.Run(ctx, info)
	if err != nil {
		w.logger.Warn("upload run rejected",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Info("upload processed",
		slog.String("path", path),
		slog.String("task_id", report.TaskID),
		slog.String("status", string(report.Results.Status)))
}

// TaskForUpload builds the standard processing task for one uploaded file.
// The vocabulary is identified by the file's base name; each upload is a
// fresh version.
func TaskForUpload(path string) (task.TaskInfo, error) {
	base := filepath.Base(path)
	vocabularyID := strings.TrimSuffix(base, filepath.Ext(base))
	versionID := time.Now().UTC().Format("20060102-150405")

	return task.NewTaskInfo(vocabularyID, versionID, []task.SubtaskSpec{
		{
			Kind: task.KindHarvest,
			Config: map[string]string{
				harvest.ConfigSourceType: harvest.SourceFile,
				harvest.ConfigPath:       path,
			},
		},
		{Kind: task.KindTransform},
		{Kind: task.KindImport},
		{Kind: task.KindCleanup},
	})
}
