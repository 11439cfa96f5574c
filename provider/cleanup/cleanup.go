// Package cleanup implements the cleanup provider: it releases temporary
// run artifacts matched by glob patterns under the run workspace. Cleanup
// subtasks run even after the run has aborted.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// Config keys read from the subtask configuration.
const (
	ConfigPatterns = "patterns"
)

// defaultPatterns covers the scratch directories the built-in providers
// write under the run workspace.
var defaultPatterns = []string{"harvest/**", "transform/**", "subjects/**"}

// Provider removes temporary files from the run workspace.
type Provider struct {
	logger *slog.Logger
}

// New creates the cleanup provider.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{logger: logger}
}

// Kind reports the provider kind.
func (p *Provider) Kind() task.ProviderKind { return task.KindCleanup }

// Execute removes every file under the run workspace matched by the
// configured doublestar patterns, then prunes directories left empty.
// Patterns never reach outside the workspace because they are matched
// against a filesystem rooted at it.
func (p *Provider) Execute(_ context.Context, spec task.SubtaskSpec, run *task.RunContext) task.StepOutcome {
	patterns := defaultPatterns
	if raw, ok := spec.ConfigValue(ConfigPatterns); ok {
		patterns = nil
		for _, part := range strings.Split(raw, ",") {
			if pattern := strings.TrimSpace(part); pattern != "" {
				patterns = append(patterns, pattern)
			}
		}
	}

	workDir := run.WorkDir()
	fsys := os.DirFS(workDir)

	matched := make(map[string]bool)
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return task.Fail("cleanup: invalid pattern %q", pattern)
		}
		paths, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return task.Fail("cleanup: glob %q: %v", pattern, err)
		}
		for _, p := range paths {
			matched[p] = true
		}
	}

	removed := 0
	var dirs []string
	for rel := range matched {
		full := filepath.Join(workDir, filepath.FromSlash(rel))
		info, err := os.Lstat(full)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return task.Fail("cleanup: stat %s: %v", rel, err)
		}
		if info.IsDir() {
			dirs = append(dirs, full)
			continue
		}
		if err := os.Remove(full); err != nil {
			return task.Fail("cleanup: remove %s: %v", rel, err)
		}
		removed++
	}

	// Deepest directories first so empty parents fall out too.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if err := removeIfEmpty(dir); err != nil {
			return task.Fail("cleanup: remove directory %s: %v", dir, err)
		}
	}

	p.logger.Debug("workspace cleaned",
		slog.String("work_dir", workDir),
		slog.Int("removed", removed))

	return task.Succeed("removed %d temporary files", removed)
}

func removeIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(dir)
}
