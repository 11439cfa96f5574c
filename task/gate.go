package task

import "sync"

// versionGate enforces at most one concurrent run per vocabulary version.
// A second run for an active version is rejected immediately, never
// queued, so two runs can never write conflicting artifacts for the same
// version.
type versionGate struct {
	mu     sync.Mutex
	active map[string]bool
}

func newVersionGate() *versionGate {
	return &versionGate{active: make(map[string]bool)}
}

// acquire claims the version for one run. It fails with
// ConcurrencyConflictError when the version already has an active run.
func (g *versionGate) acquire(info TaskInfo) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := info.VersionKey()
	if g.active[key] {
		return &ConcurrencyConflictError{
			VocabularyID: info.VocabularyID,
			VersionID:    info.VersionID,
		}
	}
	g.active[key] = true
	return nil
}

// release frees the version for future runs.
func (g *versionGate) release(info TaskInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, info.VersionKey())
}
