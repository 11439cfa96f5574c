package task

// RunContext is the mutable scratch space for a single run. Providers read
// artifacts left by earlier subtasks and publish their own through
// StepOutcome.Artifacts; the runner merges them in between subtasks. A
// RunContext is exclusively owned by one run and never persisted.
type RunContext struct {
	vocabularyID string
	versionID    string
	workDir      string
	values       map[string]string
}

// NewRunContext creates the scratch space for one run. workDir is the
// run-private directory under which providers place intermediate files.
func NewRunContext(vocabularyID, versionID, workDir string) *RunContext {
	return &RunContext{
		vocabularyID: vocabularyID,
		versionID:    versionID,
		workDir:      workDir,
		values:       make(map[string]string),
	}
}

// VocabularyID returns the vocabulary identity of the run.
func (rc *RunContext) VocabularyID() string { return rc.vocabularyID }

// VersionID returns the version identity of the run.
func (rc *RunContext) VersionID() string { return rc.versionID }

// WorkDir returns the run-private scratch directory.
func (rc *RunContext) WorkDir() string { return rc.workDir }

// Get returns the artifact stored under key and whether it exists.
func (rc *RunContext) Get(key string) (string, bool) {
	v, ok := rc.values[key]
	return v, ok
}

// Set stores one artifact. Providers own disjoint key namespaces; a
// collision between providers of different kinds is a programmer error.
func (rc *RunContext) Set(key, value string) {
	rc.values[key] = value
}

// Merge copies all artifacts into the context, overwriting existing keys.
func (rc *RunContext) Merge(artifacts map[string]string) {
	for k, v := range artifacts {
		rc.values[k] = v
	}
}

// Len returns the number of stored artifacts.
func (rc *RunContext) Len() int { return len(rc.values) }
