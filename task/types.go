// Package task implements the vocabulary processing pipeline: task
// definitions, the provider contract, the runner state machine and the
// ordered results record produced by every run.
package task

import (
	"fmt"
	"strings"
)

// ProviderKind identifies one category of processing step.
type ProviderKind string

const (
	// KindHarvest pulls raw vocabulary data from an external source.
	KindHarvest ProviderKind = "harvest"
	// KindTransform rewrites harvested data into a canonical concept tree.
	KindTransform ProviderKind = "transform"
	// KindImport publishes the canonical representation to the registry
	// and the search sink.
	KindImport ProviderKind = "import"
	// KindSubjectResolve maps free-text subject labels to canonical IRIs.
	KindSubjectResolve ProviderKind = "subject-resolve"
	// KindCleanup releases temporary run artifacts. Cleanup subtasks run
	// even after the run has aborted.
	KindCleanup ProviderKind = "cleanup"
)

// ParseProviderKind parses a provider kind string. The kind set is closed;
// anything else is a configuration error.
func ParseProviderKind(s string) (ProviderKind, error) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case KindHarvest, KindTransform, KindImport, KindSubjectResolve, KindCleanup:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown provider kind: %q", s)
	}
}

// criticalByKind is the default criticality policy: a failed harvest or
// import makes every later step meaningless, while transform and subject
// resolution are best-effort enrichments.
func criticalByKind(kind ProviderKind) bool {
	switch kind {
	case KindHarvest, KindImport:
		return true
	default:
		return false
	}
}

// SubtaskSpec is one configured provider invocation within a task.
type SubtaskSpec struct {
	// Kind selects the provider implementation.
	Kind ProviderKind `json:"kind" yaml:"kind"`

	// Label names this subtask in the Results record. Defaults to the
	// kind when empty; must be unique within one TaskInfo.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Critical overrides the default by-kind criticality policy. A
	// critical subtask aborts the remainder of the run on failure.
	Critical *bool `json:"critical,omitempty" yaml:"critical,omitempty"`

	// Config carries provider-specific string configuration. Required
	// keys vary by kind; a provider fails its step on missing keys
	// rather than failing the run.
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// IsCritical reports whether a failure of this subtask aborts the run.
func (s SubtaskSpec) IsCritical() bool {
	if s.Critical != nil {
		return *s.Critical
	}
	return criticalByKind(s.Kind)
}

// ResultLabel returns the label under which this subtask's outcome is
// recorded.
func (s SubtaskSpec) ResultLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return string(s.Kind)
}

// ConfigValue returns the config value for key, and whether it was set to
// a non-empty value.
func (s SubtaskSpec) ConfigValue(key string) (string, bool) {
	v, ok := s.Config[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// TaskInfo describes one processing run: the vocabulary version it targets
// and the ordered subtasks to execute. A TaskInfo is immutable after
// construction; every execution request gets its own.
type TaskInfo struct {
	VocabularyID string        `json:"vocabulary_id" yaml:"vocabulary_id"`
	VersionID    string        `json:"version_id" yaml:"version_id"`
	Subtasks     []SubtaskSpec `json:"subtasks" yaml:"subtasks"`
}

// NewTaskInfo validates and constructs a TaskInfo. Unknown provider kinds,
// missing identity fields and duplicate labels are configuration errors:
// they surface before any provider executes.
func NewTaskInfo(vocabularyID, versionID string, subtasks []SubtaskSpec) (TaskInfo, error) {
	info := TaskInfo{
		VocabularyID: vocabularyID,
		VersionID:    versionID,
		Subtasks:     subtasks,
	}
	if err := info.Validate(); err != nil {
		return TaskInfo{}, err
	}
	return info, nil
}

// Validate checks the structural validity of the task description.
func (t TaskInfo) Validate() error {
	if t.VocabularyID == "" {
		return &ConfigurationError{Reason: "vocabulary_id is required"}
	}
	if t.VersionID == "" {
		return &ConfigurationError{Reason: "version_id is required"}
	}
	if len(t.Subtasks) == 0 {
		return &ConfigurationError{Reason: "at least one subtask is required"}
	}
	seen := make(map[string]bool, len(t.Subtasks))
	for i, sub := range t.Subtasks {
		if _, err := ParseProviderKind(string(sub.Kind)); err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("subtask %d: %v", i, err)}
		}
		label := sub.ResultLabel()
		if label == StatusKey {
			return &ConfigurationError{Reason: fmt.Sprintf("subtask %d: label %q is reserved", i, StatusKey)}
		}
		if seen[label] {
			return &ConfigurationError{Reason: fmt.Sprintf("subtask %d: duplicate label %q", i, label)}
		}
		seen[label] = true
	}
	return nil
}

// VersionKey identifies the vocabulary version this task operates on, used
// by the runner's concurrency gate.
func (t TaskInfo) VersionKey() string {
	return t.VocabularyID + "/" + t.VersionID
}
