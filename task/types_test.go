package task

import (
	"errors"
	"testing"
)

func TestParseProviderKind(t *testing.T) {
	t.Run("accepts known kinds", func(t *testing.T) {
		for _, s := range []string{"harvest", "transform", "import", "subject-resolve", "cleanup"} {
			if _, err := ParseProviderKind(s); err != nil {
				t.Errorf("unexpected error for %q: %v", s, err)
			}
		}
	})

	t.Run("normalizes case and space", func(t *testing.T) {
		kind, err := ParseProviderKind("  HARVEST ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if kind != KindHarvest {
			t.Errorf("expected %s, got %s", KindHarvest, kind)
		}
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		if _, err := ParseProviderKind("reindex"); err == nil {
			t.Error("expected error for unknown kind")
		}
	})
}

func TestSubtaskSpecCriticality(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name     string
		spec     SubtaskSpec
		expected bool
	}{
		{"harvest critical by default", SubtaskSpec{Kind: KindHarvest}, true},
		{"import critical by default", SubtaskSpec{Kind: KindImport}, true},
		{"transform not critical by default", SubtaskSpec{Kind: KindTransform}, false},
		{"subject-resolve not critical by default", SubtaskSpec{Kind: KindSubjectResolve}, false},
		{"cleanup not critical by default", SubtaskSpec{Kind: KindCleanup}, false},
		{"explicit override relaxes harvest", SubtaskSpec{Kind: KindHarvest, Critical: boolPtr(false)}, false},
		{"explicit override hardens transform", SubtaskSpec{Kind: KindTransform, Critical: boolPtr(true)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.spec.IsCritical(); got != tc.expected {
				t.Errorf("expected critical=%v, got %v", tc.expected, got)
			}
		})
	}
}

func TestNewTaskInfo(t *testing.T) {
	valid := []SubtaskSpec{{Kind: KindHarvest}, {Kind: KindImport}}

	t.Run("valid task", func(t *testing.T) {
		info, err := NewTaskInfo("voc-1", "ver-1", valid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.VersionKey() != "voc-1/ver-1" {
			t.Errorf("unexpected version key %q", info.VersionKey())
		}
	})

	configurationError := func(t *testing.T, err error) {
		t.Helper()
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
	}

	t.Run("missing vocabulary id", func(t *testing.T) {
		_, err := NewTaskInfo("", "ver-1", valid)
		configurationError(t, err)
	})

	t.Run("missing version id", func(t *testing.T) {
		_, err := NewTaskInfo("voc-1", "", valid)
		configurationError(t, err)
	})

	t.Run("no subtasks", func(t *testing.T) {
		_, err := NewTaskInfo("voc-1", "ver-1", nil)
		configurationError(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := NewTaskInfo("voc-1", "ver-1", []SubtaskSpec{{Kind: "reindex"}})
		configurationError(t, err)
	})

	t.Run("duplicate labels", func(t *testing.T) {
		_, err := NewTaskInfo("voc-1", "ver-1", []SubtaskSpec{
			{Kind: KindHarvest, Label: "step"},
			{Kind: KindImport, Label: "step"},
		})
		configurationError(t, err)
	})

	t.Run("duplicate kinds need distinct labels", func(t *testing.T) {
		_, err := NewTaskInfo("voc-1", "ver-1", []SubtaskSpec{
			{Kind: KindCleanup},
			{Kind: KindCleanup},
		})
		configurationError(t, err)

		_, err = NewTaskInfo("voc-1", "ver-1", []SubtaskSpec{
			{Kind: KindCleanup, Label: "cleanup-mid"},
			{Kind: KindCleanup, Label: "cleanup-final"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("reserved status label", func(t *testing.T) {
		_, err := NewTaskInfo("voc-1", "ver-1", []SubtaskSpec{{Kind: KindHarvest, Label: StatusKey}})
		configurationError(t, err)
	})
}
