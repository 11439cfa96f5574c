package task

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleTaskYAML = `
vocabulary_id: anzsrc-for
version_id: "2008"
subtasks:
  - kind: harvest
    config:
      source_type: poolparty
      api_url: https://poolparty.example.org
      project_id: anzsrc
  - kind: transform
  - kind: subject-resolve
    critical: true
    config:
      subjects: Chemistry, Physics
      resolver.anzsrc: https://resolver.example.org/lookup
  - kind: import
  - kind: cleanup
`

func TestParseTaskYAML(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		info, err := ParseTaskYAML([]byte(sampleTaskYAML))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.VocabularyID != "anzsrc-for" || info.VersionID != "2008" {
			t.Errorf("unexpected identity: %s/%s", info.VocabularyID, info.VersionID)
		}
		if len(info.Subtasks) != 5 {
			t.Fatalf("expected 5 subtasks, got %d", len(info.Subtasks))
		}
		if info.Subtasks[0].Kind != KindHarvest {
			t.Errorf("expected harvest first, got %s", info.Subtasks[0].Kind)
		}
		if got, _ := info.Subtasks[0].ConfigValue("project_id"); got != "anzsrc" {
			t.Errorf("config not parsed: %q", got)
		}
		if !info.Subtasks[2].IsCritical() {
			t.Error("explicit critical flag not parsed")
		}
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, err := ParseTaskYAML([]byte("vocabulary_id: a\nversion_id: b\nsubtasks:\n  - kind: reindex\n"))
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
	})

	t.Run("malformed yaml rejected", func(t *testing.T) {
		_, err := ParseTaskYAML([]byte("subtasks: ["))
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
	})
}

func TestLoadTaskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.yaml")
	if err := os.WriteFile(path, []byte(sampleTaskYAML), 0o644); err != nil {
		t.Fatalf("write task file: %v", err)
	}

	info, err := LoadTaskFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.VocabularyID != "anzsrc-for" {
		t.Errorf("unexpected vocabulary ID %q", info.VocabularyID)
	}

	if _, err := LoadTaskFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
