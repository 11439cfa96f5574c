package task

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// taskFile is the YAML shape of a task definition accepted by the CLI.
type taskFile struct {
	VocabularyID string        `yaml:"vocabulary_id"`
	VersionID    string        `yaml:"version_id"`
	Subtasks     []SubtaskSpec `yaml:"subtasks"`
}

// LoadTaskFile parses a YAML task definition into a validated TaskInfo.
func LoadTaskFile(path string) (TaskInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TaskInfo{}, fmt.Errorf("read task file: %w", err)
	}
	return ParseTaskYAML(data)
}

// ParseTaskYAML parses YAML task definition bytes into a validated
// TaskInfo.
func ParseTaskYAML(data []byte) (TaskInfo, error) {
	var tf taskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return TaskInfo{}, &ConfigurationError{Reason: fmt.Sprintf("parse task file: %v", err)}
	}
	return NewTaskInfo(tf.VocabularyID, tf.VersionID, tf.Subtasks)
}
