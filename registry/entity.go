// Package registry holds the vocabulary registry entities: vocabularies
// and their versions, with the version lifecycle status the pipeline
// writes as a run progresses.
package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VersionStatus is the lifecycle status of a vocabulary version. Identity
// is immutable; status is the one field the pipeline mutates.
type VersionStatus string

const (
	// VersionStatusDraft is the initial status of a new version.
	VersionStatusDraft VersionStatus = "draft"
	// VersionStatusProcessing means a pipeline run is active for the version.
	VersionStatusProcessing VersionStatus = "processing"
	// VersionStatusPublished means the version has been imported into the
	// registry store and search index.
	VersionStatusPublished VersionStatus = "published"
	// VersionStatusError means the last run for the version aborted.
	VersionStatusError VersionStatus = "error"
)

// ParseVersionStatus validates a lifecycle status string.
func ParseVersionStatus(s string) (VersionStatus, error) {
	status := VersionStatus(s)
	switch status {
	case VersionStatusDraft, VersionStatusProcessing, VersionStatusPublished, VersionStatusError:
		return status, nil
	default:
		return "", fmt.Errorf("unknown version status: %q", s)
	}
}

// Vocabulary is one controlled vocabulary tracked by the registry.
type Vocabulary struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Version is one revision of a vocabulary.
type Version struct {
	ID           string        `json:"id"`
	VocabularyID string        `json:"vocabulary_id"`
	Title        string        `json:"title"`
	Status       VersionStatus `json:"status"`
	ReleaseDate  string        `json:"release_date,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewID mints a registry entity identifier.
func NewID() string { return uuid.New().String() }

// versionKey is the KV key for a version, scoped under its vocabulary.
func versionKey(vocabularyID, versionID string) string {
	return vocabularyID + "." + versionID
}
