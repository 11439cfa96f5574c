package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket names for registry entities.
const (
	BucketVocabularies = "VOCAB_VOCABULARIES"
	BucketVersions     = "VOCAB_VERSIONS"
)

// Store keeps registry entities in NATS JetStream KV.
type Store struct {
	vocabularies jetstream.KeyValue
	versions     jetstream.KeyValue
}

// NewStore creates a Store on the given JetStream context, creating the
// registry buckets if they do not exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	vocabularies, err := getOrCreateBucket(ctx, js, BucketVocabularies)
	if err != nil {
		return nil, fmt.Errorf("create vocabularies bucket: %w", err)
	}
	versions, err := getOrCreateBucket(ctx, js, BucketVersions)
	if err != nil {
		return nil, fmt.Errorf("create versions bucket: %w", err)
	}
	return &Store{vocabularies: vocabularies, versions: versions}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Vocabulary registry entities",
		History:     5,
	})
}

// CreateVocabulary stores a new vocabulary and returns its ID.
func (s *Store) CreateVocabulary(ctx context.Context, v *Vocabulary) (string, error) {
	if v.ID == "" {
		v.ID = NewID()
	}
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal vocabulary: %w", err)
	}
	if _, err := s.vocabularies.Create(ctx, v.ID, data); err != nil {
		return "", fmt.Errorf("store vocabulary: %w", err)
	}
	return v.ID, nil
}

// GetVocabulary retrieves a vocabulary by ID.
func (s *Store) GetVocabulary(ctx context.Context, id string) (*Vocabulary, error) {
	entry, err := s.vocabularies.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get vocabulary: %w", err)
	}
	var v Vocabulary
	if err := json.Unmarshal(entry.Value(), &v); err != nil {
		return nil, fmt.Errorf("unmarshal vocabulary: %w", err)
	}
	return &v, nil
}

// CreateVersion stores a new version of a vocabulary and returns its ID.
// New versions start as drafts.
func (s *Store) CreateVersion(ctx context.Context, v *Version) (string, error) {
	if v.VocabularyID == "" {
		return "", fmt.Errorf("version requires a vocabulary ID")
	}
	if v.ID == "" {
		v.ID = NewID()
	}
	if v.Status == "" {
		v.Status = VersionStatusDraft
	}
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal version: %w", err)
	}
	if _, err := s.versions.Create(ctx, versionKey(v.VocabularyID, v.ID), data); err != nil {
		return "", fmt.Errorf("store version: %w", err)
	}
	return v.ID, nil
}

// GetVersion retrieves a version by vocabulary and version ID.
func (s *Store) GetVersion(ctx context.Context, vocabularyID, versionID string) (*Version, error) {
	entry, err := s.versions.Get(ctx, versionKey(vocabularyID, versionID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	var v Version
	if err := json.Unmarshal(entry.Value(), &v); err != nil {
		return nil, fmt.Errorf("unmarshal version: %w", err)
	}
	return &v, nil
}

// SetVersionStatus updates the lifecycle status of a version. The string
// signature satisfies the pipeline's VersionStatusWriter interface; the
// status is validated before anything is written. Unknown versions are
// created on the fly so a pipeline run can target a version that was never
// registered explicitly.
func (s *Store) SetVersionStatus(ctx context.Context, vocabularyID, versionID, status string) error {
	parsed, err := ParseVersionStatus(status)
	if err != nil {
		return err
	}

	version, err := s.GetVersion(ctx, vocabularyID, versionID)
	if errors.Is(err, ErrNotFound) {
		_, err := s.CreateVersion(ctx, &Version{
			ID:           versionID,
			VocabularyID: vocabularyID,
			Status:       parsed,
		})
		return err
	}
	if err != nil {
		return err
	}

	version.Status = parsed
	version.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("marshal version: %w", err)
	}
	if _, err := s.versions.Put(ctx, versionKey(vocabularyID, versionID), data); err != nil {
		return fmt.Errorf("update version: %w", err)
	}
	return nil
}
