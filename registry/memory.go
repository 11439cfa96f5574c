package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory registry with the same contract as Store.
type MemoryStore struct {
	mu           sync.RWMutex
	vocabularies map[string]*Vocabulary
	versions     map[string]*Version
}

// NewMemoryStore creates an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vocabularies: make(map[string]*Vocabulary),
		versions:     make(map[string]*Version),
	}
}

// CreateVocabulary stores a new vocabulary and returns its ID.
func (s *MemoryStore) CreateVocabulary(_ context.Context, v *Vocabulary) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = NewID()
	}
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt
	copied := *v
	s.vocabularies[v.ID] = &copied
	return v.ID, nil
}

// GetVocabulary retrieves a vocabulary by ID.
func (s *MemoryStore) GetVocabulary(_ context.Context, id string) (*Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vocabularies[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *v
	return &copied, nil
}

// CreateVersion stores a new version and returns its ID.
func (s *MemoryStore) CreateVersion(_ context.Context, v *Version) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = NewID()
	}
	if v.Status == "" {
		v.Status = VersionStatusDraft
	}
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt
	copied := *v
	s.versions[versionKey(v.VocabularyID, v.ID)] = &copied
	return v.ID, nil
}

// GetVersion retrieves a version by vocabulary and version ID.
func (s *MemoryStore) GetVersion(_ context.Context, vocabularyID, versionID string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[versionKey(vocabularyID, versionID)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *v
	return &copied, nil
}

// SetVersionStatus updates the lifecycle status of a version, creating the
// version if it was never registered. Satisfies the pipeline's
// VersionStatusWriter interface.
func (s *MemoryStore) SetVersionStatus(_ context.Context, vocabularyID, versionID, status string) error {
	parsed, err := ParseVersionStatus(status)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := versionKey(vocabularyID, versionID)
	v, ok := s.versions[key]
	if !ok {
		now := time.Now().UTC()
		s.versions[key] = &Version{
			ID:           versionID,
			VocabularyID: vocabularyID,
			Status:       parsed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return nil
	}
	v.Status = parsed
	v.UpdatedAt = time.Now().UTC()
	return nil
}
