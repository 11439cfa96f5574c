package sink

import (
	"context"
	"sync"
)

// MemoryPublisher captures published documents for tests.
type MemoryPublisher struct {
	mu   sync.Mutex
	docs []Document

	// FailWith, when non-nil, makes every Publish call fail. Lets tests
	// simulate a rejecting index.
	FailWith error
}

// NewMemoryPublisher creates an empty capture publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the document, or fails when FailWith is set.
func (p *MemoryPublisher) Publish(_ context.Context, doc Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWith != nil {
		return p.FailWith
	}
	p.docs = append(p.docs, doc)
	return nil
}

// Documents returns the captured documents.
func (p *MemoryPublisher) Documents() []Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Document, len(p.docs))
	copy(out, p.docs)
	return out
}
