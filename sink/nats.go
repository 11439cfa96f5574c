package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Default subject the index ingestion stream listens on.
const DefaultIngestSubject = "vocabs.index.ingest"

// NATSPublisher publishes index documents to a JetStream subject, where
// the indexing service consumes them.
type NATSPublisher struct {
	js      jetstream.JetStream
	subject string
}

// NewNATSPublisher creates a publisher on the given JetStream context. An
// empty subject selects DefaultIngestSubject.
func NewNATSPublisher(js jetstream.JetStream, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultIngestSubject
	}
	return &NATSPublisher{js: js, subject: subject}
}

// Publish sends one document to the ingest subject.
func (p *NATSPublisher) Publish(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal index document: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("publish index document %s: %w", doc.ID, err)
	}
	return nil
}
