// Package sink abstracts the search-index side of the pipeline: the import
// provider hands finished vocabulary documents to a Publisher and stays
// ignorant of how they are indexed.
package sink

import "context"

// Document is one canonical vocabulary representation ready for indexing.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Publisher accepts canonical documents for indexing. Implementations must
// bound their own I/O; a rejection is reported as an error and becomes a
// failed import step.
type Publisher interface {
	Publish(ctx context.Context, doc Document) error
}
