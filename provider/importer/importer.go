// Package importer implements the import provider: it assembles the
// canonical vocabulary document for the version under processing and
// pushes it into the search sink.
package importer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/harvest"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/transform"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/sink"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// Context keys owned by the import provider.
const (
	KeyDocumentID = "import.document_id"
)

// Config keys read from the subtask configuration.
const (
	ConfigTitle = "title"
)

// Provider publishes the canonical representation to the search sink.
type Provider struct {
	publisher sink.Publisher
	logger    *slog.Logger
}

// New creates the import provider with the sink it publishes to.
func New(publisher sink.Publisher, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{publisher: publisher, logger: logger}
}

// Kind reports the provider kind.
func (p *Provider) Kind() task.ProviderKind { return task.KindImport }

// Execute builds one index document from the run's artifacts and publishes
// it. Harvested data is required; the concept tree is included when an
// earlier transform step produced one. A sink rejection fails the step.
func (p *Provider) Execute(ctx context.Context, spec task.SubtaskSpec, run *task.RunContext) task.StepOutcome {
	rawPath, ok := run.Get(harvest.KeyRawPath)
	if !ok {
		return task.Fail("import: no harvested data in run context (missing %s)", harvest.KeyRawPath)
	}

	docID := run.VocabularyID() + "/" + run.VersionID()
	fields := map[string]any{
		"vocabulary_id": run.VocabularyID(),
		"version_id":    run.VersionID(),
		"raw_path":      rawPath,
	}
	if title, ok := spec.ConfigValue(ConfigTitle); ok {
		fields["title"] = title
	}
	if format, ok := run.Get(harvest.KeyFormat); ok {
		fields["format"] = format
	}
	if count, ok := run.Get(transform.KeyConceptCount); ok {
		fields["concept_count"] = count
	}
	if treePath, ok := run.Get(transform.KeyTreePath); ok {
		tree, err := readTree(treePath)
		if err != nil {
			return task.Fail("import: read concept tree: %v", err)
		}
		fields["concept_tree"] = tree
	}

	doc := sink.Document{ID: docID, Fields: fields}
	if err := p.publisher.Publish(ctx, doc); err != nil {
		return task.Fail("import: %v", err)
	}

	p.logger.Debug("version imported",
		slog.String("vocabulary_id", run.VocabularyID()),
		slog.String("version_id", run.VersionID()),
		slog.String("document_id", docID))

	return task.Succeed("imported document %s", docID).
		WithArtifacts(map[string]string{KeyDocumentID: docID})
}

func readTree(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tree json.RawMessage
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}
