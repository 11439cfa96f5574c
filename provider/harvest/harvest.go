// Package harvest implements the harvest provider: it pulls raw vocabulary
// data from a PoolParty server, a SPARQL endpoint or an uploaded file into
// the run workspace.
package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/source"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// Context keys owned by the harvest provider.
const (
	KeyRawPath    = "harvest.raw_path"
	KeyFormat     = "harvest.format"
	KeySourceType = "harvest.source_type"
)

// Provider harvests raw vocabulary data into the run workspace.
type Provider struct {
	logger *slog.Logger
}

// New creates the harvest provider.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{logger: logger}
}

// Kind reports the provider kind.
func (p *Provider) Kind() task.ProviderKind { return task.KindHarvest }

// Execute fetches the configured source into <workdir>/harvest. Source
// failures and bad configuration become failed outcomes.
func (p *Provider) Execute(ctx context.Context, spec task.SubtaskSpec, run *task.RunContext) task.StepOutcome {
	cfg, err := parseConfig(spec)
	if err != nil {
		return task.Fail("harvest configuration: %v", err)
	}

	destDir := filepath.Join(run.WorkDir(), "harvest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return task.Fail("create harvest directory: %v", err)
	}

	var (
		rawPath string
		format  string
	)
	switch cfg.SourceType {
	case SourcePoolParty:
		rawPath, format, err = p.harvestPoolParty(ctx, cfg, destDir)
	case SourceSPARQL:
		rawPath, format, err = p.harvestSPARQL(ctx, cfg, destDir)
	case SourceFile:
		rawPath, format, err = p.harvestFile(cfg, destDir)
	}
	if err != nil {
		return task.Fail("harvest %s: %v", cfg.SourceType, err)
	}

	p.logger.Debug("harvest complete",
		slog.String("vocabulary_id", run.VocabularyID()),
		slog.String("source_type", cfg.SourceType),
		slog.String("raw_path", rawPath))

	return task.Succeed("harvested %s from %s", filepath.Base(rawPath), cfg.SourceType).
		WithArtifacts(map[string]string{
			KeyRawPath:    rawPath,
			KeyFormat:     format,
			KeySourceType: cfg.SourceType,
		})
}

func (p *Provider) harvestPoolParty(ctx context.Context, cfg Config, destDir string) (string, string, error) {
	client := source.NewPoolPartyClient(cfg.APIURL, cfg.Username, cfg.Password,
		source.WithPoolPartyTimeout(cfg.Timeout))
	data, err := client.GetProjectExport(ctx, cfg.ProjectID, cfg.Format)
	if err != nil {
		return "", "", err
	}

	rawPath := filepath.Join(destDir, "raw"+extensionFor(cfg.Format))
	if err := os.WriteFile(rawPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write raw export: %w", err)
	}
	return rawPath, cfg.Format, nil
}

func (p *Provider) harvestSPARQL(ctx context.Context, cfg Config, destDir string) (string, string, error) {
	client := source.NewSPARQLClient(source.WithSPARQLTimeout(cfg.Timeout))
	rs, err := client.Query(ctx, cfg.Endpoint, cfg.Query)
	if err != nil {
		return "", "", err
	}

	data, err := json.MarshalIndent(rs.Rows, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode result set: %w", err)
	}
	rawPath := filepath.Join(destDir, "raw.json")
	if err := os.WriteFile(rawPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write result set: %w", err)
	}
	return rawPath, "application/json", nil
}

func (p *Provider) harvestFile(cfg Config, destDir string) (string, string, error) {
	rawPath, err := source.CopyUpload(cfg.Path, destDir)
	if err != nil {
		return "", "", err
	}
	return rawPath, formatForExtension(filepath.Ext(rawPath)), nil
}

func extensionFor(format string) string {
	switch {
	case strings.Contains(format, "json"):
		return ".json"
	case strings.Contains(format, "turtle"):
		return ".ttl"
	case strings.Contains(format, "rdf+xml"):
		return ".rdf"
	default:
		return ".dat"
	}
}

func formatForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".json":
		return "application/json"
	case ".ttl":
		return "text/turtle"
	case ".rdf", ".xml":
		return "application/rdf+xml"
	default:
		return "application/octet-stream"
	}
}
