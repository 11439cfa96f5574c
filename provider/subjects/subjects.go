// Package subjects implements the subject-resolve provider: it maps
// free-text subject labels to canonical subject IRIs using externally
// configured resolver endpoints.
package subjects

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// Context keys owned by the subject-resolve provider.
const (
	KeyResolvedPath = "subjects.resolved_path"
)

// Config keys read from the subtask configuration.
const (
	ConfigSubjects     = "subjects"
	ConfigSubjectsPath = "subjects_path"
	ConfigTimeout      = "timeout"

	// resolverPrefix marks config keys mapping a resolver name to its
	// endpoint URL, e.g. "resolver.anzsrc" -> "https://...".
	resolverPrefix = "resolver."
)

// Resolution is one resolved subject label.
type Resolution struct {
	Label    string `json:"label"`
	IRI      string `json:"iri"`
	Resolver string `json:"resolver"`
}

// resolverResponse is the JSON shape resolver endpoints answer with.
type resolverResponse struct {
	IRI string `json:"iri"`
}

// Provider resolves subject labels against configured resolver endpoints.
type Provider struct {
	logger *slog.Logger
}

// New creates the subject-resolve provider.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{logger: logger}
}

// Kind reports the provider kind.
func (p *Provider) Kind() task.ProviderKind { return task.KindSubjectResolve }

// Execute resolves each configured subject label through the configured
// resolvers, in resolver-name order, and writes the mapping to the run
// workspace. Any unresolved label fails the step; resolution is a
// best-effort enrichment, so by default that failure does not abort the
// run.
func (p *Provider) Execute(ctx context.Context, spec task.SubtaskSpec, run *task.RunContext) task.StepOutcome {
	labels, err := readLabels(spec)
	if err != nil {
		return task.Fail("subject-resolve configuration: %v", err)
	}
	resolvers := readResolvers(spec)
	if len(resolvers) == 0 {
		return task.Fail("subject-resolve configuration: no %s<name> endpoints configured", resolverPrefix)
	}

	timeout := 10 * time.Second
	if raw, ok := spec.ConfigValue(ConfigTimeout); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return task.Fail("subject-resolve configuration: invalid %q: %v", ConfigTimeout, err)
		}
		timeout = d
	}
	client := &http.Client{Timeout: timeout}

	var (
		resolved   []Resolution
		unresolved []string
	)
	for _, label := range labels {
		res, ok := p.resolve(ctx, client, resolvers, label)
		if !ok {
			unresolved = append(unresolved, label)
			continue
		}
		resolved = append(resolved, res)
	}

	if len(unresolved) > 0 {
		return task.Fail("subject-resolve: resolved %d of %d labels, unresolved: %s",
			len(resolved), len(labels), strings.Join(unresolved, ", "))
	}

	destDir := filepath.Join(run.WorkDir(), "subjects")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return task.Fail("subject-resolve: create directory: %v", err)
	}
	resolvedPath := filepath.Join(destDir, "resolved.json")
	data, err := json.MarshalIndent(resolved, "", "  ")
	if err != nil {
		return task.Fail("subject-resolve: encode resolutions: %v", err)
	}
	if err := os.WriteFile(resolvedPath, data, 0o644); err != nil {
		return task.Fail("subject-resolve: write resolutions: %v", err)
	}

	return task.Succeed("resolved %d subject labels", len(resolved)).
		WithArtifacts(map[string]string{KeyResolvedPath: resolvedPath})
}

// resolve tries each resolver in order until one answers with an IRI.
func (p *Provider) resolve(ctx context.Context, client *http.Client, resolvers []resolver, label string) (Resolution, bool) {
	for _, r := range resolvers {
		iri, err := r.lookup(ctx, client, label)
		if err != nil {
			p.logger.Debug("resolver lookup failed",
				slog.String("resolver", r.name),
				slog.String("label", label),
				slog.String("error", err.Error()))
			continue
		}
		if iri != "" {
			return Resolution{Label: label, IRI: iri, Resolver: r.name}, true
		}
	}
	return Resolution{}, false
}

type resolver struct {
	name     string
	endpoint string
}

// lookup queries one resolver endpoint for a label.
func (r resolver) lookup(ctx context.Context, client *http.Client, label string) (string, error) {
	endpoint := r.endpoint
	if strings.Contains(endpoint, "?") {
		endpoint += "&label=" + url.QueryEscape(label)
	} else {
		endpoint += "?label=" + url.QueryEscape(label)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup %q: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup %q: server returned %s", label, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read lookup response: %w", err)
	}
	var decoded resolverResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode lookup response: %w", err)
	}
	return decoded.IRI, nil
}

// readLabels loads subject labels from the inline list or the configured
// file (one label per line).
func readLabels(spec task.SubtaskSpec) ([]string, error) {
	if inline, ok := spec.ConfigValue(ConfigSubjects); ok {
		return splitLabels(inline, ","), nil
	}
	if path, ok := spec.ConfigValue(ConfigSubjectsPath); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read subjects file: %w", err)
		}
		return splitLabels(string(data), "\n"), nil
	}
	return nil, fmt.Errorf("one of %q or %q is required", ConfigSubjects, ConfigSubjectsPath)
}

func splitLabels(raw, sep string) []string {
	var labels []string
	for _, part := range strings.Split(raw, sep) {
		if label := strings.TrimSpace(part); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// readResolvers collects resolver.<name> config entries in name order.
func readResolvers(spec task.SubtaskSpec) []resolver {
	var resolvers []resolver
	for key, endpoint := range spec.Config {
		if !strings.HasPrefix(key, resolverPrefix) || endpoint == "" {
			continue
		}
		resolvers = append(resolvers, resolver{
			name:     strings.TrimPrefix(key, resolverPrefix),
			endpoint: endpoint,
		})
	}
	sort.Slice(resolvers, func(i, j int) bool { return resolvers[i].name < resolvers[j].name })
	return resolvers
}
