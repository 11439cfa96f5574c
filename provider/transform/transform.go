// Package transform implements the transform provider: it rewrites a
// harvested flat concept list into a canonical broader/narrower concept
// tree.
package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/harvest"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// Context keys owned by the transform provider.
const (
	KeyTreePath     = "transform.tree_path"
	KeyConceptCount = "transform.concept_count"
)

// Concept is one flat entry in the harvested vocabulary data.
type Concept struct {
	IRI      string `json:"iri"`
	Label    string `json:"label"`
	Notation string `json:"notation,omitempty"`
	Broader  string `json:"broader,omitempty"`
}

// TreeNode is one node of the canonical concept tree.
type TreeNode struct {
	IRI      string      `json:"iri"`
	Label    string      `json:"label"`
	Notation string      `json:"notation,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Provider builds the canonical concept tree from harvested data.
type Provider struct {
	logger *slog.Logger
}

// New creates the transform provider.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{logger: logger}
}

// Kind reports the provider kind.
func (p *Provider) Kind() task.ProviderKind { return task.KindTransform }

// Execute reads the harvested concept list, builds the tree and writes it
// under <workdir>/transform. Malformed input data fails the step.
func (p *Provider) Execute(_ context.Context, _ task.SubtaskSpec, run *task.RunContext) task.StepOutcome {
	rawPath, ok := run.Get(harvest.KeyRawPath)
	if !ok {
		return task.Fail("transform: no harvested data in run context (missing %s)", harvest.KeyRawPath)
	}

	data, err := os.ReadFile(rawPath)
	if err != nil {
		return task.Fail("transform: read harvested data: %v", err)
	}

	concepts, err := decodeConcepts(data)
	if err != nil {
		return task.Fail("transform: malformed vocabulary data: %v", err)
	}

	tree, err := BuildTree(concepts)
	if err != nil {
		return task.Fail("transform: %v", err)
	}

	destDir := filepath.Join(run.WorkDir(), "transform")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return task.Fail("transform: create directory: %v", err)
	}
	treePath := filepath.Join(destDir, "tree.json")
	encoded, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return task.Fail("transform: encode tree: %v", err)
	}
	if err := os.WriteFile(treePath, encoded, 0o644); err != nil {
		return task.Fail("transform: write tree: %v", err)
	}

	p.logger.Debug("concept tree built",
		slog.String("vocabulary_id", run.VocabularyID()),
		slog.Int("concepts", len(concepts)))

	return task.Succeed("built concept tree with %d concepts", len(concepts)).
		WithArtifacts(map[string]string{
			KeyTreePath:     treePath,
			KeyConceptCount: strconv.Itoa(len(concepts)),
		})
}

// conceptDocument is the accepted raw shape: either a bare concept array
// or an object wrapping one.
type conceptDocument struct {
	Concepts []Concept `json:"concepts"`
}

func decodeConcepts(data []byte) ([]Concept, error) {
	var concepts []Concept
	if err := json.Unmarshal(data, &concepts); err == nil {
		return concepts, nil
	}
	var doc conceptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Concepts == nil {
		return nil, fmt.Errorf("no concept list found")
	}
	return doc.Concepts, nil
}

// BuildTree arranges flat concepts into a broader/narrower tree. Concepts
// without a broader IRI become roots; a broader reference to an unknown
// concept is malformed data. Children are ordered by label so the tree is
// deterministic for a given input.
func BuildTree(concepts []Concept) ([]*TreeNode, error) {
	nodes := make(map[string]*TreeNode, len(concepts))
	for _, c := range concepts {
		if c.IRI == "" {
			return nil, fmt.Errorf("concept with empty IRI")
		}
		if _, dup := nodes[c.IRI]; dup {
			return nil, fmt.Errorf("duplicate concept IRI %s", c.IRI)
		}
		nodes[c.IRI] = &TreeNode{IRI: c.IRI, Label: c.Label, Notation: c.Notation}
	}

	var roots []*TreeNode
	for _, c := range concepts {
		node := nodes[c.IRI]
		if c.Broader == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[c.Broader]
		if !ok {
			return nil, fmt.Errorf("concept %s references unknown broader concept %s", c.IRI, c.Broader)
		}
		if parent == node {
			return nil, fmt.Errorf("concept %s is its own broader concept", c.IRI)
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}
	return roots, nil
}

func sortNodes(nodes []*TreeNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Label != nodes[j].Label {
			return nodes[i].Label < nodes[j].Label
		}
		return nodes[i].IRI < nodes[j].IRI
	})
}
