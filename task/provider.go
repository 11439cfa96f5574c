package task

import (
	"context"
	"fmt"
	"sort"
)

// Provider is one pluggable processing step. Implementations are stateless
// across runs: all per-run state flows through the RunContext. A provider
// must catch its own faults (unreachable sources, malformed data, IO
// errors, sink rejections) and return them as a failed StepOutcome; it
// must not retry internally and must bound its own external calls.
type Provider interface {
	// Kind reports which SubtaskSpec kinds this provider serves.
	Kind() ProviderKind

	// Execute performs the step. The spec carries the subtask's
	// configuration; the run context carries artifacts from earlier
	// subtasks and receives this step's artifacts on success.
	Execute(ctx context.Context, spec SubtaskSpec, run *RunContext) StepOutcome
}

// Registry maps the closed set of provider kinds to implementations.
// Resolution happens once, before a run starts, so an unknown or
// unregistered kind is a configuration error rather than a mid-run fault.
type Registry struct {
	providers map[ProviderKind]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[ProviderKind]Provider)}
}

// Register adds a provider. Registering two providers for the same kind is
// a programmer error.
func (r *Registry) Register(p Provider) error {
	kind := p.Kind()
	if _, err := ParseProviderKind(string(kind)); err != nil {
		return err
	}
	if _, dup := r.providers[kind]; dup {
		return fmt.Errorf("provider already registered for kind %q", kind)
	}
	r.providers[kind] = p
	return nil
}

// Resolve returns the provider for kind.
func (r *Registry) Resolve(kind ProviderKind) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for kind %q", kind)
	}
	return p, nil
}

// Kinds lists the registered kinds in stable order.
func (r *Registry) Kinds() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// boundSubtask is a subtask spec with its provider resolved.
type boundSubtask struct {
	spec     SubtaskSpec
	provider Provider
}

// bind resolves every subtask of a task to its provider. Any resolution
// failure is a ConfigurationError: the run never starts.
func (r *Registry) bind(info TaskInfo) ([]boundSubtask, error) {
	bound := make([]boundSubtask, 0, len(info.Subtasks))
	for i, spec := range info.Subtasks {
		p, err := r.Resolve(spec.Kind)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("subtask %d: %v", i, err)}
		}
		bound = append(bound, boundSubtask{spec: spec, provider: p})
	}
	return bound, nil
}
