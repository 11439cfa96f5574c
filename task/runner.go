package task

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// VersionStatusWriter is consumed from the registry layer: the pipeline
// reads version identity and writes lifecycle status, nothing else.
type VersionStatusWriter interface {
	SetVersionStatus(ctx context.Context, vocabularyID, versionID, status string) error
}

// Version lifecycle statuses written by the runner.
const (
	versionStatusProcessing = "processing"
	versionStatusPublished  = "published"
	versionStatusError      = "error"
)

// runState models the runner's execution state. A run starts Pending,
// moves through Running for each subtask index, and ends in exactly one of
// the three terminal states. No state is ever re-entered.
type runState int

const (
	statePending runState = iota
	stateRunning
	stateCompletedSuccess
	stateCompletedPartial
	stateAborted
)

func (s runState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateRunning:
		return "running"
	case stateCompletedSuccess:
		return "completed-success"
	case stateCompletedPartial:
		return "completed-partial"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// terminalState maps an aggregated status to its terminal state.
func terminalState(status Status) runState {
	switch status {
	case StatusSuccess:
		return stateCompletedSuccess
	case StatusPartial:
		return stateCompletedPartial
	default:
		return stateAborted
	}
}

// Runner executes TaskInfos: it resolves each subtask to a provider,
// invokes them strictly in order, aggregates per-step outcomes into a
// Results record and persists the record through the task store. Each run
// owns a fresh RunContext; concurrent runs for distinct versions proceed
// independently while a second run for an active version is rejected.
type Runner struct {
	providers *Registry
	store     Store
	versions  VersionStatusWriter
	logger    *slog.Logger
	metrics   *Metrics
	gate      *versionGate

	workRoot        string
	completeRetries time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithVersionStatusWriter attaches the registry handle used to flip the
// version's lifecycle status around the run.
func WithVersionStatusWriter(w VersionStatusWriter) RunnerOption {
	return func(r *Runner) { r.versions = w }
}

// WithWorkRoot sets the base directory under which run workspaces are
// created. Defaults to the system temp directory.
func WithWorkRoot(dir string) RunnerOption {
	return func(r *Runner) { r.workRoot = dir }
}

// WithCompleteRetryWindow bounds how long CompleteTask is retried before a
// PersistenceError is surfaced.
func WithCompleteRetryWindow(d time.Duration) RunnerOption {
	return func(r *Runner) { r.completeRetries = d }
}

// NewRunner creates a Runner. The provider registry and task store are
// required; everything else is optional.
func NewRunner(providers *Registry, store Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		providers:       providers,
		store:           store,
		logger:          slog.Default(),
		gate:            newVersionGate(),
		workRoot:        os.TempDir(),
		completeRetries: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunReport is what a completed run hands back: the durable task handle
// and the finalized Results record.
type RunReport struct {
	TaskID  string
	Results Results
}

// Run executes one task to a terminal state. A processing failure is not
// an error: the run yields a task ID and a retrievable Results record even
// when it ends as "error", and the caller inspects Results to learn what
// happened. Run returns a non-nil error only for the pre-run rejections
// (ConfigurationError, ConcurrencyConflictError) and for store
// unavailability (PersistenceError); in the completeTask case the report
// still carries the computed Results.
func (r *Runner) Run(ctx context.Context, info TaskInfo) (*RunReport, error) {
	if err := info.Validate(); err != nil {
		r.metrics.runRejected()
		return nil, err
	}
	bound, err := r.providers.bind(info)
	if err != nil {
		r.metrics.runRejected()
		return nil, err
	}

	if err := r.gate.acquire(info); err != nil {
		r.metrics.runRejected()
		return nil, err
	}
	defer r.gate.release(info)

	taskID, err := r.store.CreateTask(ctx, info)
	if err != nil {
		return nil, &PersistenceError{Op: "create", Err: err}
	}

	logger := r.logger.With(
		slog.String("task_id", taskID),
		slog.String("vocabulary_id", info.VocabularyID),
		slog.String("version_id", info.VersionID),
	)
	logger.Info("task run accepted", slog.Int("subtasks", len(info.Subtasks)))
	r.metrics.runStarted()

	workDir := filepath.Join(r.workRoot, taskID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run workspace: %w", err)
	}

	r.setVersionStatus(ctx, logger, info, versionStatusProcessing)

	started := time.Now()
	results := r.execute(ctx, logger, info, bound, workDir)
	r.metrics.runCompleted(results.Status, time.Since(started).Seconds())

	switch results.Status {
	case StatusError:
		r.setVersionStatus(ctx, logger, info, versionStatusError)
	default:
		r.setVersionStatus(ctx, logger, info, versionStatusPublished)
	}

	report := &RunReport{TaskID: taskID, Results: *results}
	if err := r.completeTask(ctx, taskID, results); err != nil {
		logger.Error("task results could not be persisted", slog.String("error", err.Error()))
		return report, &PersistenceError{Op: "complete", Results: results, Err: err}
	}

	logger.Info("task run finished",
		slog.String("status", string(results.Status)),
		slog.Int("entries", results.Len()))
	return report, nil
}

// execute drives the state machine over the bound subtasks and returns the
// finalized Results. After a critical failure the run is aborted: later
// subtasks are skipped without a Results entry, except cleanup-kind
// subtasks, which always run so temporary resources are released.
func (r *Runner) execute(ctx context.Context, logger *slog.Logger, info TaskInfo, bound []boundSubtask, workDir string) *Results {
	run := NewRunContext(info.VocabularyID, info.VersionID, workDir)
	results := &Results{}
	steps := make([]stepResult, 0, len(bound))

	aborted := false

	for i, b := range bound {
		if aborted && b.spec.Kind != KindCleanup {
			continue
		}
		label := b.spec.ResultLabel()
		logger.Debug("subtask starting",
			slog.Int("index", i),
			slog.String("label", label),
			slog.String("kind", string(b.spec.Kind)))

		outcome := b.provider.Execute(ctx, b.spec, run)
		steps = append(steps, stepResult{succeeded: outcome.Success, critical: b.spec.IsCritical()})
		if err := results.Append(label, outcome); err != nil {
			// Unreachable while the run owns the record; guards misuse.
			logger.Error("results append rejected", slog.String("error", err.Error()))
		}

		if outcome.Success {
			run.Merge(outcome.Artifacts)
			logger.Debug("subtask succeeded", slog.String("label", label))
			continue
		}

		r.metrics.stepFailed(b.spec.Kind)
		if b.spec.IsCritical() {
			aborted = true
			logger.Warn("critical subtask failed, aborting run",
				slog.String("label", label),
				slog.String("message", outcome.Message))
			continue
		}
		logger.Warn("subtask failed",
			slog.String("label", label),
			slog.String("message", outcome.Message))
	}

	status := aggregateStatus(steps)
	if err := results.Finalize(status); err != nil {
		logger.Error("results finalize rejected", slog.String("error", err.Error()))
	}
	logger.Debug("run reached terminal state",
		slog.String("state", terminalState(status).String()))
	return results
}

// completeTask writes the finalized record, retrying transient store
// outages within the configured window so a briefly unavailable store does
// not lose a correct Results record.
func (r *Runner) completeTask(ctx context.Context, taskID string, results *Results) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = r.completeRetries
	return backoff.Retry(func() error {
		return r.store.CompleteTask(ctx, taskID, *results)
	}, backoff.WithContext(policy, ctx))
}

func (r *Runner) setVersionStatus(ctx context.Context, logger *slog.Logger, info TaskInfo, status string) {
	if r.versions == nil {
		return
	}
	if err := r.versions.SetVersionStatus(ctx, info.VocabularyID, info.VersionID, status); err != nil {
		logger.Warn("version status update failed",
			slog.String("status", status),
			slog.String("error", err.Error()))
	}
}
