package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pipeline activity. Registered on a caller-supplied
// registerer so tests can use isolated registries.
type Metrics struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRejected  prometheus.Counter
	stepFailures  *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "vocabs_task_runs_started_total",
			Help: "Task runs accepted for execution.",
		}),
		runsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vocabs_task_runs_completed_total",
			Help: "Task runs reaching a terminal state, by status.",
		}, []string{"status"}),
		runsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "vocabs_task_runs_rejected_total",
			Help: "Task runs rejected before execution (configuration or concurrency).",
		}),
		stepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vocabs_task_step_failures_total",
			Help: "Failed subtask executions, by provider kind.",
		}, []string{"kind"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vocabs_task_run_duration_seconds",
			Help:    "Wall-clock duration of task runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}

func (m *Metrics) runCompleted(status Status, seconds float64) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(seconds)
}

func (m *Metrics) runRejected() {
	if m == nil {
		return
	}
	m.runsRejected.Inc()
}

func (m *Metrics) stepFailed(kind ProviderKind) {
	if m == nil {
		return
	}
	m.stepFailures.WithLabelValues(string(kind)).Inc()
}
