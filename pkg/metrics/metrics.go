package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Workspace pool metrics
	WorkspacesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "planrunner_workspaces_total",
			Help: "Total number of workspaces by status (free, busy, error)",
		},
		[]string{"status"},
	)

	WorkspaceAcquireWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planrunner_workspace_acquire_wait_seconds",
			Help:    "Time spent blocked in pool.Acquire before a workspace became available",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Request queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "planrunner_queue_depth",
			Help: "Number of requests by queue collection (pending, running, completed, failed)",
		},
		[]string{"collection"},
	)

	RequestsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planrunner_requests_submitted_total",
			Help: "Total number of requests submitted to the orchestrator",
		},
	)

	RequestsPassed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planrunner_requests_passed_total",
			Help: "Total number of requests that completed successfully",
		},
	)

	RequestsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planrunner_requests_failed_total",
			Help: "Total number of requests that failed after exhausting retries",
		},
	)

	RequestsRetried = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planrunner_requests_retried_total",
			Help: "Total number of requests re-enqueued for retry",
		},
	)

	TaskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planrunner_task_duration_seconds",
			Help:    "Wall-clock duration of one executor invocation",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planrunner_reconciliation_duration_seconds",
			Help:    "Time taken for a workspace-health reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planrunner_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	WorkspacesRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planrunner_workspaces_recovered_total",
			Help: "Total number of ERROR workspaces recovered back to FREE",
		},
	)
)

func init() {
	prometheus.MustRegister(WorkspacesTotal)
	prometheus.MustRegister(WorkspaceAcquireWait)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(RequestsSubmitted)
	prometheus.MustRegister(RequestsPassed)
	prometheus.MustRegister(RequestsFailed)
	prometheus.MustRegister(RequestsRetried)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(WorkspacesRecovered)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAcquireWait records how long a worker blocked in pool.Acquire.
func ObserveAcquireWait(d time.Duration) {
	WorkspaceAcquireWait.Observe(d.Seconds())
}

// ObserveTaskDuration records one executor invocation's wall-clock time.
func ObserveTaskDuration(d time.Duration) {
	TaskDuration.Observe(d.Seconds())
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
