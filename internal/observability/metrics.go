package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/coursetrack-backend/internal/platform/envutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	storageOps       *prometheus.HistogramVec
	storageConflicts *prometheus.CounterVec
	storageRetries   *prometheus.CounterVec

	progressUpdates     *prometheus.CounterVec
	progressCompletions *prometheus.CounterVec

	syncTargets      *prometheus.CounterVec
	pendingEnqueued  prometheus.Counter
	pendingResolved  prometheus.Counter
	pendingAttempts  *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	recomputeLatency prometheus.Histogram

	rollupLatency     *prometheus.HistogramVec
	rollupUnavailable prometheus.Counter
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", true)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metrics registry. Safe to call more than once.
func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = NewMetrics(prometheus.NewRegistry())
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// NewMetrics registers every collector on reg. Tests pass a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests",
		}),
		storageOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Transactional write latency by operation and outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		storageConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storage_conflicts_total",
			Help: "Unique-key conflicts observed by transactional writes",
		}, []string{"op"}),
		storageRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storage_retries_total",
			Help: "Transactional writes retried after a transient failure",
		}, []string{"op"}),
		progressUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_updates_total",
			Help: "Content progress updates by content kind and outcome",
		}, []string{"kind", "outcome"}),
		progressCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_completions_total",
			Help: "Content occurrences transitioned to completed",
		}, []string{"kind", "source"}),
		syncTargets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_targets_total",
			Help: "Shared content sync target writes by outcome",
		}, []string{"outcome"}),
		pendingEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "pending_sync_enqueued_total",
			Help: "Partially failed sync events recorded for retry",
		}),
		pendingResolved: f.NewCounter(prometheus.CounterOpts{
			Name: "pending_sync_resolved_total",
			Help: "Pending sync events cleared by a retry",
		}),
		pendingAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pending_sync_attempts_total",
			Help: "Pending sync retry attempts by runner and outcome",
		}, []string{"runner", "outcome"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		recomputeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "course_recompute_duration_seconds",
			Help:    "Course completion recompute latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		rollupLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollup_duration_seconds",
			Help:    "Course completion summary latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
		rollupUnavailable: f.NewCounter(prometheus.CounterOpts{
			Name: "rollup_users_unavailable_total",
			Help: "Users reported as data_unavailable in completion summaries",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	route = strings.TrimSpace(route)
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveStorageOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storageOps.WithLabelValues(op, status).Observe(dur.Seconds())
}

func (m *Metrics) IncStorageConflict(op string) {
	if m == nil {
		return
	}
	m.storageConflicts.WithLabelValues(op).Inc()
}

func (m *Metrics) IncStorageRetry(op string) {
	if m == nil {
		return
	}
	m.storageRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) IncProgressUpdate(kind, outcome string) {
	if m == nil {
		return
	}
	m.progressUpdates.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncCompletion(kind, source string) {
	if m == nil {
		return
	}
	m.progressCompletions.WithLabelValues(kind, source).Inc()
}

func (m *Metrics) IncSyncTarget(outcome string) {
	if m == nil {
		return
	}
	m.syncTargets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPendingSyncEnqueued() {
	if m == nil {
		return
	}
	m.pendingEnqueued.Inc()
}

func (m *Metrics) IncPendingSyncResolved() {
	if m == nil {
		return
	}
	m.pendingResolved.Inc()
}

func (m *Metrics) IncPendingSyncAttempt(runner, outcome string) {
	if m == nil {
		return
	}
	m.pendingAttempts.WithLabelValues(runner, outcome).Inc()
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) ObserveRecompute(dur time.Duration) {
	if m == nil {
		return
	}
	m.recomputeLatency.Observe(dur.Seconds())
}

func (m *Metrics) ObserveRollup(status string, dur time.Duration, unavailable int) {
	if m == nil {
		return
	}
	m.rollupLatency.WithLabelValues(status).Observe(dur.Seconds())
	if unavailable > 0 {
		m.rollupUnavailable.Add(float64(unavailable))
	}
}
