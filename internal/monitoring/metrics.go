// Package monitoring provides performance monitoring and metrics collection for pipeline operations.
package monitoring

import (
	"net/http"
	"sync"
	"time"

	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ocpanel"

// OutcomeOK labels an operation that returned no error
const OutcomeOK = "ok"

// DefaultLogLimit is how many recent operations a collector keeps
const DefaultLogLimit = 1024

// OperationMetrics represents performance metrics for a single pipeline operation.
type OperationMetrics struct {
	Operation     string        `json:"operation"`
	Duration      time.Duration `json:"duration"`
	RowsProcessed int64         `json:"rows_processed"`
	Outcome       string        `json:"outcome"`
}

// MetricsCollector collects and stores performance metrics for pipeline operations.
// The most recent operations are kept in a bounded log, every operation
// feeds running totals for summaries, and all of them are exported to a
// private Prometheus registry.
type MetricsCollector struct {
	mu      sync.RWMutex
	recent  []OperationMetrics
	next    int
	limit   int
	totals  MetricsSummary
	enabled bool

	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rows       *prometheus.CounterVec
}

// Option configures a MetricsCollector
type Option func(*MetricsCollector)

// WithLogLimit caps the log of recent operations. Values below 1 keep the default.
func WithLogLimit(limit int) Option {
	return func(mc *MetricsCollector) {
		if limit > 0 {
			mc.limit = limit
		}
	}
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(enabled bool, opts ...Option) *MetricsCollector {
	mc := &MetricsCollector{
		limit:    DefaultLogLimit,
		enabled:  enabled,
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Pipeline operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Pipeline operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Input rows seen by pipeline operations.",
		}, []string{"operation"}),
	}
	for _, opt := range opts {
		opt(mc)
	}
	mc.recent = make([]OperationMetrics, 0, min(mc.limit, 64))
	mc.registry.MustRegister(mc.operations, mc.duration, mc.rows)
	return mc
}

// IsEnabled returns whether metrics collection is enabled.
func (mc *MetricsCollector) IsEnabled() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// RecordOperation executes the given function and records performance metrics.
// rows is the size of the operation's input.
func (mc *MetricsCollector) RecordOperation(operation string, rows int, fn func() error) error {
	if mc == nil || !mc.IsEnabled() {
		return fn()
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	outcome := OutcomeOK
	if err != nil {
		outcome = ocerrors.KindOf(err).String()
	}

	mc.operations.WithLabelValues(operation, outcome).Inc()
	mc.duration.WithLabelValues(operation).Observe(duration.Seconds())
	mc.rows.WithLabelValues(operation).Add(float64(rows))

	mc.record(OperationMetrics{
		Operation:     operation,
		Duration:      duration,
		RowsProcessed: int64(rows),
		Outcome:       outcome,
	})

	return err
}

func (mc *MetricsCollector) record(m OperationMetrics) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.recent) < mc.limit {
		mc.recent = append(mc.recent, m)
	} else {
		mc.recent[mc.next] = m
	}
	mc.next = (mc.next + 1) % mc.limit

	if mc.totals.OperationCounts == nil {
		mc.totals.OperationCounts = make(map[string]int)
	}
	mc.totals.TotalOperations++
	mc.totals.TotalDuration += m.Duration
	mc.totals.TotalRows += m.RowsProcessed
	mc.totals.OperationCounts[m.Operation]++
	if m.Outcome != OutcomeOK {
		mc.totals.Failures++
	}
}

// GetMetrics returns a copy of the recent operations, oldest first.
func (mc *MetricsCollector) GetMetrics() []OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]OperationMetrics, 0, len(mc.recent))
	if len(mc.recent) < mc.limit {
		return append(result, mc.recent...)
	}
	result = append(result, mc.recent[mc.next:]...)
	return append(result, mc.recent[:mc.next]...)
}

// Clear removes the recent operations and resets the summary totals.
// Prometheus counters are monotonic and keep their values.
func (mc *MetricsCollector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.recent = mc.recent[:0]
	mc.next = 0
	mc.totals = MetricsSummary{}
}

// SetEnabled enables or disables metrics collection.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// Registry exposes the Prometheus registry the collector reports to.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// GetSummary returns totals over every operation recorded since the last
// Clear, including those that have left the recent log.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.totals.TotalOperations == 0 {
		return MetricsSummary{}
	}

	summary := mc.totals
	summary.OperationCounts = make(map[string]int, len(mc.totals.OperationCounts))
	for op, n := range mc.totals.OperationCounts {
		summary.OperationCounts[op] = n
	}
	summary.AverageDuration = summary.TotalDuration / time.Duration(summary.TotalOperations)
	return summary
}

// MetricsSummary provides aggregate statistics for collected metrics.
type MetricsSummary struct {
	TotalOperations int            `json:"total_operations"`
	TotalDuration   time.Duration  `json:"total_duration"`
	TotalRows       int64          `json:"total_rows"`
	Failures        int            `json:"failures"`
	OperationCounts map[string]int `json:"operation_counts"`
	AverageDuration time.Duration  `json:"average_duration"`
}
