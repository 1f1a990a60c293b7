// Package telemetry implements the performance monitor: rolling latency
// windows with percentile extraction, prometheus metric export, and
// threshold alerts. It is pure observation and never alters control flow.
package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/mlocke/vfr-api-sub009/internal/config"
)

// Severity grades a threshold alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a structured threshold-crossing event.
type Alert struct {
	Severity  Severity  `json:"severity"`
	Metric    string    `json:"metric"`
	Operation string    `json:"operation,omitempty"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// OpStats summarizes one operation. Count and Errors are lifetime totals;
// ErrorRate and the percentiles cover the rolling window only.
type OpStats struct {
	Count     int64         `json:"count"`
	Errors    int64         `json:"errors"`
	ErrorRate float64       `json:"error_rate"`
	P50       time.Duration `json:"p50"`
	P95       time.Duration `json:"p95"`
	P99       time.Duration `json:"p99"`
}

// window is a fixed-size circular sample buffer. Outcomes ride in a parallel
// ring so the error rate ages out with the latency samples instead of
// accumulating forever.
type window struct {
	samples []float64 // milliseconds
	failed  []bool
	pos     int
	full    bool
	winErrs int

	// lifetime totals, reported but never alerted on
	count  int64
	errors int64
}

func (w *window) record(ms float64, isErr bool) {
	if w.full && w.failed[w.pos] {
		w.winErrs--
	}
	w.samples[w.pos] = ms
	w.failed[w.pos] = isErr
	if isErr {
		w.winErrs++
		w.errors++
	}
	w.pos++
	if w.pos >= len(w.samples) {
		w.pos = 0
		w.full = true
	}
	w.count++
}

// errorRate is the failure fraction over the live samples.
func (w *window) errorRate() float64 {
	n := w.pos
	if w.full {
		n = len(w.samples)
	}
	if n == 0 {
		return 0
	}
	return float64(w.winErrs) / float64(n)
}

// snapshot returns the live samples sorted ascending for quantiles.
func (w *window) snapshot() []float64 {
	n := w.pos
	if w.full {
		n = len(w.samples)
	}
	out := make([]float64, n)
	copy(out, w.samples[:n])
	sort.Float64s(out)
	return out
}

// Monitor records per-operation latency, cache hit rate, and error rate, and
// raises alerts when configured thresholds are crossed.
type Monitor struct {
	cfg        config.AlertsConfig
	windowSize int

	mu      sync.Mutex
	windows map[string]*window
	onAlert func(Alert)

	// Prometheus
	opDuration    *prometheus.HistogramVec
	opErrors      *prometheus.CounterVec
	cacheHitRatio prometheus.Gauge
	alertsTotal   *prometheus.CounterVec
	breakerOpen   *prometheus.GaugeVec
}

// NewMonitor creates a Monitor registering its metrics on reg. A nil reg
// skips prometheus registration (tests).
func NewMonitor(cfg config.AlertsConfig, reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		cfg:        cfg,
		windowSize: 1000,
		windows:    make(map[string]*window),

		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vfr_operation_duration_seconds",
			Help:    "Duration of engine operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "result"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vfr_operation_errors_total",
			Help: "Total operation errors by classification",
		}, []string{"operation", "kind"}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vfr_cache_hit_ratio",
			Help: "Current cache hit ratio (0.0 to 1.0)",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vfr_alerts_total",
			Help: "Total threshold alerts raised",
		}, []string{"metric", "severity"}),
		breakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vfr_circuit_breaker_open",
			Help: "1 when the provider circuit breaker is open",
		}, []string{"breaker"}),
	}

	if reg != nil {
		reg.MustRegister(m.opDuration, m.opErrors, m.cacheHitRatio, m.alertsTotal, m.breakerOpen)
	}
	return m
}

// OnAlert registers the alert sink. Alerts are also logged.
func (m *Monitor) OnAlert(fn func(Alert)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAlert = fn
}

// RecordOperation records one operation's latency and outcome.
func (m *Monitor) RecordOperation(operation string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.opDuration.WithLabelValues(operation, result).Observe(duration.Seconds())

	m.mu.Lock()
	w, ok := m.windows[operation]
	if !ok {
		w = &window{
			samples: make([]float64, m.windowSize),
			failed:  make([]bool, m.windowSize),
		}
		m.windows[operation] = w
	}
	w.record(float64(duration.Milliseconds()), err != nil)
	errorRate := w.errorRate()
	m.mu.Unlock()

	m.checkThreshold("response_time", operation, duration.Seconds(),
		m.cfg.ResponseTimeWarn.Seconds(), m.cfg.ResponseTimeCritical.Seconds(), false)
	m.checkThreshold("error_rate", operation, errorRate,
		m.cfg.ErrorRateWarn, m.cfg.ErrorRateCritical, false)
}

// RecordError counts a classified error without a latency sample.
func (m *Monitor) RecordError(operation, kind string) {
	m.opErrors.WithLabelValues(operation, kind).Inc()
}

// RecordCacheHitRate exports the cache hit rate and alerts when it sinks
// below the configured floor. Evaluation is skipped until the cache has seen
// meaningful traffic.
func (m *Monitor) RecordCacheHitRate(hitRate float64, totalRequests int64) {
	m.cacheHitRatio.Set(hitRate)
	if totalRequests < 100 {
		return
	}
	m.checkThreshold("cache_hit_rate", "", hitRate,
		m.cfg.CacheHitRateWarn, m.cfg.CacheHitRateCritical, true)
}

// RecordBreakerState exports a breaker's open/closed state.
func (m *Monitor) RecordBreakerState(breaker string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.breakerOpen.WithLabelValues(breaker).Set(v)
}

// Stats returns the rolling-window summary for an operation.
func (m *Monitor) Stats(operation string) (OpStats, bool) {
	m.mu.Lock()
	w, ok := m.windows[operation]
	if !ok {
		m.mu.Unlock()
		return OpStats{}, false
	}
	samples := w.snapshot()
	stats := OpStats{Count: w.count, Errors: w.errors, ErrorRate: w.errorRate()}
	m.mu.Unlock()

	if len(samples) > 0 {
		stats.P50 = msToDuration(stat.Quantile(0.50, stat.Empirical, samples, nil))
		stats.P95 = msToDuration(stat.Quantile(0.95, stat.Empirical, samples, nil))
		stats.P99 = msToDuration(stat.Quantile(0.99, stat.Empirical, samples, nil))
	}
	return stats, true
}

// Operations lists operations with recorded samples.
func (m *Monitor) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.windows))
	for name := range m.windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// checkThreshold raises an alert when value crosses a threshold. For
// inverted metrics (cache hit rate) lower is worse.
func (m *Monitor) checkThreshold(metric, operation string, value, warn, critical float64, inverted bool) {
	crossed := func(threshold float64) bool {
		if inverted {
			return value < threshold
		}
		return value > threshold
	}

	var severity Severity
	var threshold float64
	switch {
	case crossed(critical):
		severity, threshold = SeverityCritical, critical
	case crossed(warn):
		severity, threshold = SeverityWarning, warn
	default:
		return
	}

	alert := Alert{
		Severity:  severity,
		Metric:    metric,
		Operation: operation,
		Value:     value,
		Threshold: threshold,
		Timestamp: time.Now(),
	}
	m.alertsTotal.WithLabelValues(metric, string(severity)).Inc()

	log.Warn().
		Str("metric", metric).
		Str("operation", operation).
		Str("severity", string(severity)).
		Float64("value", value).
		Float64("threshold", threshold).
		Msg("performance threshold crossed")

	m.mu.Lock()
	sink := m.onAlert
	m.mu.Unlock()
	if sink != nil {
		sink(alert)
	}
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
