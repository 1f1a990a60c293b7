package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlocke/vfr-api-sub009/internal/config"
)

func TestRecordOperationAccumulatesStats(t *testing.T) {
	m := NewMonitor(config.DefaultAlertsConfig(), nil)

	for i := 1; i <= 10; i++ {
		m.RecordOperation("calculate_composite", time.Duration(i)*10*time.Millisecond, nil)
	}
	m.RecordOperation("calculate_composite", 150*time.Millisecond, errors.New("boom"))

	stats, ok := m.Stats("calculate_composite")
	require.True(t, ok)
	assert.Equal(t, int64(11), stats.Count)
	assert.Equal(t, int64(1), stats.Errors)
	assert.InDelta(t, 1.0/11.0, stats.ErrorRate, 1e-9)
	assert.Greater(t, stats.P95, stats.P50)
	assert.GreaterOrEqual(t, stats.P99, stats.P95)
}

func TestStatsUnknownOperation(t *testing.T) {
	m := NewMonitor(config.DefaultAlertsConfig(), nil)

	_, ok := m.Stats("never_recorded")
	assert.False(t, ok)
	assert.Empty(t, m.Operations())
}

func TestResponseTimeAlertSeverities(t *testing.T) {
	cfg := config.DefaultAlertsConfig()
	cfg.ResponseTimeWarn = 50 * time.Millisecond
	cfg.ResponseTimeCritical = 500 * time.Millisecond
	m := NewMonitor(cfg, nil)

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	m.RecordOperation("fast", 10*time.Millisecond, nil)
	assert.Empty(t, alerts)

	m.RecordOperation("slow", 100*time.Millisecond, nil)
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)
	assert.Equal(t, "response_time", alerts[0].Metric)
	assert.Equal(t, "slow", alerts[0].Operation)

	m.RecordOperation("crawl", time.Second, nil)
	require.Len(t, alerts, 2)
	assert.Equal(t, SeverityCritical, alerts[1].Severity)
}

func TestErrorRateAlert(t *testing.T) {
	cfg := config.DefaultAlertsConfig()
	cfg.ErrorRateWarn = 0.10
	cfg.ErrorRateCritical = 0.30
	m := NewMonitor(cfg, nil)

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	// One failure out of two is a 50% error rate: critical.
	m.RecordOperation("op", time.Millisecond, nil)
	m.RecordOperation("op", time.Millisecond, errors.New("boom"))

	found := false
	for _, a := range alerts {
		if a.Metric == "error_rate" && a.Severity == SeverityCritical {
			found = true
		}
	}
	assert.True(t, found, "expected a critical error_rate alert, got %v", alerts)
}

func TestCacheHitRateAlertNeedsTraffic(t *testing.T) {
	cfg := config.DefaultAlertsConfig()
	m := NewMonitor(cfg, nil)

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	// Below the floor but with too little traffic to judge.
	m.RecordCacheHitRate(0.05, 40)
	assert.Empty(t, alerts)

	m.RecordCacheHitRate(0.05, 500)
	require.Len(t, alerts, 1)
	assert.Equal(t, "cache_hit_rate", alerts[0].Metric)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)

	// Healthy hit rate raises nothing.
	m.RecordCacheHitRate(0.92, 500)
	assert.Len(t, alerts, 1)
}

func TestErrorRateAgesOutWithWindow(t *testing.T) {
	cfg := config.DefaultAlertsConfig()
	cfg.ErrorRateWarn = 0.10
	cfg.ErrorRateCritical = 0.30
	m := NewMonitor(cfg, nil)

	for i := 0; i < 10; i++ {
		m.RecordOperation("op", time.Millisecond, errors.New("boom"))
	}
	stats, ok := m.Stats("op")
	require.True(t, ok)
	assert.Equal(t, 1.0, stats.ErrorRate)

	// A full window of successes overwrites the burst entirely.
	for i := 0; i < 1000; i++ {
		m.RecordOperation("op", time.Millisecond, nil)
	}

	stats, ok = m.Stats("op")
	require.True(t, ok)
	assert.Equal(t, int64(1010), stats.Count, "lifetime count is kept")
	assert.Equal(t, int64(10), stats.Errors, "lifetime error total is kept")
	assert.Zero(t, stats.ErrorRate, "rate reflects recent traffic only")

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })
	m.RecordOperation("op", time.Millisecond, nil)
	for _, a := range alerts {
		assert.NotEqual(t, "error_rate", a.Metric, "stale burst must not alert")
	}
}

func TestWindowWrapsAtCapacity(t *testing.T) {
	m := NewMonitor(config.DefaultAlertsConfig(), nil)

	for i := 0; i < 1500; i++ {
		m.RecordOperation("busy", time.Millisecond, nil)
	}

	stats, ok := m.Stats("busy")
	require.True(t, ok)
	assert.Equal(t, int64(1500), stats.Count, "count keeps the lifetime total")
	assert.Equal(t, time.Millisecond, stats.P50)
}
