package quality

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

type noopProvider struct{ name string }

func (n *noopProvider) Name() string { return n.name }
func (n *noopProvider) GetStockPrice(ctx context.Context, symbol string) (*providers.StockPrice, error) {
	return nil, nil
}
func (n *noopProvider) GetCompanyInfo(ctx context.Context, symbol string) (*providers.CompanyInfo, error) {
	return nil, nil
}
func (n *noopProvider) GetFundamentals(ctx context.Context, symbol string) (*providers.Fundamentals, error) {
	return nil, nil
}
func (n *noopProvider) GetHistoricalOHLC(ctx context.Context, symbol string, periods int) (*providers.HistoricalSeries, error) {
	return nil, nil
}
func (n *noopProvider) GetOptionsChain(ctx context.Context, symbol string, asOf time.Time) (*providers.OptionsChain, error) {
	return nil, nil
}
func (n *noopProvider) GetMacroContext(ctx context.Context) (*providers.MacroContext, error) {
	return nil, nil
}
func (n *noopProvider) GetSentiment(ctx context.Context, symbol string) (*providers.SentimentData, error) {
	return nil, nil
}
func (n *noopProvider) GetShortInterest(ctx context.Context, symbol string) (*providers.ShortInterestData, error) {
	return nil, nil
}
func (n *noopProvider) GetESG(ctx context.Context, symbol string) (*providers.ESGData, error) {
	return nil, nil
}
func (n *noopProvider) HealthCheck(ctx context.Context) error { return nil }

func pinnedScorer(registry *providers.Registry, now time.Time) *Scorer {
	s := NewScorer(registry)
	s.now = func() time.Time { return now }
	return s
}

func TestFreshnessWithinCadence(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s := pinnedScorer(providers.NewRegistry(), now)

	f := s.Freshness(providers.DataTypeStockPrice, now.Add(-30*time.Second))
	assert.Equal(t, 1.0, f)

	f = s.Freshness(providers.DataTypeFundamentals, now.Add(-12*time.Hour))
	assert.Equal(t, 1.0, f)
}

func TestFreshnessDecaysPastCadence(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s := pinnedScorer(providers.NewRegistry(), now)

	// Price cadence is one minute; two minutes old → 0.5.
	f := s.Freshness(providers.DataTypeStockPrice, now.Add(-2*time.Minute))
	assert.InDelta(t, 0.5, f, 1e-9)

	f = s.Freshness(providers.DataTypeStockPrice, now.Add(-5*time.Minute))
	assert.InDelta(t, 0.2, f, 1e-9)

	assert.Equal(t, 0.0, s.Freshness(providers.DataTypeStockPrice, time.Time{}))
}

func TestAggregateFreshnessWorstFeedWins(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s := pinnedScorer(providers.NewRegistry(), now)

	f := s.AggregateFreshness(map[providers.DataType]time.Time{
		providers.DataTypeStockPrice:   now.Add(-10 * time.Second), // 1.0
		providers.DataTypeFundamentals: now.Add(-48 * time.Hour),   // 0.5
	})
	assert.InDelta(t, 0.5, f, 1e-9)

	assert.Equal(t, 0.0, s.AggregateFreshness(nil))
}

func TestCompleteness(t *testing.T) {
	s := NewScorer(providers.NewRegistry())

	assert.InDelta(t, 7.0/9.0, s.Completeness(7, 9), 1e-9)
	assert.Equal(t, 1.0, s.Completeness(9, 9))
	assert.Equal(t, 0.0, s.Completeness(3, 0))
}

func TestAccuracyCrossSourceAgreement(t *testing.T) {
	s := NewScorer(providers.NewRegistry())

	assert.Equal(t, 0.0, s.Accuracy(nil))
	assert.Equal(t, 0.8, s.Accuracy([]float64{101.2}), "single source cannot be cross-checked")

	tight := s.Accuracy([]float64{100.0, 100.1, 99.9})
	loose := s.Accuracy([]float64{100.0, 120.0, 80.0})
	assert.Greater(t, tight, 0.95)
	assert.Less(t, loose, tight)
}

func TestAnnotateWeightsReputation(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	registry := providers.NewRegistry()
	registry.Register(&noopProvider{name: "alpha"}, providers.Config{Enabled: true, Reliability: 1.0})
	s := pinnedScorer(registry, now)

	timestamps := map[providers.DataType]time.Time{
		providers.DataTypeStockPrice: now.Add(-10 * time.Second),
	}
	sources := map[providers.DataType]string{
		providers.DataTypeStockPrice: "alpha",
	}

	m := s.Annotate(timestamps, 1.0, []float64{100.0}, sources)
	assert.Equal(t, 1.0, m.Freshness)
	assert.Equal(t, 1.0, m.Completeness)
	assert.Equal(t, 0.8, m.Accuracy)
	// base = 0.4 + 0.35 + 0.25*0.8 = 0.95, reputation 1.0.
	assert.InDelta(t, 0.95, m.ReputationWeighted, 1e-9)

	// Halving the provider's configured reliability halves the weighted score.
	registry.Register(&noopProvider{name: "alpha"}, providers.Config{Enabled: true, Reliability: 0.5})
	m = s.Annotate(timestamps, 1.0, []float64{100.0}, sources)
	assert.InDelta(t, 0.475, m.ReputationWeighted, 1e-9)
}
