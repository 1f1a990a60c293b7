package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlocke/vfr-api-sub009/internal/config"
	"github.com/mlocke/vfr-api-sub009/internal/factors"
	"github.com/mlocke/vfr-api-sub009/internal/providers"
	"github.com/mlocke/vfr-api-sub009/internal/providers/sim"
)

func allDataTypes() []providers.DataType {
	return []providers.DataType{
		providers.DataTypeStockPrice,
		providers.DataTypeCompanyInfo,
		providers.DataTypeFundamentals,
		providers.DataTypeHistorical,
		providers.DataTypeOptionsChain,
		providers.DataTypeMacro,
		providers.DataTypeSentiment,
		providers.DataTypeShortData,
		providers.DataTypeESG,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng := New(Options{Resilience: config.DefaultResilienceConfig()})

	eng.RegisterProvider(sim.New("sim_primary"), providers.Config{
		Enabled:            true,
		Reliability:        0.9,
		SupportedDataTypes: allDataTypes(),
	})
	for _, dt := range allDataTypes() {
		require.NoError(t, eng.SetDataSourcePreference(dt, "sim_primary", nil))
	}
	return eng
}

func TestCalculateCompositeEndToEnd(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.CalculateComposite(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, result.Score)

	assert.GreaterOrEqual(t, result.Score.Score, 0.0)
	assert.LessOrEqual(t, result.Score.Score, 1.0)
	assert.NoError(t, factors.VerifyWeightSum(result.Score.WeightBreakdown, 1e-6))
	assert.NotEmpty(t, result.Score.ContributingFactors)
	assert.NotEmpty(t, result.Score.MarketCapTier)

	assert.Equal(t, 1.0, result.Quality.Completeness, "all nine feeds resolved")
	assert.Equal(t, 1.0, result.Quality.Freshness)

	// Quote and chain spot cross-check: two near-agreeing samples beat the
	// single-source baseline.
	assert.Greater(t, result.Quality.Accuracy, 0.8)
	assert.LessOrEqual(t, result.Quality.Accuracy, 1.0)
	assert.Greater(t, result.Quality.ReputationWeighted, 0.0)
}

func TestCompositeAccuracySingleSourceBaseline(t *testing.T) {
	eng := New(Options{Resilience: config.DefaultResilienceConfig()})

	// Only a quote resolves: one spot sample, no cross-check possible.
	eng.RegisterProvider(sim.New("sim_primary"), providers.Config{
		Enabled:            true,
		Reliability:        0.9,
		SupportedDataTypes: []providers.DataType{providers.DataTypeStockPrice},
	})
	require.NoError(t, eng.SetDataSourcePreference(providers.DataTypeStockPrice, "sim_primary", nil))

	result, err := eng.CalculateComposite(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, result.Quality.Accuracy, 1e-9)
}

func TestCalculateCompositeNoProvidersReturnsInsufficientData(t *testing.T) {
	eng := New(Options{Resilience: config.DefaultResilienceConfig()})

	_, err := eng.CalculateComposite(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCalculateCompositeSurvivesPartialOutage(t *testing.T) {
	eng := New(Options{Resilience: config.DefaultResilienceConfig()})

	// Provider only serves price and fundamentals; everything else is absent.
	eng.RegisterProvider(sim.New("sim_primary"), providers.Config{
		Enabled:     true,
		Reliability: 0.9,
		SupportedDataTypes: []providers.DataType{
			providers.DataTypeStockPrice,
			providers.DataTypeFundamentals,
		},
	})
	require.NoError(t, eng.SetDataSourcePreference(providers.DataTypeStockPrice, "sim_primary", nil))
	require.NoError(t, eng.SetDataSourcePreference(providers.DataTypeFundamentals, "sim_primary", nil))

	result, err := eng.CalculateComposite(context.Background(), "AAPL")
	require.NoError(t, err, "partial data must degrade, not fail")

	assert.NotContains(t, result.Score.ContributingFactors, "macro")
	assert.Contains(t, result.Score.ContributingFactors, "fundamental")
	assert.Less(t, result.Quality.Completeness, 1.0)
	assert.Less(t, result.Score.Confidence(), 1.0)
}

func TestCalculateFactor(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.CalculateFactor(context.Background(), "pe_ratio", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.GreaterOrEqual(t, *result.Value, 0.0)
	assert.LessOrEqual(t, *result.Value, 1.0)

	_, err = eng.CalculateFactor(context.Background(), "no_such_factor", "AAPL")
	assert.Error(t, err)
}

func TestCalculateFactorWithSuppliedContext(t *testing.T) {
	eng := New(Options{})

	pe := 15.0
	fctx := factors.Context{
		Symbol: "AAPL",
		Fundamentals: &providers.Fundamentals{
			Symbol: "AAPL", Sector: "Technology", PERatio: &pe,
		},
	}
	result, err := eng.CalculateFactorWith(context.Background(), "pe_ratio", "AAPL", fctx)
	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.InDelta(t, 1.0-0.25*15.0/18.0, *result.Value, 1e-9)
}

func TestClearCacheScopedToSymbol(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CalculateComposite(ctx, "AAPL")
	require.NoError(t, err)
	_, err = eng.CalculateComposite(ctx, "MSFT")
	require.NoError(t, err)

	removed := eng.ClearCache(ctx, "AAPL")
	assert.Greater(t, removed, 0)

	// MSFT's cached payloads survive: recomputing it stays a cache hit.
	before := eng.DataSourceStats()[providers.DataTypeStockPrice].CacheHits
	_, err = eng.CalculateComposite(ctx, "MSFT")
	require.NoError(t, err)
	after := eng.DataSourceStats()[providers.DataTypeStockPrice].CacheHits
	assert.Greater(t, after, before)
}

func TestProviderStatusAndBreakerStates(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.CalculateComposite(context.Background(), "AAPL")
	require.NoError(t, err)

	status := eng.GetProviderStatus()
	require.Contains(t, status, "sim_primary")
	assert.True(t, status["sim_primary"].Available)

	states := eng.BreakerStates()
	assert.NotEmpty(t, states)
	for key, state := range states {
		assert.Equal(t, "closed", state, key)
	}
}

func TestMonitorRecordsCompositeLatency(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.CalculateComposite(context.Background(), "AAPL")
	require.NoError(t, err)

	stats, ok := eng.Monitor().Stats("calculate_composite")
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Count)
	assert.Equal(t, int64(0), stats.Errors)
}

func TestDataSourceStatsTrackPrimarySuccess(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.CalculateComposite(context.Background(), "AAPL")
	require.NoError(t, err)

	stats := eng.DataSourceStats()
	price := stats[providers.DataTypeStockPrice]
	assert.Equal(t, int64(1), price.TotalRequests)
	assert.Equal(t, int64(1), price.PrimarySuccess)
	assert.Equal(t, int64(0), price.TotalFailures)
}
