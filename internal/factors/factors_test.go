package factors

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

func fundCtx(f providers.Fundamentals) Context {
	f.Symbol = "TEST"
	return Context{Symbol: "TEST", Fundamentals: &f}
}

func historyCtx(closes []float64) Context {
	bars := make([]providers.OHLCBar, len(closes))
	day := time.Now().AddDate(0, 0, -len(closes))
	for i, c := range closes {
		bars[i] = providers.OHLCBar{Date: day, Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: 1e6}
		day = day.AddDate(0, 0, 1)
	}
	return Context{Symbol: "TEST", History: &providers.HistoricalSeries{Symbol: "TEST", Bars: bars}}
}

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func TestPERatioScoresAgainstSectorQuartiles(t *testing.T) {
	ctx := fundCtx(providers.Fundamentals{Sector: "Technology", PERatio: ptr(15)})

	v := peRatio(ctx)
	require.NotNil(t, v)
	// Tech quartiles are [18, 26, 38]; PE 15 is under the cheap quartile.
	assert.InDelta(t, 1.0-0.25*15.0/18.0, *v, 1e-9)

	atQ1 := peRatio(fundCtx(providers.Fundamentals{Sector: "Technology", PERatio: ptr(18)}))
	require.NotNil(t, atQ1)
	assert.InDelta(t, 0.75, *atQ1, 1e-9)

	atMedian := peRatio(fundCtx(providers.Fundamentals{Sector: "Technology", PERatio: ptr(26)}))
	require.NotNil(t, atMedian)
	assert.InDelta(t, 0.50, *atMedian, 1e-9)

	atQ3 := peRatio(fundCtx(providers.Fundamentals{Sector: "Technology", PERatio: ptr(38)}))
	require.NotNil(t, atQ3)
	assert.InDelta(t, 0.25, *atQ3, 1e-9)
}

func TestPERatioNegativeEarningsScoreZero(t *testing.T) {
	v := peRatio(fundCtx(providers.Fundamentals{Sector: "Technology", PERatio: ptr(-12)}))
	require.NotNil(t, v)
	assert.Equal(t, 0.0, *v)
}

func TestPERatioMissingInputReturnsNil(t *testing.T) {
	assert.Nil(t, peRatio(Context{}))
	assert.Nil(t, peRatio(fundCtx(providers.Fundamentals{Sector: "Technology"})))
}

func TestUnknownSectorFallsBackToBroadMarket(t *testing.T) {
	known := peRatio(fundCtx(providers.Fundamentals{Sector: "no-such-sector", PERatio: ptr(18)}))
	require.NotNil(t, known)
	// Broad-market PE quartiles are [12, 18, 26]; 18 is the median.
	assert.InDelta(t, 0.50, *known, 1e-9)
}

func TestValueCompositeAveragesAvailableRatios(t *testing.T) {
	ctx := fundCtx(providers.Fundamentals{
		Sector:  "Technology",
		PERatio: ptr(18), // 0.75
		PBRatio: ptr(3),  // at q1 → 0.75
	})
	v := valueComposite(ctx)
	require.NotNil(t, v)
	assert.InDelta(t, 0.75, *v, 1e-9)

	assert.Nil(t, valueComposite(fundCtx(providers.Fundamentals{Sector: "Technology"})))
}

func TestQualityCompositeRequiresTwoSubFactors(t *testing.T) {
	// Only ROE available: refuse to score.
	one := qualityComposite(fundCtx(providers.Fundamentals{ROE: ptr(0.2)}))
	assert.Nil(t, one)

	two := qualityComposite(fundCtx(providers.Fundamentals{ROE: ptr(0.2), DebtToEquity: ptr(0.5)}))
	require.NotNil(t, two)
	assert.GreaterOrEqual(t, *two, 0.0)
	assert.LessOrEqual(t, *two, 1.0)
}

func TestDebtEquityScoreMonotoneInLeverage(t *testing.T) {
	low := debtEquityScore(fundCtx(providers.Fundamentals{DebtToEquity: ptr(0.2)}))
	high := debtEquityScore(fundCtx(providers.Fundamentals{DebtToEquity: ptr(2.5)}))
	require.NotNil(t, low)
	require.NotNil(t, high)
	assert.Greater(t, *low, *high)

	negative := debtEquityScore(fundCtx(providers.Fundamentals{DebtToEquity: ptr(-1)}))
	assert.Nil(t, negative)
}

func TestGrowthScoreCentersAtZeroGrowth(t *testing.T) {
	flat := revenueGrowth(fundCtx(providers.Fundamentals{RevenueGrowth: ptr(0)}))
	require.NotNil(t, flat)
	assert.InDelta(t, 0.5, *flat, 1e-9)

	growing := revenueGrowth(fundCtx(providers.Fundamentals{RevenueGrowth: ptr(0.3)}))
	shrinking := revenueGrowth(fundCtx(providers.Fundamentals{RevenueGrowth: ptr(-0.3)}))
	require.NotNil(t, growing)
	require.NotNil(t, shrinking)
	assert.Greater(t, *growing, 0.5)
	assert.Less(t, *shrinking, 0.5)
	assert.InDelta(t, 1.0, *growing+*shrinking, 1e-9, "sigmoid is symmetric around zero growth")
}

func TestMomentumFlatMarketIsNeutral(t *testing.T) {
	ctx := historyCtx(flatCloses(30, 100))
	v := momentum20d(ctx)
	require.NotNil(t, v)
	assert.InDelta(t, 0.5, *v, 1e-9)
}

func TestMomentumTwentyPercentRally(t *testing.T) {
	closes := flatCloses(30, 100)
	closes[len(closes)-1] = 120
	v := momentum20d(historyCtx(closes))
	require.NotNil(t, v)
	assert.InDelta(t, 1/(1+math.Exp(-2)), *v, 1e-9)
}

func TestMomentumInsufficientHistory(t *testing.T) {
	assert.Nil(t, momentum250d(historyCtx(flatCloses(100, 100))))
	assert.Nil(t, momentum5d(Context{}))
}

func TestMeanReversionStretchedAboveScoresLow(t *testing.T) {
	closes := flatCloses(60, 100)
	closes[len(closes)-1] = 115
	v := meanReversion20d(historyCtx(closes))
	require.NotNil(t, v)
	assert.Less(t, *v, 0.5)

	closes[len(closes)-1] = 85
	v = meanReversion20d(historyCtx(closes))
	require.NotNil(t, v)
	assert.Greater(t, *v, 0.5)
}

func optionsCtx(contracts []providers.OptionsContract, spot float64) Context {
	return Context{
		Symbol:  "TEST",
		Options: &providers.OptionsChain{Symbol: "TEST", Spot: spot, Contracts: contracts},
	}
}

func TestPutCallRatioDirection(t *testing.T) {
	bearish := putCallRatio(optionsCtx([]providers.OptionsContract{
		{Type: "put", Volume: 3000, Strike: 95},
		{Type: "call", Volume: 1000, Strike: 105},
	}, 100))
	bullish := putCallRatio(optionsCtx([]providers.OptionsContract{
		{Type: "put", Volume: 500, Strike: 95},
		{Type: "call", Volume: 3000, Strike: 105},
	}, 100))
	require.NotNil(t, bearish)
	require.NotNil(t, bullish)
	assert.Less(t, *bearish, 0.5)
	assert.Greater(t, *bullish, 0.5)
}

func TestOptionsCompositeRenormalizesOverAvailable(t *testing.T) {
	// Volume present but zero open interest: greeks and divergence drop out,
	// and the composite renormalizes over the rest.
	contracts := []providers.OptionsContract{
		{Type: "call", Volume: 1000, Strike: 105, ImpliedVol: 0.3},
		{Type: "call", Volume: 800, Strike: 110, ImpliedVol: 0.32},
		{Type: "put", Volume: 700, Strike: 95, ImpliedVol: 0.31},
		{Type: "put", Volume: 600, Strike: 90, ImpliedVol: 0.33},
	}
	v := optionsComposite(optionsCtx(contracts, 100))
	require.NotNil(t, v)
	assert.GreaterOrEqual(t, *v, 0.0)
	assert.LessOrEqual(t, *v, 1.0)

	assert.Nil(t, optionsComposite(Context{}))
}

func TestScoreHelperRejectsNaN(t *testing.T) {
	assert.Nil(t, score(math.NaN()))
	assert.Nil(t, score(math.Inf(1)))

	clamped := score(1.7)
	require.NotNil(t, clamped)
	assert.Equal(t, 1.0, *clamped)
}
