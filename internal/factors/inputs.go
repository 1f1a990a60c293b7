// Package factors implements the factor library: ~40 independent calculators
// producing normalized scores in [0,1] (or nil when required inputs are
// missing), plus the market-cap-aware composite that combines them.
package factors

import (
	"math"
	"time"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

// Context carries every payload a factor calculator may consume. Any field
// may be nil; calculators return nil rather than erroring on missing inputs.
type Context struct {
	Symbol        string
	AsOf          time.Time
	Price         *providers.StockPrice
	Company       *providers.CompanyInfo
	Fundamentals  *providers.Fundamentals
	History       *providers.HistoricalSeries
	Options       *providers.OptionsChain
	Macro         *providers.MacroContext
	Sentiment     *providers.SentimentData
	ShortInterest *providers.ShortInterestData
	ESG           *providers.ESGData
}

// MarketCap resolves the market cap from whichever payload carries it.
func (c Context) MarketCap() float64 {
	if c.Price != nil && c.Price.MarketCap > 0 {
		return c.Price.MarketCap
	}
	if c.Company != nil && c.Company.MarketCap > 0 {
		return c.Company.MarketCap
	}
	return 0
}

// Sector resolves the sector classification, preferring fundamentals.
func (c Context) Sector() string {
	if c.Fundamentals != nil && c.Fundamentals.Sector != "" {
		return c.Fundamentals.Sector
	}
	if c.Company != nil {
		return c.Company.Sector
	}
	return ""
}

// closes returns the close series (oldest first) when history is present.
func (c Context) closes() []float64 {
	if c.History == nil || len(c.History.Bars) == 0 {
		return nil
	}
	out := make([]float64, len(c.History.Bars))
	for i, bar := range c.History.Bars {
		out[i] = bar.Close
	}
	return out
}

func (c Context) highs() []float64 {
	if c.History == nil || len(c.History.Bars) == 0 {
		return nil
	}
	out := make([]float64, len(c.History.Bars))
	for i, bar := range c.History.Bars {
		out[i] = bar.High
	}
	return out
}

func (c Context) lows() []float64 {
	if c.History == nil || len(c.History.Bars) == 0 {
		return nil
	}
	out := make([]float64, len(c.History.Bars))
	for i, bar := range c.History.Bars {
		out[i] = bar.Low
	}
	return out
}

func (c Context) volumes() []float64 {
	if c.History == nil || len(c.History.Bars) == 0 {
		return nil
	}
	out := make([]float64, len(c.History.Bars))
	for i, bar := range c.History.Bars {
		out[i] = bar.Volume
	}
	return out
}

// clamp01 bounds v into [0,1].
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// sigmoid maps x through a logistic curve centered at 0 with steepness k,
// producing (0,1). Used to normalize unbounded return-style inputs.
func sigmoid(x, k float64) float64 {
	return 1 / (1 + math.Exp(-k*x))
}

// score returns a *float64 for a valid normalized value and nil for NaN/Inf.
func score(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v = clamp01(v)
	return &v
}

// valid reports whether p is a usable sub-factor input.
func valid(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

// mean averages vs; callers guarantee non-empty input.
func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
