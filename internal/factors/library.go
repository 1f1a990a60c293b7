package factors

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlocke/vfr-api-sub009/internal/cache"
	"github.com/mlocke/vfr-api-sub009/internal/config"
)

// Group labels the composite weighting group a factor feeds.
type Group string

const (
	GroupTechnical   Group = "technical"
	GroupFundamental Group = "fundamental"
	GroupMacro       Group = "macro"
	GroupSentiment   Group = "sentiment"
	GroupAlternative Group = "alternative"
)

// Calculator is one registered factor: a pure function of its typed inputs.
type Calculator struct {
	Name  string
	Group Group
	Fn    func(Context) *float64
}

// registry is the closed factor set, keyed by name. Dispatch is through this
// table only; there is no string-switch fallback, so an unknown name is a
// caller error surfaced immediately.
var registry = buildRegistry()

func buildRegistry() map[string]Calculator {
	calculators := []Calculator{
		// Momentum
		{"momentum_5d", GroupTechnical, momentum5d},
		{"momentum_20d", GroupTechnical, momentum20d},
		{"momentum_60d", GroupTechnical, momentum60d},
		{"momentum_120d", GroupTechnical, momentum120d},
		{"momentum_250d", GroupTechnical, momentum250d},
		{"mean_reversion_20d", GroupTechnical, meanReversion20d},
		{"mean_reversion_50d", GroupTechnical, meanReversion50d},

		// Technical indicators
		{"rsi_14d", GroupTechnical, rsi14},
		{"macd_signal", GroupTechnical, macdSignal},
		{"bollinger_position", GroupTechnical, bollingerPosition},
		{"sma_trend", GroupTechnical, smaTrend},
		{"adx_trend", GroupTechnical, adxTrend},
		{"atr_volatility", GroupTechnical, atrVolatility},
		{"obv_momentum", GroupTechnical, obvMomentum},
		{"volume_trend", GroupTechnical, volumeTrend},
		{"technical_composite", GroupTechnical, technicalComposite},

		// Value
		{"pe_ratio", GroupFundamental, peRatio},
		{"pb_ratio", GroupFundamental, pbRatio},
		{"ev_ebitda", GroupFundamental, evEbitda},
		{"peg_ratio", GroupFundamental, pegRatio},
		{"value_composite", GroupFundamental, valueComposite},

		// Quality
		{"roe", GroupFundamental, roeScore},
		{"debt_to_equity", GroupFundamental, debtEquityScore},
		{"current_ratio", GroupFundamental, currentRatioScore},
		{"margins", GroupFundamental, marginScore},
		{"quality_composite", GroupFundamental, qualityComposite},

		// Growth
		{"revenue_growth", GroupFundamental, revenueGrowth},
		{"earnings_growth", GroupFundamental, earningsGrowth},
		{"fcf_growth", GroupFundamental, fcfGrowth},
		{"growth_composite", GroupFundamental, growthComposite},
		{"fundamental_composite", GroupFundamental, fundamentalComposite},

		// Options intelligence
		{"put_call_ratio", GroupAlternative, putCallRatio},
		{"iv_percentile", GroupAlternative, ivPercentile},
		{"options_flow", GroupAlternative, flowSentiment},
		{"greeks_exposure", GroupAlternative, greeksExposure},
		{"max_pain", GroupAlternative, maxPain},
		{"volume_divergence", GroupAlternative, volumeDivergence},
		{"options_composite", GroupAlternative, optionsComposite},

		// Macro
		{"macro_composite", GroupMacro, macroComposite},
		{"yield_curve", GroupMacro, yieldCurveSignal},

		// Sentiment
		{"news_sentiment", GroupSentiment, newsSentiment},
		{"social_sentiment", GroupSentiment, socialSentiment},
		{"sentiment_composite", GroupSentiment, sentimentComposite},

		// Alternative data
		{"esg_composite", GroupAlternative, esgComposite},
		{"short_interest", GroupAlternative, shortInterestScore},
		{"liquidity", GroupAlternative, liquidityScore},
	}

	out := make(map[string]Calculator, len(calculators))
	for _, c := range calculators {
		if _, dup := out[c.Name]; dup {
			panic(fmt.Sprintf("duplicate factor registration: %s", c.Name))
		}
		out[c.Name] = c
	}
	return out
}

// Names returns all registered factor names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result is one computed factor score. Value is nil when required inputs
// were missing. Results are immutable; a newer cache entry replaces them.
type Result struct {
	FactorName string    `json:"factor_name"`
	Symbol     string    `json:"symbol"`
	Value      *float64  `json:"value"`
	ComputedAt time.Time `json:"computed_at"`
}

// Library evaluates factors with per-factor memoization in a time-bucketed
// cache namespace.
type Library struct {
	store *cache.Store

	// now is swappable in tests to pin the minute bucket.
	now func() time.Time
}

// NewLibrary creates a Library memoizing through store. A nil store disables
// memoization.
func NewLibrary(store *cache.Store) *Library {
	return &Library{store: store, now: time.Now}
}

// Calculate evaluates one factor by name. Unknown names return an error; a
// known factor with missing inputs returns a nil-valued Result, never an
// error.
func (l *Library) Calculate(ctx context.Context, name, symbol string, fctx Context) (Result, error) {
	calc, ok := registry[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown factor %q", name)
	}

	if l.store == nil {
		return l.compute(calc, symbol, fctx), nil
	}

	// Memoize under a minute bucket so identical requests inside the window
	// return identical values.
	bucket := l.now().Truncate(time.Minute).Unix()
	key := fmt.Sprintf("factor:%s:%s:%d", symbol, name, bucket)

	raw, hit, err := l.store.GetOrFetch(ctx, key, config.FactorTTL, func(context.Context) ([]byte, error) {
		return json.Marshal(l.compute(calc, symbol, fctx))
	})
	if err != nil {
		// Memoization failure is not a scoring failure.
		log.Warn().Str("factor", name).Str("symbol", symbol).Err(err).Msg("factor memoization failed")
		return l.compute(calc, symbol, fctx), nil
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return l.compute(calc, symbol, fctx), nil
	}
	if hit {
		log.Debug().Str("factor", name).Str("symbol", symbol).Msg("factor served from cache")
	}
	return result, nil
}

// CalculateGroup evaluates every factor in a group, keyed by factor name.
func (l *Library) CalculateGroup(ctx context.Context, group Group, symbol string, fctx Context) (map[string]Result, error) {
	out := make(map[string]Result)
	for name, calc := range registry {
		if calc.Group != group {
			continue
		}
		result, err := l.Calculate(ctx, name, symbol, fctx)
		if err != nil {
			return nil, err
		}
		out[name] = result
	}
	return out, nil
}

func (l *Library) compute(calc Calculator, symbol string, fctx Context) Result {
	value := calc.Fn(fctx)
	if value != nil {
		log.Debug().
			Str("factor", calc.Name).
			Str("symbol", symbol).
			Float64("value", *value).
			Msg("factor computed")
	}
	return Result{
		FactorName: calc.Name,
		Symbol:     symbol,
		Value:      value,
		ComputedAt: l.now(),
	}
}
