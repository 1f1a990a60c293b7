package factors

import "math"

// Alternative-data and context factors: ESG, macroeconomic backdrop,
// sentiment, short interest, and extended-market liquidity.

// esgComposite averages whichever ESG pillars the vendor reported, scaled
// from the vendor's 0-100 convention.
func esgComposite(ctx Context) *float64 {
	if ctx.ESG == nil {
		return nil
	}
	if valid(ctx.ESG.Total) {
		return score(*ctx.ESG.Total / 100)
	}
	parts := []float64{}
	for _, pillar := range []*float64{ctx.ESG.Environmental, ctx.ESG.Social, ctx.ESG.Governance} {
		if valid(pillar) {
			parts = append(parts, *pillar/100)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return score(mean(parts))
}

// macroComposite blends growth, inflation, policy rate, and curve shape into
// a risk-appetite score. Inputs are percent units (2.0 = 2%); each is
// optional.
func macroComposite(ctx Context) *float64 {
	if ctx.Macro == nil {
		return nil
	}
	parts := []float64{}
	if valid(ctx.Macro.GDPGrowth) {
		// 2% real growth is neutral.
		parts = append(parts, sigmoid(*ctx.Macro.GDPGrowth-2.0, 0.8))
	}
	if valid(ctx.Macro.InflationRate) {
		// 2% target is best; hot inflation penalized.
		parts = append(parts, 1-sigmoid(*ctx.Macro.InflationRate-3.0, 1.2))
	}
	if valid(ctx.Macro.UnemploymentRate) {
		parts = append(parts, 1-sigmoid(*ctx.Macro.UnemploymentRate-5.0, 1.0))
	}
	if valid(ctx.Macro.FedFundsRate) {
		parts = append(parts, 1-sigmoid(*ctx.Macro.FedFundsRate-3.5, 0.6))
	}
	if valid(ctx.Macro.YieldCurve10Y2Y) {
		// Inverted curve (negative spread) is the classic warning.
		parts = append(parts, sigmoid(*ctx.Macro.YieldCurve10Y2Y, 3.0))
	}
	if len(parts) == 0 {
		return nil
	}
	return score(mean(parts))
}

// yieldCurveSignal isolates the 10y-2y spread (percentage points) as its own
// factor.
func yieldCurveSignal(ctx Context) *float64 {
	if ctx.Macro == nil || !valid(ctx.Macro.YieldCurve10Y2Y) {
		return nil
	}
	return score(sigmoid(*ctx.Macro.YieldCurve10Y2Y, 3.0))
}

// newsSentiment rescales vendor sentiment from [-1,1] to [0,1].
func newsSentiment(ctx Context) *float64 {
	if ctx.Sentiment == nil || !valid(ctx.Sentiment.NewsSentiment) {
		return nil
	}
	return score((*ctx.Sentiment.NewsSentiment + 1) / 2)
}

func socialSentiment(ctx Context) *float64 {
	if ctx.Sentiment == nil || !valid(ctx.Sentiment.SocialSentiment) {
		return nil
	}
	return score((*ctx.Sentiment.SocialSentiment + 1) / 2)
}

// sentimentComposite weights news over social: news coverage is slower but
// less manipulable.
func sentimentComposite(ctx Context) *float64 {
	news := newsSentiment(ctx)
	social := socialSentiment(ctx)
	switch {
	case valid(news) && valid(social):
		return score(0.6**news + 0.4**social)
	case valid(news):
		return news
	case valid(social):
		return social
	default:
		return nil
	}
}

// shortInterestScore inverts crowded short positioning: low short interest
// scores high, heavily shorted names low, with a squeeze-risk kicker when
// days-to-cover stretches.
func shortInterestScore(ctx Context) *float64 {
	if ctx.ShortInterest == nil {
		return nil
	}
	si := ctx.ShortInterest
	if !valid(si.ShortPercentFloat) {
		return nil
	}
	// 2% of float is benign (~0.8); 20%+ heavily shorted (→0.1).
	v := 1 - sigmoid(*si.ShortPercentFloat-0.08, 25)
	if valid(si.DaysToCover) && *si.DaysToCover > 5 {
		// Extended cover time compounds the risk.
		v *= 0.85
	}
	if valid(si.ShortRatioChange) {
		// Shorts covering (negative change) is a mild positive.
		v = clamp01(v + 0.1*(1-sigmoid(*si.ShortRatioChange, 10)) - 0.05)
	}
	return score(v)
}

// liquidityScore gauges extended-market tradability from dollar volume.
func liquidityScore(ctx Context) *float64 {
	volumes := ctx.volumes()
	closes := ctx.closes()
	if len(volumes) < 20 || len(closes) != len(volumes) {
		return nil
	}
	dollarVol := 0.0
	for i := len(volumes) - 20; i < len(volumes); i++ {
		dollarVol += volumes[i] * closes[i]
	}
	dollarVol /= 20
	if dollarVol <= 0 {
		return nil
	}
	// $1M/day → ~0.25, $50M/day → ~0.75, $1B/day → ~0.97.
	v := sigmoid(math.Log10(dollarVol)-7.5, 0.9)
	return score(v)
}
