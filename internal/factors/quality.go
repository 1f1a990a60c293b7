package factors

// Quality factors: profitability, balance-sheet strength, and margins. The
// quality composite is a weighted blend requiring at least two valid
// sub-factors; with fewer it returns nil rather than a misleading score.

func roeScore(ctx Context) *float64 {
	if ctx.Fundamentals == nil || !valid(ctx.Fundamentals.ROE) {
		return nil
	}
	// 0% ROE scores 0.27, 15% scores ~0.65, 30%+ approaches 0.9.
	return score(sigmoid(*ctx.Fundamentals.ROE-0.10, 10))
}

func debtEquityScore(ctx Context) *float64 {
	if ctx.Fundamentals == nil || !valid(ctx.Fundamentals.DebtToEquity) {
		return nil
	}
	de := *ctx.Fundamentals.DebtToEquity
	if de < 0 {
		return nil
	}
	// Low leverage scores high: D/E of 0 → 1.0, 1.0 → 0.5, 3.0 → 0.2.
	return score(1 / (1 + de))
}

func currentRatioScore(ctx Context) *float64 {
	if ctx.Fundamentals == nil || !valid(ctx.Fundamentals.CurrentRatio) {
		return nil
	}
	cr := *ctx.Fundamentals.CurrentRatio
	if cr < 0 {
		return nil
	}
	// Centered at 1.5; below 1 signals liquidity stress.
	return score(sigmoid(cr-1.5, 2))
}

func marginScore(ctx Context) *float64 {
	if ctx.Fundamentals == nil {
		return nil
	}
	parts := []float64{}
	if valid(ctx.Fundamentals.OperatingMargin) {
		parts = append(parts, sigmoid(*ctx.Fundamentals.OperatingMargin-0.10, 8))
	}
	if valid(ctx.Fundamentals.NetMargin) {
		parts = append(parts, sigmoid(*ctx.Fundamentals.NetMargin-0.08, 8))
	}
	if len(parts) == 0 {
		return nil
	}
	return score(mean(parts))
}

// qualityComposite blends ROE (35%), leverage (25%), liquidity (15%), and
// margins (25%), renormalized over the sub-factors that have data. Fewer
// than two valid sub-factors yields nil.
func qualityComposite(ctx Context) *float64 {
	type part struct {
		value  *float64
		weight float64
	}
	parts := []part{
		{roeScore(ctx), 0.35},
		{debtEquityScore(ctx), 0.25},
		{currentRatioScore(ctx), 0.15},
		{marginScore(ctx), 0.25},
	}

	sum, weightSum, n := 0.0, 0.0, 0
	for _, p := range parts {
		if valid(p.value) {
			sum += *p.value * p.weight
			weightSum += p.weight
			n++
		}
	}
	if n < 2 || weightSum == 0 {
		return nil
	}
	return score(sum / weightSum)
}

// Growth factors: year-over-year growth rates sigmoid-normalized so 0%
// growth is neutral and 30%+ approaches 1.

func growthScore(rate *float64) *float64 {
	if !valid(rate) {
		return nil
	}
	return score(sigmoid(*rate, 6))
}

func revenueGrowth(ctx Context) *float64 {
	if ctx.Fundamentals == nil {
		return nil
	}
	return growthScore(ctx.Fundamentals.RevenueGrowth)
}

func earningsGrowth(ctx Context) *float64 {
	if ctx.Fundamentals == nil {
		return nil
	}
	return growthScore(ctx.Fundamentals.EarningsGrowth)
}

func fcfGrowth(ctx Context) *float64 {
	if ctx.Fundamentals == nil {
		return nil
	}
	return growthScore(ctx.Fundamentals.FCFGrowth)
}

func growthComposite(ctx Context) *float64 {
	parts := collect(revenueGrowth(ctx), earningsGrowth(ctx), fcfGrowth(ctx))
	if len(parts) == 0 {
		return nil
	}
	return score(mean(parts))
}

// fundamentalComposite is the Fundamental group score: value 40%, quality
// 40%, growth 20%, renormalized over available sub-composites.
func fundamentalComposite(ctx Context) *float64 {
	type part struct {
		value  *float64
		weight float64
	}
	parts := []part{
		{valueComposite(ctx), 0.40},
		{qualityComposite(ctx), 0.40},
		{growthComposite(ctx), 0.20},
	}

	sum, weightSum := 0.0, 0.0
	for _, p := range parts {
		if valid(p.value) {
			sum += *p.value * p.weight
			weightSum += p.weight
		}
	}
	if weightSum == 0 {
		return nil
	}
	return score(sum / weightSum)
}
