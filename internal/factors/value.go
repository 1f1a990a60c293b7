package factors

// Value factors score a ratio against its sector benchmark quartiles. Lower
// multiples score higher: at or under the sector's cheap quartile scores
// toward 1, above the expensive quartile toward 0, with linear interpolation
// between quartile boundaries.

// sectorBenchmark holds [q1, median, q3] quartiles per valuation ratio.
type sectorBenchmark struct {
	PE       [3]float64
	PB       [3]float64
	EVEBITDA [3]float64
	PEG      [3]float64
}

// Benchmark quartiles by GICS-style sector. Symbols in unlisted sectors fall
// back to the broad-market row.
var sectorBenchmarks = map[string]sectorBenchmark{
	"Technology": {
		PE: [3]float64{18, 26, 38}, PB: [3]float64{3.0, 5.5, 9.0},
		EVEBITDA: [3]float64{12, 18, 26}, PEG: [3]float64{1.0, 1.8, 2.8},
	},
	"Healthcare": {
		PE: [3]float64{14, 20, 30}, PB: [3]float64{2.0, 3.5, 6.0},
		EVEBITDA: [3]float64{10, 14, 20}, PEG: [3]float64{1.0, 1.6, 2.5},
	},
	"Financials": {
		PE: [3]float64{8, 12, 16}, PB: [3]float64{0.8, 1.3, 2.0},
		EVEBITDA: [3]float64{6, 9, 13}, PEG: [3]float64{0.8, 1.2, 1.8},
	},
	"Consumer Discretionary": {
		PE: [3]float64{12, 18, 28}, PB: [3]float64{2.0, 3.5, 6.0},
		EVEBITDA: [3]float64{8, 12, 18}, PEG: [3]float64{0.9, 1.5, 2.4},
	},
	"Consumer Staples": {
		PE: [3]float64{15, 20, 26}, PB: [3]float64{2.5, 4.0, 6.5},
		EVEBITDA: [3]float64{10, 13, 17}, PEG: [3]float64{1.5, 2.2, 3.2},
	},
	"Energy": {
		PE: [3]float64{6, 10, 15}, PB: [3]float64{1.0, 1.6, 2.5},
		EVEBITDA: [3]float64{4, 6, 9}, PEG: [3]float64{0.6, 1.0, 1.6},
	},
	"Industrials": {
		PE: [3]float64{13, 18, 25}, PB: [3]float64{2.0, 3.2, 5.0},
		EVEBITDA: [3]float64{9, 12, 16}, PEG: [3]float64{1.0, 1.6, 2.4},
	},
	"Utilities": {
		PE: [3]float64{14, 17, 21}, PB: [3]float64{1.4, 1.8, 2.4},
		EVEBITDA: [3]float64{9, 11, 14}, PEG: [3]float64{1.8, 2.5, 3.5},
	},
	"Materials": {
		PE: [3]float64{9, 14, 20}, PB: [3]float64{1.3, 2.0, 3.2},
		EVEBITDA: [3]float64{6, 8, 12}, PEG: [3]float64{0.8, 1.3, 2.0},
	},
	"Real Estate": {
		PE: [3]float64{12, 18, 28}, PB: [3]float64{1.0, 1.6, 2.4},
		EVEBITDA: [3]float64{12, 16, 22}, PEG: [3]float64{1.2, 2.0, 3.0},
	},
	"Communication Services": {
		PE: [3]float64{12, 18, 27}, PB: [3]float64{1.8, 3.0, 5.0},
		EVEBITDA: [3]float64{7, 10, 15}, PEG: [3]float64{0.9, 1.5, 2.3},
	},
}

// broadMarket is the catch-all benchmark for unknown sectors.
var broadMarket = sectorBenchmark{
	PE: [3]float64{12, 18, 26}, PB: [3]float64{1.5, 2.8, 4.8},
	EVEBITDA: [3]float64{8, 12, 17}, PEG: [3]float64{0.9, 1.5, 2.4},
}

func benchmarkFor(sector string) sectorBenchmark {
	if b, ok := sectorBenchmarks[sector]; ok {
		return b
	}
	return broadMarket
}

// quartileScore maps ratio onto [0,1] against quartiles q = [q1, med, q3].
// ratio ≤ q1 approaches 1, ratio ≥ q3 approaches 0; piecewise linear in
// between with 0.25 of headroom beyond each outer quartile.
func quartileScore(ratio float64, q [3]float64) float64 {
	q1, med, q3 := q[0], q[1], q[2]
	switch {
	case ratio <= 0:
		// Negative multiples (negative earnings) are worse than expensive.
		return 0
	case ratio <= q1:
		// Cheaper than the cheap quartile: 0.75..1.0.
		return clamp01(1.0 - 0.25*(ratio/q1))
	case ratio <= med:
		// q1..median maps to 0.75..0.5.
		return 0.75 - 0.25*(ratio-q1)/(med-q1)
	case ratio <= q3:
		// median..q3 maps to 0.5..0.25.
		return 0.5 - 0.25*(ratio-med)/(q3-med)
	default:
		// Beyond the expensive quartile: decay 0.25 toward 0.
		return clamp01(0.25 * q3 / ratio)
	}
}

func valueRatio(ctx Context, pick func(*sectorBenchmark) [3]float64, ratio *float64) *float64 {
	if !valid(ratio) {
		return nil
	}
	b := benchmarkFor(ctx.Sector())
	return score(quartileScore(*ratio, pick(&b)))
}

func peRatio(ctx Context) *float64 {
	if ctx.Fundamentals == nil {
		return nil
	}
	return valueRatio(ctx, func(b *sectorBenchmark) [3]float64 { return b.PE }, ctx.Fundamentals.PERatio)
}

func pbRatio(ctx Context) *float64 {
	if ctx.Fundamentals == nil {
		return nil
	}
	return valueRatio(ctx, func(b *sectorBenchmark) [3]float64 { return b.PB }, ctx.Fundamentals.PBRatio)
}

func evEbitda(ctx Context) *float64 {
	if ctx.Fundamentals == nil {
		return nil
	}
	return valueRatio(ctx, func(b *sectorBenchmark) [3]float64 { return b.EVEBITDA }, ctx.Fundamentals.EVEBITDA)
}

func pegRatio(ctx Context) *float64 {
	if ctx.Fundamentals == nil {
		return nil
	}
	return valueRatio(ctx, func(b *sectorBenchmark) [3]float64 { return b.PEG }, ctx.Fundamentals.PEGRatio)
}

// valueComposite averages whichever value factors have data.
func valueComposite(ctx Context) *float64 {
	parts := collect(peRatio(ctx), pbRatio(ctx), evEbitda(ctx), pegRatio(ctx))
	if len(parts) == 0 {
		return nil
	}
	return score(mean(parts))
}

// collect gathers the non-nil values.
func collect(vs ...*float64) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if valid(v) {
			out = append(out, *v)
		}
	}
	return out
}
