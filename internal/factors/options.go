package factors

import (
	"math"
)

// Options intelligence factors read the chain snapshot for positioning
// signals. The options composite combines six sub-signals under fixed
// sub-weights that sum to 1, renormalized over whichever components have
// data in this chain.

// putCallRatio scores put/call volume. A ratio near 0.7 is the long-run
// norm; heavy put volume (fear) scores low, heavy call volume high.
func putCallRatio(ctx Context) *float64 {
	if ctx.Options == nil || len(ctx.Options.Contracts) == 0 {
		return nil
	}
	var putVol, callVol int64
	for _, c := range ctx.Options.Contracts {
		switch c.Type {
		case "put":
			putVol += c.Volume
		case "call":
			callVol += c.Volume
		}
	}
	if putVol+callVol == 0 {
		return nil
	}
	if callVol == 0 {
		v := 0.0
		return &v
	}
	ratio := float64(putVol) / float64(callVol)
	// ratio 0.7 → 0.5; 1.5 → bearish ~0.14; 0.3 → bullish ~0.82.
	return score(1 - sigmoid(ratio-0.7, 2.5))
}

// ivPercentile ranks the chain's mean implied volatility across its strikes.
// Elevated IV relative to the chain's own distribution signals expected
// movement; moderate IV scores best.
func ivPercentile(ctx Context) *float64 {
	if ctx.Options == nil || len(ctx.Options.Contracts) == 0 {
		return nil
	}
	ivs := make([]float64, 0, len(ctx.Options.Contracts))
	for _, c := range ctx.Options.Contracts {
		if c.ImpliedVol > 0 {
			ivs = append(ivs, c.ImpliedVol)
		}
	}
	if len(ivs) < 4 {
		return nil
	}
	avg := mean(ivs)
	// 20% IV is calm (0.7), 50% neutral-ish, 100%+ stressed (→0).
	return score(1 - sigmoid(avg-0.45, 5))
}

// flowSentiment weights volume by moneyness side: call volume above spot and
// put volume below spot read as directional conviction.
func flowSentiment(ctx Context) *float64 {
	if ctx.Options == nil || len(ctx.Options.Contracts) == 0 || ctx.Options.Spot <= 0 {
		return nil
	}
	spot := ctx.Options.Spot
	var bullish, bearish float64
	for _, c := range ctx.Options.Contracts {
		vol := float64(c.Volume)
		if vol == 0 {
			continue
		}
		switch c.Type {
		case "call":
			if c.Strike >= spot {
				bullish += vol // upside bets
			} else {
				bullish += vol * 0.3 // ITM calls, weaker signal
			}
		case "put":
			if c.Strike <= spot {
				bearish += vol
			} else {
				bearish += vol * 0.3
			}
		}
	}
	total := bullish + bearish
	if total == 0 {
		return nil
	}
	return score(bullish / total)
}

// greeksExposure nets delta-weighted open interest as a positioning gauge.
func greeksExposure(ctx Context) *float64 {
	if ctx.Options == nil || len(ctx.Options.Contracts) == 0 {
		return nil
	}
	var netDelta, totalOI float64
	for _, c := range ctx.Options.Contracts {
		oi := float64(c.OpenInterest)
		netDelta += c.Delta * oi
		totalOI += oi
	}
	if totalOI == 0 {
		return nil
	}
	return score(sigmoid(netDelta/totalOI, 4))
}

// maxPain finds the strike minimizing aggregate option payout and scores the
// spot's position relative to it: spot under max pain implies upward pull.
func maxPain(ctx Context) *float64 {
	if ctx.Options == nil || len(ctx.Options.Contracts) == 0 || ctx.Options.Spot <= 0 {
		return nil
	}

	strikes := map[float64]bool{}
	for _, c := range ctx.Options.Contracts {
		strikes[c.Strike] = true
	}
	if len(strikes) < 3 {
		return nil
	}

	bestStrike, bestPain := 0.0, math.MaxFloat64
	for settle := range strikes {
		pain := 0.0
		for _, c := range ctx.Options.Contracts {
			oi := float64(c.OpenInterest)
			switch c.Type {
			case "call":
				if settle > c.Strike {
					pain += (settle - c.Strike) * oi
				}
			case "put":
				if settle < c.Strike {
					pain += (c.Strike - settle) * oi
				}
			}
		}
		if pain < bestPain {
			bestPain = pain
			bestStrike = settle
		}
	}
	// Spot 5% below max pain → ~0.73 (upward pull); 5% above → ~0.27.
	pull := bestStrike/ctx.Options.Spot - 1
	return score(sigmoid(pull, 20))
}

// volumeDivergence compares option volume concentration against open
// interest: fresh volume far above resting OI flags new positioning.
func volumeDivergence(ctx Context) *float64 {
	if ctx.Options == nil || len(ctx.Options.Contracts) == 0 {
		return nil
	}
	var vol, oi float64
	for _, c := range ctx.Options.Contracts {
		vol += float64(c.Volume)
		oi += float64(c.OpenInterest)
	}
	if oi == 0 {
		return nil
	}
	// volume/OI around 0.15 is typical; >1 is unusual churn.
	return score(sigmoid(vol/oi-0.5, 3))
}

// optionsSubWeights are the fixed sub-weights for the options composite.
// They sum to 1 over the full set and are renormalized over available data.
var optionsSubWeights = []struct {
	name   string
	weight float64
	fn     func(Context) *float64
}{
	{"put_call_ratio", 0.25, putCallRatio},
	{"iv_percentile", 0.20, ivPercentile},
	{"options_flow", 0.20, flowSentiment},
	{"greeks_exposure", 0.15, greeksExposure},
	{"max_pain", 0.10, maxPain},
	{"volume_divergence", 0.10, volumeDivergence},
}

// optionsComposite combines the sub-signals with fixed weights renormalized
// over whichever components have data.
func optionsComposite(ctx Context) *float64 {
	sum, weightSum := 0.0, 0.0
	for _, sub := range optionsSubWeights {
		if v := sub.fn(ctx); valid(v) {
			sum += *v * sub.weight
			weightSum += sub.weight
		}
	}
	if weightSum == 0 {
		return nil
	}
	return score(sum / weightSum)
}
