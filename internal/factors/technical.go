package factors

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// Technical factors derive from the OHLC indicator engine. Each indicator is
// normalized into [0,1]; the technical composite blends the trend, momentum,
// volatility, and pattern sub-scores.

func last(vs []float64) (float64, bool) {
	for i := len(vs) - 1; i >= 0; i-- {
		if !math.IsNaN(vs[i]) {
			return vs[i], true
		}
	}
	return 0, false
}

// rsi14 maps the 14-day RSI onto [0,1]. RSI is already 0-100.
func rsi14(ctx Context) *float64 {
	closes := ctx.closes()
	if len(closes) < 15 {
		return nil
	}
	v, ok := last(talib.Rsi(closes, 14))
	if !ok {
		return nil
	}
	return score(v / 100)
}

// macdSignal scores the MACD histogram relative to price: positive and
// widening histograms score above 0.5.
func macdSignal(ctx Context) *float64 {
	closes := ctx.closes()
	if len(closes) < 35 {
		return nil
	}
	_, _, hist := talib.Macd(closes, 12, 26, 9)
	h, ok := last(hist)
	if !ok {
		return nil
	}
	price := closes[len(closes)-1]
	if price <= 0 {
		return nil
	}
	return score(sigmoid(h/price, 150))
}

// bollingerPosition locates the close inside the 20-day Bollinger band:
// 0 at the lower band, 1 at the upper.
func bollingerPosition(ctx Context) *float64 {
	closes := ctx.closes()
	if len(closes) < 20 {
		return nil
	}
	upper, _, lower := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)
	u, okU := last(upper)
	l, okL := last(lower)
	if !okU || !okL || u <= l {
		return nil
	}
	return score((closes[len(closes)-1] - l) / (u - l))
}

// smaTrend scores the 50/200-day moving average relationship: a golden-cross
// posture with price above both averages scores high.
func smaTrend(ctx Context) *float64 {
	closes := ctx.closes()
	if len(closes) < 200 {
		return nil
	}
	sma50, ok50 := last(talib.Sma(closes, 50))
	sma200, ok200 := last(talib.Sma(closes, 200))
	if !ok50 || !ok200 || sma200 <= 0 {
		return nil
	}
	price := closes[len(closes)-1]

	v := 0.5 * sigmoid(sma50/sma200-1, 15)
	v += 0.25 * sigmoid(price/sma50-1, 15)
	v += 0.25 * sigmoid(price/sma200-1, 15)
	return score(v)
}

// adxTrend converts the 14-day ADX trend strength (0-100, >25 trending) into
// [0,1], signed by short-term direction.
func adxTrend(ctx Context) *float64 {
	closes := ctx.closes()
	highs := ctx.highs()
	lows := ctx.lows()
	if len(closes) < 30 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}
	adx, ok := last(talib.Adx(highs, lows, closes, 14))
	if !ok {
		return nil
	}
	strength := clamp01(adx / 50)

	// Direction from the 20-day return sign.
	dir := momentum20d(ctx)
	if dir == nil {
		return score(0.5)
	}
	// Strong trend pushes the score toward the directional extreme.
	return score(0.5 + (*dir-0.5)*strength*2)
}

// atrVolatility inverts the 14-day ATR as a fraction of price: calm names
// score high, violent ones low.
func atrVolatility(ctx Context) *float64 {
	closes := ctx.closes()
	highs := ctx.highs()
	lows := ctx.lows()
	if len(closes) < 15 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}
	atr, ok := last(talib.Atr(highs, lows, closes, 14))
	if !ok {
		return nil
	}
	price := closes[len(closes)-1]
	if price <= 0 {
		return nil
	}
	// 1% daily range → ~0.78, 4% → ~0.3.
	return score(1 - sigmoid(atr/price-0.02, 60))
}

// obvMomentum scores the 20-day slope of on-balance volume.
func obvMomentum(ctx Context) *float64 {
	closes := ctx.closes()
	volumes := ctx.volumes()
	if len(closes) < 21 || len(volumes) != len(closes) {
		return nil
	}
	obv := talib.Obv(closes, volumes)
	cur, okC := last(obv)
	if !okC {
		return nil
	}
	past := obv[len(obv)-21]
	totalVol := 0.0
	for _, v := range volumes[len(volumes)-20:] {
		totalVol += v
	}
	if totalVol <= 0 {
		return nil
	}
	return score(sigmoid((cur-past)/totalVol, 4))
}

// volumeTrend compares recent volume against the trailing 60-day average:
// expanding volume in an uptrend is constructive.
func volumeTrend(ctx Context) *float64 {
	volumes := ctx.volumes()
	if len(volumes) < 60 {
		return nil
	}
	recent := mean(volumes[len(volumes)-10:])
	baseline := mean(volumes[len(volumes)-60:])
	if baseline <= 0 {
		return nil
	}
	return score(sigmoid(recent/baseline-1, 3))
}

// technicalComposite blends the four technical sub-scores: trend 35%,
// momentum 30%, volatility 15%, pattern/volume 20%, renormalized over
// whichever sub-scores have data.
func technicalComposite(ctx Context) *float64 {
	trend := avgValid(smaTrend(ctx), adxTrend(ctx))
	momentum := avgValid(rsi14(ctx), macdSignal(ctx), momentum20d(ctx))
	volatility := avgValid(atrVolatility(ctx))
	pattern := avgValid(bollingerPosition(ctx), obvMomentum(ctx), volumeTrend(ctx))

	type part struct {
		value  *float64
		weight float64
	}
	parts := []part{
		{trend, 0.35},
		{momentum, 0.30},
		{volatility, 0.15},
		{pattern, 0.20},
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

// avgValid averages the non-nil inputs, nil when none are usable.
func avgValid(vs ...*float64) *float64 {
	parts := collect(vs...)
	if len(parts) == 0 {
		return nil
	}
	v := mean(parts)
	return &v
}
