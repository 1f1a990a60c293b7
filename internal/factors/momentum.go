package factors

// Momentum factors: trailing price return over N trading-day windows mapped
// through a sigmoid so a flat market scores 0.5, strong rallies approach 1,
// and selloffs approach 0. Steepness is tuned so a ±20% move over the window
// lands near the 0.88/0.12 marks.

func momentumWindow(ctx Context, window int) *float64 {
	closes := ctx.closes()
	if len(closes) < window+1 {
		return nil
	}
	latest := closes[len(closes)-1]
	past := closes[len(closes)-1-window]
	if past <= 0 {
		return nil
	}
	ret := latest/past - 1
	return score(sigmoid(ret, 10))
}

func momentum5d(ctx Context) *float64   { return momentumWindow(ctx, 5) }
func momentum20d(ctx Context) *float64  { return momentumWindow(ctx, 20) }
func momentum60d(ctx Context) *float64  { return momentumWindow(ctx, 60) }
func momentum120d(ctx Context) *float64 { return momentumWindow(ctx, 120) }
func momentum250d(ctx Context) *float64 { return momentumWindow(ctx, 250) }

// meanReversion scores deviation from the N-day moving average through an
// inverted sigmoid: stretched-above prices score low (due for a pullback),
// stretched-below score high.
func meanReversion(ctx Context, window int) *float64 {
	closes := ctx.closes()
	if len(closes) < window {
		return nil
	}
	ma := mean(closes[len(closes)-window:])
	if ma <= 0 {
		return nil
	}
	deviation := closes[len(closes)-1]/ma - 1
	return score(1 - sigmoid(deviation, 12))
}

func meanReversion20d(ctx Context) *float64 { return meanReversion(ctx, 20) }
func meanReversion50d(ctx Context) *float64 { return meanReversion(ctx, 50) }
