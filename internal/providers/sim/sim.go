// Package sim is a deterministic offline provider. It synthesizes plausible
// payloads from a symbol-seeded generator so the CLI and integration tests can
// exercise the full aggregation path without vendor credentials. Values are
// stable for a given symbol within a process run.
package sim

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

// Provider implements providers.Provider with synthesized data.
type Provider struct {
	name string
	now  func() time.Time
}

// New returns a simulated provider under the given registry name.
func New(name string) *Provider {
	return &Provider{name: name, now: time.Now}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) HealthCheck(ctx context.Context) error { return nil }

// rng returns a generator seeded from the symbol so repeated calls agree.
func (p *Provider) rng(symbol string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(p.name))
	h.Write([]byte(symbol))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (p *Provider) basePrice(symbol string) float64 {
	r := p.rng(symbol)
	return 20 + r.Float64()*480
}

func ptr(v float64) *float64 { return &v }

var sectors = []string{
	"Technology", "Healthcare", "Financials", "Energy", "Industrials",
	"Consumer Discretionary", "Consumer Staples", "Utilities",
	"Materials", "Real Estate", "Communication Services",
}

func (p *Provider) sector(symbol string) string {
	r := p.rng(symbol + ":sector")
	return sectors[r.Intn(len(sectors))]
}

func (p *Provider) GetStockPrice(ctx context.Context, symbol string) (*providers.StockPrice, error) {
	r := p.rng(symbol)
	price := p.basePrice(symbol)
	change := (r.Float64() - 0.5) * price * 0.04
	shares := 1e8 + r.Float64()*9e9
	return &providers.StockPrice{
		Symbol:        symbol,
		Price:         price + change,
		Change:        change,
		ChangePercent: change / price * 100,
		Volume:        int64(1e6 + r.Float64()*5e7),
		MarketCap:     price * shares,
		Source:        p.name,
		Timestamp:     p.now(),
	}, nil
}

func (p *Provider) GetCompanyInfo(ctx context.Context, symbol string) (*providers.CompanyInfo, error) {
	r := p.rng(symbol)
	shares := 1e8 + r.Float64()*9e9
	return &providers.CompanyInfo{
		Symbol:    symbol,
		Name:      symbol + " Corp",
		Sector:    p.sector(symbol),
		Industry:  "Diversified",
		MarketCap: p.basePrice(symbol) * shares,
		Source:    p.name,
		Timestamp: p.now(),
	}, nil
}

func (p *Provider) GetFundamentals(ctx context.Context, symbol string) (*providers.Fundamentals, error) {
	r := p.rng(symbol)
	f := func(lo, hi float64) *float64 {
		return ptr(lo + r.Float64()*(hi-lo))
	}
	return &providers.Fundamentals{
		Symbol:          symbol,
		PERatio:         f(8, 45),
		PBRatio:         f(0.8, 12),
		EVEBITDA:        f(5, 30),
		PEGRatio:        f(0.5, 3.5),
		ROE:             f(-0.05, 0.40),
		DebtToEquity:    f(0.1, 2.5),
		CurrentRatio:    f(0.7, 3.0),
		OperatingMargin: f(0.02, 0.35),
		NetMargin:       f(0.01, 0.28),
		RevenueGrowth:   f(-0.10, 0.40),
		EarningsGrowth:  f(-0.20, 0.50),
		FCFGrowth:       f(-0.15, 0.45),
		Sector:          p.sector(symbol),
		Source:          p.name,
		Timestamp:       p.now(),
	}, nil
}

func (p *Provider) GetHistoricalOHLC(ctx context.Context, symbol string, periods int) (*providers.HistoricalSeries, error) {
	r := p.rng(symbol)
	price := p.basePrice(symbol)
	drift := (r.Float64() - 0.45) * 0.001
	vol := 0.01 + r.Float64()*0.02

	bars := make([]providers.OHLCBar, periods)
	day := p.now().AddDate(0, 0, -periods)
	for i := range bars {
		ret := drift + r.NormFloat64()*vol
		next := price * math.Exp(ret)
		high := math.Max(price, next) * (1 + r.Float64()*0.01)
		low := math.Min(price, next) * (1 - r.Float64()*0.01)
		bars[i] = providers.OHLCBar{
			Date:   day,
			Open:   price,
			High:   high,
			Low:    low,
			Close:  next,
			Volume: 1e6 + r.Float64()*4e7,
		}
		price = next
		day = day.AddDate(0, 0, 1)
	}
	return &providers.HistoricalSeries{
		Symbol:    symbol,
		Bars:      bars,
		Source:    p.name,
		Timestamp: p.now(),
	}, nil
}

func (p *Provider) GetOptionsChain(ctx context.Context, symbol string, asOf time.Time) (*providers.OptionsChain, error) {
	r := p.rng(symbol)
	spot := p.basePrice(symbol)
	expiry := asOf.AddDate(0, 1, 0)

	var contracts []providers.OptionsContract
	for i := -5; i <= 5; i++ {
		strike := math.Round(spot * (1 + float64(i)*0.05))
		for _, typ := range []string{"call", "put"} {
			delta := 0.5 - float64(i)*0.08
			if typ == "put" {
				delta = delta - 1
			}
			contracts = append(contracts, providers.OptionsContract{
				Strike:       strike,
				Expiry:       expiry,
				Type:         typ,
				Volume:       int64(r.Intn(5000)),
				OpenInterest: int64(500 + r.Intn(20000)),
				ImpliedVol:   0.18 + r.Float64()*0.4 + math.Abs(float64(i))*0.01,
				Delta:        delta,
				Gamma:        0.01 + r.Float64()*0.05,
			})
		}
	}
	return &providers.OptionsChain{
		Symbol:    symbol,
		AsOf:      asOf,
		Spot:      spot,
		Contracts: contracts,
		Source:    p.name,
		Timestamp: p.now(),
	}, nil
}

func (p *Provider) GetMacroContext(ctx context.Context) (*providers.MacroContext, error) {
	r := p.rng("macro")
	return &providers.MacroContext{
		GDPGrowth:        ptr(1.5 + r.Float64()*2),
		InflationRate:    ptr(2 + r.Float64()*3),
		UnemploymentRate: ptr(3.5 + r.Float64()*2),
		FedFundsRate:     ptr(4 + r.Float64()*1.5),
		YieldCurve10Y2Y:  ptr(-0.5 + r.Float64()*1.5),
		Source:           p.name,
		Timestamp:        p.now(),
	}, nil
}

func (p *Provider) GetSentiment(ctx context.Context, symbol string) (*providers.SentimentData, error) {
	r := p.rng(symbol)
	return &providers.SentimentData{
		Symbol:          symbol,
		NewsSentiment:   ptr(-0.6 + r.Float64()*1.2),
		SocialSentiment: ptr(-0.6 + r.Float64()*1.2),
		ArticleCount:    5 + r.Intn(200),
		Source:          p.name,
		Timestamp:       p.now(),
	}, nil
}

func (p *Provider) GetShortInterest(ctx context.Context, symbol string) (*providers.ShortInterestData, error) {
	r := p.rng(symbol)
	return &providers.ShortInterestData{
		Symbol:            symbol,
		ShortPercentFloat: ptr(r.Float64() * 0.25),
		DaysToCover:       ptr(0.5 + r.Float64()*9.5),
		ShortRatioChange:  ptr(-0.05 + r.Float64()*0.1),
		Source:            p.name,
		Timestamp:         p.now(),
	}, nil
}

func (p *Provider) GetESG(ctx context.Context, symbol string) (*providers.ESGData, error) {
	r := p.rng(symbol)
	return &providers.ESGData{
		Symbol:        symbol,
		Environmental: ptr(20 + r.Float64()*75),
		Social:        ptr(20 + r.Float64()*75),
		Governance:    ptr(20 + r.Float64()*75),
		Total:         ptr(20 + r.Float64()*75),
		Source:        p.name,
		Timestamp:     p.now(),
	}, nil
}
