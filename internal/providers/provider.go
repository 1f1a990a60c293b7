// Package providers defines the uniform adapter contract every third-party
// data source implements, plus the registry tracking operator-facing provider
// configuration and health.
package providers

import (
	"context"
	"time"
)

// Provider is the uniform capability each external data source adapts to.
// Every method returns either a typed payload or a classified *Error; adapters
// never panic and never return partial structs on failure.
type Provider interface {
	Name() string
	GetStockPrice(ctx context.Context, symbol string) (*StockPrice, error)
	GetCompanyInfo(ctx context.Context, symbol string) (*CompanyInfo, error)
	GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
	GetHistoricalOHLC(ctx context.Context, symbol string, periods int) (*HistoricalSeries, error)
	GetOptionsChain(ctx context.Context, symbol string, asOf time.Time) (*OptionsChain, error)
	GetMacroContext(ctx context.Context) (*MacroContext, error)
	GetSentiment(ctx context.Context, symbol string) (*SentimentData, error)
	GetShortInterest(ctx context.Context, symbol string) (*ShortInterestData, error)
	GetESG(ctx context.Context, symbol string) (*ESGData, error)
	HealthCheck(ctx context.Context) error
}

// OptionsAnalysis summarizes a chain snapshot into the aggregates most
// consumers want without walking contracts themselves.
type OptionsAnalysis struct {
	Symbol        string    `json:"symbol"`
	PutCallVolume float64   `json:"put_call_volume_ratio"`
	TotalOI       int64     `json:"total_open_interest"`
	MeanIV        float64   `json:"mean_implied_vol"`
	Contracts     int       `json:"contracts"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// GetOptionsAnalysis is the convenience over GetOptionsChain: one fetch, one
// derived summary. A chain with no call volume reports a zero ratio.
func GetOptionsAnalysis(ctx context.Context, p Provider, symbol string) (*OptionsAnalysis, error) {
	chain, err := p.GetOptionsChain(ctx, symbol, time.Now())
	if err != nil {
		return nil, err
	}

	var putVol, callVol, totalOI int64
	ivSum, ivN := 0.0, 0
	for _, c := range chain.Contracts {
		switch c.Type {
		case "put":
			putVol += c.Volume
		case "call":
			callVol += c.Volume
		}
		totalOI += c.OpenInterest
		if c.ImpliedVol > 0 {
			ivSum += c.ImpliedVol
			ivN++
		}
	}

	out := &OptionsAnalysis{
		Symbol:    chain.Symbol,
		TotalOI:   totalOI,
		Contracts: len(chain.Contracts),
		Source:    chain.Source,
		Timestamp: chain.Timestamp,
	}
	if callVol > 0 {
		out.PutCallVolume = float64(putVol) / float64(callVol)
	}
	if ivN > 0 {
		out.MeanIV = ivSum / float64(ivN)
	}
	return out, nil
}

// Fetch dispatches a data-type request to the matching Provider method and
// returns the payload as an untyped value. Consumers type-assert against the
// concrete payload structs; an unknown data type is a validation error, not a
// transient one.
func Fetch(ctx context.Context, p Provider, dataType DataType, symbol string) (any, error) {
	switch dataType {
	case DataTypeStockPrice:
		return p.GetStockPrice(ctx, symbol)
	case DataTypeCompanyInfo:
		return p.GetCompanyInfo(ctx, symbol)
	case DataTypeFundamentals:
		return p.GetFundamentals(ctx, symbol)
	case DataTypeHistorical:
		return p.GetHistoricalOHLC(ctx, symbol, 250)
	case DataTypeOptionsChain:
		return p.GetOptionsChain(ctx, symbol, time.Now())
	case DataTypeMacro:
		return p.GetMacroContext(ctx)
	case DataTypeSentiment:
		return p.GetSentiment(ctx, symbol)
	case DataTypeShortData:
		return p.GetShortInterest(ctx, symbol)
	case DataTypeESG:
		return p.GetESG(ctx, symbol)
	default:
		return nil, NewError(KindValidation, p.Name(), string(dataType), nil)
	}
}
