package datasource

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

// decodePayload deserializes cached bytes into the typed payload for a data
// type. An unknown data type here is a programming error.
func decodePayload(dataType providers.DataType, raw []byte) (any, error) {
	var target any
	switch dataType {
	case providers.DataTypeStockPrice:
		target = &providers.StockPrice{}
	case providers.DataTypeCompanyInfo:
		target = &providers.CompanyInfo{}
	case providers.DataTypeFundamentals:
		target = &providers.Fundamentals{}
	case providers.DataTypeHistorical:
		target = &providers.HistoricalSeries{}
	case providers.DataTypeOptionsChain:
		target = &providers.OptionsChain{}
	case providers.DataTypeMacro:
		target = &providers.MacroContext{}
	case providers.DataTypeSentiment:
		target = &providers.SentimentData{}
	case providers.DataTypeShortData:
		target = &providers.ShortInterestData{}
	case providers.DataTypeESG:
		target = &providers.ESGData{}
	default:
		return nil, fmt.Errorf("decode: unknown data type %s", dataType)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", dataType, err)
	}
	return target, nil
}

// validatePayload rejects structurally valid but semantically unusable
// payloads. A failed check is a DataQuality error, which the chain treats as
// a miss and moves to the next candidate.
func validatePayload(provider string, dataType providers.DataType, payload any) error {
	bad := func(format string, args ...any) error {
		return providers.NewError(providers.KindDataQuality, provider, string(dataType),
			fmt.Errorf(format, args...))
	}

	switch v := payload.(type) {
	case *providers.StockPrice:
		if v == nil {
			return bad("nil price payload")
		}
		if math.IsNaN(v.Price) || math.IsInf(v.Price, 0) || v.Price <= 0 {
			return bad("unusable price %v for %s", v.Price, v.Symbol)
		}
	case *providers.CompanyInfo:
		if v == nil || v.Symbol == "" {
			return bad("empty company info")
		}
	case *providers.Fundamentals:
		if v == nil {
			return bad("nil fundamentals payload")
		}
	case *providers.HistoricalSeries:
		if v == nil || len(v.Bars) == 0 {
			return bad("empty historical series")
		}
		for _, bar := range v.Bars {
			if math.IsNaN(bar.Close) || bar.Close <= 0 {
				return bad("unusable close %v in series", bar.Close)
			}
		}
	case *providers.OptionsChain:
		if v == nil || len(v.Contracts) == 0 {
			return bad("empty options chain")
		}
	case *providers.MacroContext:
		if v == nil {
			return bad("nil macro payload")
		}
	case *providers.SentimentData:
		if v == nil {
			return bad("nil sentiment payload")
		}
	case *providers.ShortInterestData:
		if v == nil {
			return bad("nil short interest payload")
		}
	case *providers.ESGData:
		if v == nil {
			return bad("nil esg payload")
		}
	}
	return nil
}
