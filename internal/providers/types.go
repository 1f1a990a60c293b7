package providers

import "time"

// DataType identifies a category of market data with its own TTL, provider
// preference chain, and freshness cadence.
type DataType string

const (
	DataTypeStockPrice   DataType = "stock_price"
	DataTypeCompanyInfo  DataType = "company_info"
	DataTypeFundamentals DataType = "fundamentals"
	DataTypeHistorical   DataType = "historical_ohlc"
	DataTypeOptionsChain DataType = "options_chain"
	DataTypeMacro        DataType = "macro_context"
	DataTypeSentiment    DataType = "sentiment"
	DataTypeShortData    DataType = "short_interest"
	DataTypeESG          DataType = "esg"
)

// StockPrice is a point-in-time quote.
type StockPrice struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	MarketCap     float64   `json:"market_cap"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// CompanyInfo holds static reference data for a symbol.
type CompanyInfo struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Sector      string    `json:"sector"`
	Industry    string    `json:"industry"`
	MarketCap   float64   `json:"market_cap"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
}

// Fundamentals aggregates the ratio set consumed by value/quality/growth
// factors. Zero is a legal value for most ratios, so optional fields use
// pointers to distinguish "absent" from "zero".
type Fundamentals struct {
	Symbol          string    `json:"symbol"`
	PERatio         *float64  `json:"pe_ratio,omitempty"`
	PBRatio         *float64  `json:"pb_ratio,omitempty"`
	EVEBITDA        *float64  `json:"ev_ebitda,omitempty"`
	PEGRatio        *float64  `json:"peg_ratio,omitempty"`
	ROE             *float64  `json:"roe,omitempty"`
	DebtToEquity    *float64  `json:"debt_to_equity,omitempty"`
	CurrentRatio    *float64  `json:"current_ratio,omitempty"`
	OperatingMargin *float64  `json:"operating_margin,omitempty"`
	NetMargin       *float64  `json:"net_margin,omitempty"`
	RevenueGrowth   *float64  `json:"revenue_growth,omitempty"`
	EarningsGrowth  *float64  `json:"earnings_growth,omitempty"`
	FCFGrowth       *float64  `json:"fcf_growth,omitempty"`
	Sector          string    `json:"sector"`
	Source          string    `json:"source"`
	Timestamp       time.Time `json:"timestamp"`
}

// OHLCBar is a single bar of a historical series.
type OHLCBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// HistoricalSeries is an ordered (oldest first) OHLC history.
type HistoricalSeries struct {
	Symbol    string    `json:"symbol"`
	Bars      []OHLCBar `json:"bars"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// OptionsContract is one leg of an options chain.
type OptionsContract struct {
	Strike       float64   `json:"strike"`
	Expiry       time.Time `json:"expiry"`
	Type         string    `json:"type"` // "call" or "put"
	Volume       int64     `json:"volume"`
	OpenInterest int64     `json:"open_interest"`
	ImpliedVol   float64   `json:"implied_vol"`
	Delta        float64   `json:"delta"`
	Gamma        float64   `json:"gamma"`
}

// OptionsChain holds the contracts for a symbol as of a snapshot time.
type OptionsChain struct {
	Symbol    string            `json:"symbol"`
	AsOf      time.Time         `json:"as_of"`
	Spot      float64           `json:"spot"`
	Contracts []OptionsContract `json:"contracts"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
}

// MacroContext is the macroeconomic backdrop from statistical APIs.
type MacroContext struct {
	GDPGrowth        *float64  `json:"gdp_growth,omitempty"`
	InflationRate    *float64  `json:"inflation_rate,omitempty"`
	UnemploymentRate *float64  `json:"unemployment_rate,omitempty"`
	FedFundsRate     *float64  `json:"fed_funds_rate,omitempty"`
	YieldCurve10Y2Y  *float64  `json:"yield_curve_10y_2y,omitempty"`
	Source           string    `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
}

// SentimentData carries news/social sentiment in [-1,1].
type SentimentData struct {
	Symbol          string    `json:"symbol"`
	NewsSentiment   *float64  `json:"news_sentiment,omitempty"`
	SocialSentiment *float64  `json:"social_sentiment,omitempty"`
	ArticleCount    int       `json:"article_count"`
	Source          string    `json:"source"`
	Timestamp       time.Time `json:"timestamp"`
}

// ShortInterestData covers the short-side positioning for a symbol.
type ShortInterestData struct {
	Symbol            string    `json:"symbol"`
	ShortPercentFloat *float64  `json:"short_percent_float,omitempty"`
	DaysToCover       *float64  `json:"days_to_cover,omitempty"`
	ShortRatioChange  *float64  `json:"short_ratio_change,omitempty"`
	Source            string    `json:"source"`
	Timestamp         time.Time `json:"timestamp"`
}

// ESGData is a vendor-reported environmental/social/governance rating set.
type ESGData struct {
	Symbol        string    `json:"symbol"`
	Environmental *float64  `json:"environmental,omitempty"`
	Social        *float64  `json:"social,omitempty"`
	Governance    *float64  `json:"governance,omitempty"`
	Total         *float64  `json:"total,omitempty"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}
