// Package config loads the engine's YAML configuration: provider registry
// settings, data-type preference chains, cache TTLs, resilience knobs,
// composite weights, and alert thresholds.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

var validate = validator.New()

// ProvidersConfig configures the provider registry and the per-data-type
// preference chains.
type ProvidersConfig struct {
	Providers   map[string]providers.Config `yaml:"providers"`
	Preferences []PreferenceConfig          `yaml:"preferences"`
}

// PreferenceConfig is one data type's ordered provider chain.
type PreferenceConfig struct {
	DataType  providers.DataType `yaml:"data_type" validate:"required"`
	Primary   string             `yaml:"primary" validate:"required"`
	Fallbacks []string           `yaml:"fallbacks"`
}

// LoadProvidersConfig reads and validates providers.yaml.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c ProvidersConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every preference chain only names providers that
// declare support for its data type.
func (c *ProvidersConfig) Validate() error {
	for name, pc := range c.Providers {
		if err := validate.Struct(pc); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	for _, pref := range c.Preferences {
		if err := validate.Struct(pref); err != nil {
			return fmt.Errorf("preference %s: %w", pref.DataType, err)
		}
		chain := append([]string{pref.Primary}, pref.Fallbacks...)
		for _, name := range chain {
			pc, ok := c.Providers[name]
			if !ok {
				return fmt.Errorf("preference %s references unknown provider %s", pref.DataType, name)
			}
			if !pc.Supports(pref.DataType) {
				return fmt.Errorf("provider %s does not support data type %s", name, pref.DataType)
			}
		}
	}
	return nil
}

// CacheConfig configures the durable cache connection and per-data-type TTLs.
type CacheConfig struct {
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	KeyPrefix            string         `yaml:"key_prefix"`
	TTLSeconds           map[string]int `yaml:"ttl_seconds"`
	MaxMemoryEntries     int64          `yaml:"max_memory_entries"`
	SweepIntervalSeconds int            `yaml:"sweep_interval_seconds"`
}

// SweepInterval returns the memory-tier sweep cadence.
func (c *CacheConfig) SweepInterval() time.Duration {
	if c != nil && c.SweepIntervalSeconds > 0 {
		return time.Duration(c.SweepIntervalSeconds) * time.Second
	}
	return time.Minute
}

// Default TTLs per data type, used when ttl_seconds omits an entry.
var defaultTTLs = map[providers.DataType]time.Duration{
	providers.DataTypeStockPrice:   30 * time.Second,
	providers.DataTypeSentiment:    5 * time.Minute,
	providers.DataTypeFundamentals: 4 * time.Hour,
	providers.DataTypeShortData:    4 * time.Hour,
	providers.DataTypeESG:          4 * time.Hour,
	providers.DataTypeMacro:        4 * time.Hour,
	providers.DataTypeHistorical:   24 * time.Hour,
	providers.DataTypeOptionsChain: 5 * time.Minute,
	providers.DataTypeCompanyInfo:  7 * 24 * time.Hour,
}

// FactorTTL is how long memoized factor scores stay valid.
const FactorTTL = 5 * time.Minute

// TTLFor resolves the TTL for a data type, preferring configured overrides.
func (c *CacheConfig) TTLFor(dataType providers.DataType) time.Duration {
	if c != nil {
		if secs, ok := c.TTLSeconds[string(dataType)]; ok && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if ttl, ok := defaultTTLs[dataType]; ok {
		return ttl
	}
	return 5 * time.Minute
}

// LoadCacheConfig reads cache.yaml.
func LoadCacheConfig(path string) (*CacheConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c CacheConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "vfr:"
	}
	if c.MaxMemoryEntries <= 0 {
		c.MaxMemoryEntries = 10000
	}
	return &c, nil
}

// ResilienceConfig configures breaker, retry, and timeout behavior.
type ResilienceConfig struct {
	FailureThreshold uint32                   `yaml:"failure_threshold" validate:"gte=1"`
	Cooldown         time.Duration            `yaml:"cooldown"`
	MaxAttempts      int                      `yaml:"max_attempts" validate:"gte=1,lte=5"`
	BaseBackoff      time.Duration            `yaml:"base_backoff"`
	OpTimeouts       map[string]time.Duration `yaml:"op_timeouts"`
	DefaultTimeout   time.Duration            `yaml:"default_timeout"`
}

// DefaultResilienceConfig sets the per-operation timeout budgets: quick quote
// endpoints get tight budgets, heavy series fetches more.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
		MaxAttempts:      3,
		BaseBackoff:      500 * time.Millisecond,
		DefaultTimeout:   15 * time.Second,
		OpTimeouts: map[string]time.Duration{
			string(providers.DataTypeStockPrice):   10 * time.Second,
			string(providers.DataTypeHistorical):   30 * time.Second,
			string(providers.DataTypeOptionsChain): 30 * time.Second,
		},
	}
}

// TimeoutFor resolves the per-operation timeout budget.
func (c ResilienceConfig) TimeoutFor(op string) time.Duration {
	if d, ok := c.OpTimeouts[op]; ok && d > 0 {
		return d
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return 15 * time.Second
}

// WeightsConfig holds composite group weights, the market-cap tier
// multipliers, and the neutral substitution values.
type WeightsConfig struct {
	Groups struct {
		Technical   float64 `yaml:"technical"`
		Fundamental float64 `yaml:"fundamental"`
		Macro       float64 `yaml:"macro"`
		Sentiment   float64 `yaml:"sentiment"`
		Alternative float64 `yaml:"alternative"`
	} `yaml:"groups"`
	AlternativeSplit struct {
		Options        float64 `yaml:"options"`
		ESG            float64 `yaml:"esg"`
		ShortInterest  float64 `yaml:"short_interest"`
		ExtendedMarket float64 `yaml:"extended_market"`
	} `yaml:"alternative_split"`
	Tiers []TierConfig `yaml:"tiers"`
	Neutral struct {
		Default float64 `yaml:"default"`
		ESG     float64 `yaml:"esg"`
	} `yaml:"neutral"`
	WeightSumTolerance float64 `yaml:"weight_sum_tolerance"`
}

// TierConfig scales technical/fundamental weights by market-cap tier.
type TierConfig struct {
	Name                  string  `yaml:"name"`
	MinMarketCap          float64 `yaml:"min_market_cap"`
	TechnicalMultiplier   float64 `yaml:"technical_multiplier"`
	FundamentalMultiplier float64 `yaml:"fundamental_multiplier"`
}

// DefaultWeightsConfig is the shipped weight allocation. Base group weights
// sum to exactly 1.0 and the alternative split sums to exactly 1.0.
func DefaultWeightsConfig() WeightsConfig {
	var c WeightsConfig
	c.Groups.Technical = 0.30
	c.Groups.Fundamental = 0.30
	c.Groups.Macro = 0.15
	c.Groups.Sentiment = 0.10
	c.Groups.Alternative = 0.15
	c.AlternativeSplit.Options = 0.40
	c.AlternativeSplit.ESG = 0.20
	c.AlternativeSplit.ShortInterest = 0.20
	c.AlternativeSplit.ExtendedMarket = 0.20
	c.Tiers = []TierConfig{
		{Name: "mega_cap", MinMarketCap: 200e9, TechnicalMultiplier: 0.80, FundamentalMultiplier: 1.25},
		{Name: "large_cap", MinMarketCap: 10e9, TechnicalMultiplier: 0.95, FundamentalMultiplier: 1.10},
		{Name: "mid_cap", MinMarketCap: 2e9, TechnicalMultiplier: 1.00, FundamentalMultiplier: 1.00},
		{Name: "small_cap", MinMarketCap: 0, TechnicalMultiplier: 1.25, FundamentalMultiplier: 0.80},
	}
	c.Neutral.Default = 0.5
	c.Neutral.ESG = 0.6
	c.WeightSumTolerance = 1e-6
	return c
}

// LoadWeightsConfig reads weights.yaml, falling back to defaults for any
// zero-valued section, then validates the sum invariants.
func LoadWeightsConfig(path string) (*WeightsConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultWeightsConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate enforces the weight-sum invariants before the config is usable.
func (c *WeightsConfig) Validate() error {
	tol := c.WeightSumTolerance
	if tol <= 0 {
		tol = 1e-6
	}
	groupSum := c.Groups.Technical + c.Groups.Fundamental + c.Groups.Macro +
		c.Groups.Sentiment + c.Groups.Alternative
	if math.Abs(groupSum-1.0) > tol {
		return fmt.Errorf("group weights sum to %.8f, want 1.0", groupSum)
	}
	altSum := c.AlternativeSplit.Options + c.AlternativeSplit.ESG +
		c.AlternativeSplit.ShortInterest + c.AlternativeSplit.ExtendedMarket
	if math.Abs(altSum-1.0) > tol {
		return fmt.Errorf("alternative split sums to %.8f, want 1.0", altSum)
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("at least one market-cap tier is required")
	}
	for i := 1; i < len(c.Tiers); i++ {
		if c.Tiers[i].MinMarketCap >= c.Tiers[i-1].MinMarketCap {
			return fmt.Errorf("tiers must be ordered by descending min_market_cap")
		}
	}
	if c.Neutral.Default < 0 || c.Neutral.Default > 1 || c.Neutral.ESG < 0 || c.Neutral.ESG > 1 {
		return fmt.Errorf("neutral values must be in [0,1]")
	}
	return nil
}

// TierFor returns the tier matching marketCap. Tiers are ordered by
// descending threshold so the first match wins; the last tier catches all.
func (c *WeightsConfig) TierFor(marketCap float64) TierConfig {
	for _, t := range c.Tiers {
		if marketCap >= t.MinMarketCap {
			return t
		}
	}
	return c.Tiers[len(c.Tiers)-1]
}

// AlertsConfig sets the PerformanceMonitor warning/critical thresholds.
type AlertsConfig struct {
	ResponseTimeWarn     time.Duration `yaml:"response_time_warn"`
	ResponseTimeCritical time.Duration `yaml:"response_time_critical"`
	CacheHitRateWarn     float64       `yaml:"cache_hit_rate_warn"`
	CacheHitRateCritical float64       `yaml:"cache_hit_rate_critical"`
	ErrorRateWarn        float64       `yaml:"error_rate_warn"`
	ErrorRateCritical    float64       `yaml:"error_rate_critical"`
}

// DefaultAlertsConfig returns the shipped alert thresholds.
func DefaultAlertsConfig() AlertsConfig {
	return AlertsConfig{
		ResponseTimeWarn:     2 * time.Second,
		ResponseTimeCritical: 10 * time.Second,
		CacheHitRateWarn:     0.50,
		CacheHitRateCritical: 0.20,
		ErrorRateWarn:        0.10,
		ErrorRateCritical:    0.30,
	}
}
