package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultWeightsConfigIsValid(t *testing.T) {
	cfg := DefaultWeightsConfig()
	assert.NoError(t, cfg.Validate())
}

func TestWeightsValidateRejectsBadSums(t *testing.T) {
	cfg := DefaultWeightsConfig()
	cfg.Groups.Technical = 0.50
	assert.Error(t, cfg.Validate())

	cfg = DefaultWeightsConfig()
	cfg.AlternativeSplit.Options = 0.50
	assert.Error(t, cfg.Validate())

	cfg = DefaultWeightsConfig()
	cfg.Tiers[0].MinMarketCap = 1 // no longer descending
	assert.Error(t, cfg.Validate())

	cfg = DefaultWeightsConfig()
	cfg.Neutral.ESG = 1.4
	assert.Error(t, cfg.Validate())
}

func TestTTLForPrefersOverrides(t *testing.T) {
	cfg := &CacheConfig{TTLSeconds: map[string]int{"stock_price": 10}}

	assert.Equal(t, 10*time.Second, cfg.TTLFor(providers.DataTypeStockPrice))
	assert.Equal(t, 4*time.Hour, cfg.TTLFor(providers.DataTypeFundamentals))
	assert.Equal(t, 7*24*time.Hour, cfg.TTLFor(providers.DataTypeCompanyInfo))

	var nilCfg *CacheConfig
	assert.Equal(t, 30*time.Second, nilCfg.TTLFor(providers.DataTypeStockPrice))
}

func TestTimeoutForFallsBackToDefault(t *testing.T) {
	cfg := DefaultResilienceConfig()

	assert.Equal(t, 10*time.Second, cfg.TimeoutFor("stock_price"))
	assert.Equal(t, 30*time.Second, cfg.TimeoutFor("historical_ohlc"))
	assert.Equal(t, 15*time.Second, cfg.TimeoutFor("sentiment"))
}

func TestLoadProvidersConfigRejectsUnsupportedChain(t *testing.T) {
	path := writeTemp(t, "providers.yaml", `
providers:
  alpha:
    enabled: true
    reliability: 0.9
    supported_data_types: [stock_price]
preferences:
  - data_type: esg
    primary: alpha
`)
	_, err := LoadProvidersConfig(path)
	assert.Error(t, err, "chain provider must declare support for the data type")
}

func TestLoadProvidersConfigRejectsUnknownProvider(t *testing.T) {
	path := writeTemp(t, "providers.yaml", `
providers:
  alpha:
    enabled: true
    reliability: 0.9
    supported_data_types: [stock_price]
preferences:
  - data_type: stock_price
    primary: ghost
`)
	_, err := LoadProvidersConfig(path)
	assert.Error(t, err)
}

func TestLoadShippedConfigs(t *testing.T) {
	provCfg, err := LoadProvidersConfig("../../config/providers.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, provCfg.Providers)
	assert.NotEmpty(t, provCfg.Preferences)

	weights, err := LoadWeightsConfig("../../config/weights.yaml")
	require.NoError(t, err)
	assert.NoError(t, weights.Validate())
	assert.Equal(t, "mega_cap", weights.TierFor(300e9).Name)

	cacheCfg, err := LoadCacheConfig("../../config/cache.yaml")
	require.NoError(t, err)
	assert.Equal(t, "vfr:", cacheCfg.KeyPrefix)
	assert.Equal(t, time.Minute, cacheCfg.SweepInterval())
}

func TestLoadWeightsConfigPartialOverride(t *testing.T) {
	// Overriding only the neutral section keeps the default weights intact.
	path := writeTemp(t, "weights.yaml", `
neutral:
  default: 0.5
  esg: 0.55
`)
	cfg, err := LoadWeightsConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.55, cfg.Neutral.ESG)
	assert.Equal(t, 0.30, cfg.Groups.Technical)
}
