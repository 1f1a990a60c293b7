package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mlocke/vfr-api-sub009/internal/cache"
	"github.com/mlocke/vfr-api-sub009/internal/config"
	"github.com/mlocke/vfr-api-sub009/internal/engine"
	"github.com/mlocke/vfr-api-sub009/internal/factors"
	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

const (
	appName = "vfr"
	version = "v1.2.0"
)

var (
	flagConfigDir string
	flagVerbose   bool
	flagWatch     bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-source composite scoring engine for equities",
		Version: version,
		Long: `vfr aggregates market, fundamental, technical, and alternative data from
redundant third-party providers and produces a bounded composite score per
symbol. Provider failures degrade to fallbacks and neutral substitution;
they never crash a scoring request.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config", "config", "configuration directory")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	scoreCmd := &cobra.Command{
		Use:   "score <symbol>",
		Short: "Compute the composite score for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  runScore,
	}
	scoreCmd.Flags().BoolVar(&flagWatch, "watch", false, "rescore every minute with background maintenance running")

	factorCmd := &cobra.Command{
		Use:   "factor <name> <symbol>",
		Short: "Compute a single factor for a symbol",
		Long:  "Compute one registered factor. Use 'vfr factor list' to enumerate names.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runFactor,
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Show provider availability and breaker states",
		RunE:  runProviders,
	}

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache operations",
	}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache statistics",
			RunE:  runCacheStats,
		},
		&cobra.Command{
			Use:   "clear [symbol]",
			Short: "Clear cached entries, optionally scoped to a symbol",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runCacheClear,
		},
	)

	rootCmd.AddCommand(scoreCmd, factorCmd, providersCmd, cacheCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// buildEngine wires the engine from the config directory. Missing config
// files fall back to shipped defaults so local use works out of the box.
func buildEngine() (*engine.Engine, error) {
	cacheCfg, err := config.LoadCacheConfig(flagConfigDir + "/cache.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("cache config missing, using memory-only defaults")
		cacheCfg = &config.CacheConfig{KeyPrefix: "vfr:", MaxMemoryEntries: 10000}
	}

	weightsCfg, err := config.LoadWeightsConfig(flagConfigDir + "/weights.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("weights config missing, using defaults")
		w := config.DefaultWeightsConfig()
		weightsCfg = &w
	}

	var store *cache.Store
	if cacheCfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cacheCfg.Redis.Addr, cacheCfg.Redis.Password, cacheCfg.Redis.DB)
		store = cache.NewStore(client, cacheCfg.KeyPrefix, cache.WithMaxMemoryEntries(cacheCfg.MaxMemoryEntries))
	} else {
		store = cache.NewStore(nil, cacheCfg.KeyPrefix, cache.WithMaxMemoryEntries(cacheCfg.MaxMemoryEntries))
	}

	eng := engine.New(engine.Options{
		Cache:      cacheCfg,
		Resilience: config.DefaultResilienceConfig(),
		Weights:    weightsCfg,
		Alerts:     config.DefaultAlertsConfig(),
		Store:      store,
		Metrics:    prometheus.DefaultRegisterer,
	})

	provCfg, err := config.LoadProvidersConfig(flagConfigDir + "/providers.yaml")
	if err != nil {
		return nil, fmt.Errorf("load providers config: %w", err)
	}
	if err := registerProviders(eng, provCfg); err != nil {
		return nil, err
	}
	return eng, nil
}

// registerProviders installs configured adapters and preference chains.
// Adapter constructors for live vendors are registered by the API service
// that embeds this engine; the CLI registers whatever the build links in.
func registerProviders(eng *engine.Engine, cfg *config.ProvidersConfig) error {
	for name, pc := range cfg.Providers {
		adapter, ok := newAdapter(name)
		if !ok {
			log.Warn().Str("provider", name).Msg("no adapter linked for provider, skipping")
			continue
		}
		eng.RegisterProvider(adapter, pc)
	}
	for _, pref := range cfg.Preferences {
		if err := eng.SetDataSourcePreference(pref.DataType, pref.Primary, pref.Fallbacks); err != nil {
			return fmt.Errorf("preference %s: %w", pref.DataType, err)
		}
	}
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	scoreOnce := func() error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()
		result, err := eng.CalculateComposite(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	if !flagWatch {
		return scoreOnce()
	}

	if err := eng.StartScheduler(); err != nil {
		return err
	}
	defer eng.StopScheduler()

	if err := scoreOnce(); err != nil {
		return err
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			return nil
		case <-ticker.C:
			if err := scoreOnce(); err != nil {
				log.Error().Err(err).Msg("rescore failed")
			}
		}
	}
}

func runFactor(cmd *cobra.Command, args []string) error {
	if args[0] == "list" {
		for _, name := range factors.Names() {
			fmt.Println(name)
		}
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: %s factor <name> <symbol>", appName)
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	result, err := eng.CalculateFactor(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runProviders(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	out := struct {
		Providers map[string]providers.Status `json:"providers"`
		Breakers  map[string]string           `json:"breakers"`
	}{
		Providers: eng.GetProviderStatus(),
		Breakers:  eng.BreakerStates(),
	}
	return printJSON(out)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	return printJSON(eng.GetCacheStats())
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	symbol := ""
	if len(args) == 1 {
		symbol = args[0]
	}
	removed := eng.ClearCache(cmd.Context(), symbol)
	fmt.Printf("cleared %d entries\n", removed)
	return nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
