// Package engine is the library-level facade over the scoring core: it fans
// out to providers through the datasource manager, builds the factor context,
// and exposes the operations the API layer consumes.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/mlocke/vfr-api-sub009/internal/cache"
	"github.com/mlocke/vfr-api-sub009/internal/config"
	"github.com/mlocke/vfr-api-sub009/internal/datasource"
	"github.com/mlocke/vfr-api-sub009/internal/factors"
	"github.com/mlocke/vfr-api-sub009/internal/providers"
	"github.com/mlocke/vfr-api-sub009/internal/quality"
	"github.com/mlocke/vfr-api-sub009/internal/resilience"
	"github.com/mlocke/vfr-api-sub009/internal/telemetry"
)

// ErrInsufficientData is returned when no provider could supply any payload
// for a symbol. It is the explicit "no data" signal; partial data never
// produces it.
var ErrInsufficientData = errors.New("insufficient data: no provider returned any payload")

// aggregateTypes is the payload set fanned out per composite request.
var aggregateTypes = []providers.DataType{
	providers.DataTypeStockPrice,
	providers.DataTypeCompanyInfo,
	providers.DataTypeFundamentals,
	providers.DataTypeHistorical,
	providers.DataTypeOptionsChain,
	providers.DataTypeMacro,
	providers.DataTypeSentiment,
	providers.DataTypeShortData,
	providers.DataTypeESG,
}

// Engine wires the registry, resilience policy, datasource manager, cache,
// factor library, and observers into the exposed scoring API.
type Engine struct {
	registry *providers.Registry
	policy   *resilience.Policy
	manager  *datasource.Manager
	store    *cache.Store
	library  *factors.Library
	scorer   *factors.Scorer
	quality  *quality.Scorer
	monitor  *telemetry.Monitor

	cron *cron.Cron
}

// Options configures engine construction.
type Options struct {
	Cache      *config.CacheConfig
	Resilience config.ResilienceConfig
	Weights    *config.WeightsConfig
	Alerts     config.AlertsConfig
	// RedisClient may be nil for memory-only caching.
	Store *cache.Store
	// Registerer for prometheus metrics; nil skips registration.
	Metrics prometheus.Registerer
}

// New constructs a fully wired engine. Providers are registered afterward
// via RegisterProvider; preferences via SetDataSourcePreference.
func New(opts Options) *Engine {
	if opts.Cache == nil {
		opts.Cache = &config.CacheConfig{}
	}
	if opts.Weights == nil {
		w := config.DefaultWeightsConfig()
		opts.Weights = &w
	}
	store := opts.Store
	if store == nil {
		store = cache.NewStore(nil, "")
	}

	registry := providers.NewRegistry()
	policy := resilience.NewPolicy(opts.Resilience)
	library := factors.NewLibrary(store)
	monitor := telemetry.NewMonitor(opts.Alerts, opts.Metrics)

	return &Engine{
		registry: registry,
		policy:   policy,
		manager:  datasource.NewManager(registry, policy, store, opts.Cache),
		store:    store,
		library:  library,
		scorer:   factors.NewScorer(opts.Weights, library),
		quality:  quality.NewScorer(registry),
		monitor:  monitor,
	}
}

// RegisterProvider adds a provider with its config and installs its rate
// limit in the resilience policy.
func (e *Engine) RegisterProvider(p providers.Provider, cfg providers.Config) {
	e.registry.Register(p, cfg)
	e.policy.SetRateLimit(p.Name(), cfg.RateLimitPerSecond)
}

// SetDataSourcePreference installs the ordered provider chain for a data type.
func (e *Engine) SetDataSourcePreference(dataType providers.DataType, primary string, fallbacks []string) error {
	return e.manager.SetPreference(dataType, primary, fallbacks)
}

// GetProviderStatus returns the latest availability snapshot per provider.
func (e *Engine) GetProviderStatus() map[string]providers.Status {
	return e.registry.StatusSnapshot()
}

// BreakerStates exposes circuit breaker states per provider:operation.
func (e *Engine) BreakerStates() map[string]string {
	return e.policy.BreakerStates()
}

// ClearCache invalidates cached entries. An empty symbol clears everything.
func (e *Engine) ClearCache(ctx context.Context, symbol string) int {
	if symbol == "" {
		return e.store.Clear(ctx, "")
	}
	n := e.store.Clear(ctx, "data:"+symbol+":")
	n += e.store.Clear(ctx, "factor:"+symbol+":")
	return n
}

// GetCacheStats returns the cache counters and pushes the hit rate to the
// monitor.
func (e *Engine) GetCacheStats() cache.Stats {
	stats := e.store.Stats()
	e.monitor.RecordCacheHitRate(stats.HitRate, stats.Hits+stats.Misses)
	return stats
}

// gathered is the result of one aggregation fan-out. spotSamples collects
// each feed's view of the current price (quote, options chain spot) so the
// quality scorer can cross-check source agreement without extra fetches.
type gathered struct {
	fctx        factors.Context
	sources     map[providers.DataType]string
	timestamps  map[providers.DataType]time.Time
	spotSamples []float64
	resolved    int
}

// gather fans out to every data type concurrently and waits for the full
// set. Individual failures leave their payload nil; one slow provider holds
// only its own slot, since each call carries an independent timeout.
func (e *Engine) gather(ctx context.Context, symbol string) gathered {
	g := gathered{
		fctx:       factors.Context{Symbol: symbol, AsOf: time.Now()},
		sources:    make(map[providers.DataType]string),
		timestamps: make(map[providers.DataType]time.Time),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, dataType := range aggregateTypes {
		wg.Add(1)
		go func(dataType providers.DataType) {
			defer wg.Done()
			payload, err := e.manager.Resolve(ctx, dataType, symbol)
			if err != nil {
				log.Error().Str("data_type", string(dataType)).Err(err).Msg("resolve failed")
				return
			}
			if payload == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			g.resolved++
			g.apply(dataType, payload)
		}(dataType)
	}
	wg.Wait()
	return g
}

// apply routes a resolved payload into the factor context and records its
// source attribution. Caller holds the lock.
func (g *gathered) apply(dataType providers.DataType, payload any) {
	switch v := payload.(type) {
	case *providers.StockPrice:
		g.fctx.Price = v
		g.spotSamples = append(g.spotSamples, v.Price)
		g.note(dataType, v.Source, v.Timestamp)
	case *providers.CompanyInfo:
		g.fctx.Company = v
		g.note(dataType, v.Source, v.Timestamp)
	case *providers.Fundamentals:
		g.fctx.Fundamentals = v
		g.note(dataType, v.Source, v.Timestamp)
	case *providers.HistoricalSeries:
		g.fctx.History = v
		g.note(dataType, v.Source, v.Timestamp)
	case *providers.OptionsChain:
		g.fctx.Options = v
		if v.Spot > 0 {
			g.spotSamples = append(g.spotSamples, v.Spot)
		}
		g.note(dataType, v.Source, v.Timestamp)
	case *providers.MacroContext:
		g.fctx.Macro = v
		g.note(dataType, v.Source, v.Timestamp)
	case *providers.SentimentData:
		g.fctx.Sentiment = v
		g.note(dataType, v.Source, v.Timestamp)
	case *providers.ShortInterestData:
		g.fctx.ShortInterest = v
		g.note(dataType, v.Source, v.Timestamp)
	case *providers.ESGData:
		g.fctx.ESG = v
		g.note(dataType, v.Source, v.Timestamp)
	}
}

func (g *gathered) note(dataType providers.DataType, source string, ts time.Time) {
	g.sources[dataType] = source
	g.timestamps[dataType] = ts
}

// CompositeResult pairs the score with its quality annotation.
type CompositeResult struct {
	Score   *factors.CompositeScore `json:"score"`
	Quality quality.Metrics         `json:"quality"`
}

// CalculateComposite computes the bounded composite score for a symbol.
// Partial data degrades to neutral substitution, visible through the
// contributing-factors list; zero data returns ErrInsufficientData.
func (e *Engine) CalculateComposite(ctx context.Context, symbol string) (*CompositeResult, error) {
	started := time.Now()
	requestID := uuid.NewString()
	logger := log.With().Str("request_id", requestID).Str("symbol", symbol).Logger()

	g := e.gather(ctx, symbol)
	if g.resolved == 0 {
		e.monitor.RecordOperation("calculate_composite", time.Since(started), ErrInsufficientData)
		logger.Warn().Msg("no data available for symbol")
		return nil, ErrInsufficientData
	}

	score, err := e.scorer.Score(ctx, symbol, g.fctx)
	e.monitor.RecordOperation("calculate_composite", time.Since(started), err)
	if err != nil {
		return nil, err
	}

	completeness := e.quality.Completeness(g.resolved, len(aggregateTypes))
	metrics := e.quality.Annotate(g.timestamps, completeness, g.spotSamples, g.sources)

	logger.Info().
		Float64("score", score.Score).
		Float64("freshness", metrics.Freshness).
		Float64("completeness", metrics.Completeness).
		Dur("elapsed", time.Since(started)).
		Msg("composite request served")

	return &CompositeResult{Score: score, Quality: metrics}, nil
}

// CalculateFactor computes a single named factor for a symbol, fetching the
// payload set through the same resilient path. A nil value means the factor's
// required inputs were unavailable.
func (e *Engine) CalculateFactor(ctx context.Context, name, symbol string) (factors.Result, error) {
	started := time.Now()
	g := e.gather(ctx, symbol)
	result, err := e.library.Calculate(ctx, name, symbol, g.fctx)
	e.monitor.RecordOperation("calculate_factor", time.Since(started), err)
	return result, err
}

// CalculateFactorWith computes a factor against a caller-supplied context,
// bypassing the provider fan-out. Used by tests and offline evaluation.
func (e *Engine) CalculateFactorWith(ctx context.Context, name, symbol string, fctx factors.Context) (factors.Result, error) {
	return e.library.Calculate(ctx, name, symbol, fctx)
}

// DataSourceStats exposes per-data-type resolution statistics.
func (e *Engine) DataSourceStats() map[providers.DataType]datasource.Stats {
	return e.manager.StatsSnapshot()
}

// Monitor exposes the performance monitor for stats and alert wiring.
func (e *Engine) Monitor() *telemetry.Monitor {
	return e.monitor
}

// StartScheduler begins the periodic maintenance jobs: memory-tier cache
// sweeps, provider health checks, and cache hit rate export.
func (e *Engine) StartScheduler() error {
	if e.cron != nil {
		return nil
	}
	e.cron = cron.New()

	if _, err := e.cron.AddFunc("@every 1m", func() {
		if removed := e.store.SweepExpired(); removed > 0 {
			log.Debug().Int("removed", removed).Msg("cache sweep completed")
		}
		stats := e.store.Stats()
		e.monitor.RecordCacheHitRate(stats.HitRate, stats.Hits+stats.Misses)
	}); err != nil {
		return err
	}

	if _, err := e.cron.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		e.registry.RunHealthChecks(ctx)
	}); err != nil {
		return err
	}

	e.cron.Start()
	return nil
}

// StopScheduler halts the maintenance jobs.
func (e *Engine) StopScheduler() {
	if e.cron != nil {
		e.cron.Stop()
		e.cron = nil
	}
}
