// Package datasource selects which provider serves each data type, trying an
// ordered preference chain (primary then fallbacks) through the resilience
// policy and the cache-aside store. All-providers-failed degrades to a nil
// payload; callers treat nil as "data unavailable", never as an error.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlocke/vfr-api-sub009/internal/cache"
	"github.com/mlocke/vfr-api-sub009/internal/config"
	"github.com/mlocke/vfr-api-sub009/internal/providers"
	"github.com/mlocke/vfr-api-sub009/internal/resilience"
)

// Preference is a data type's ordered provider chain. Mutated only through
// SetPreference; read on every aggregation request.
type Preference struct {
	DataType    providers.DataType `json:"data_type"`
	Primary     string             `json:"primary"`
	Fallbacks   []string           `json:"fallbacks"`
	LastUpdated time.Time          `json:"last_updated"`
}

func (p Preference) chain() []string {
	return append([]string{p.Primary}, p.Fallbacks...)
}

// Stats tracks per-data-type resolution outcomes.
type Stats struct {
	TotalRequests   int64            `json:"total_requests"`
	CacheHits       int64            `json:"cache_hits"`
	PrimarySuccess  int64            `json:"primary_success"`
	FallbackUsed    int64            `json:"fallback_used"`
	FallbackSuccess map[string]int64 `json:"fallback_success"`
	TotalFailures   int64            `json:"total_failures"`
}

// Manager resolves data requests against the provider preference chains.
type Manager struct {
	registry *providers.Registry
	policy   *resilience.Policy
	store    *cache.Store
	cacheCfg *config.CacheConfig

	mu          sync.RWMutex
	preferences map[providers.DataType]Preference
	stats       map[providers.DataType]*Stats
}

// NewManager wires the manager to its registry, policy, and cache store.
func NewManager(registry *providers.Registry, policy *resilience.Policy, store *cache.Store, cacheCfg *config.CacheConfig) *Manager {
	return &Manager{
		registry:    registry,
		policy:      policy,
		store:       store,
		cacheCfg:    cacheCfg,
		preferences: make(map[providers.DataType]Preference),
		stats:       make(map[providers.DataType]*Stats),
	}
}

// SetPreference installs the ordered provider chain for dataType. Every named
// provider must be registered and declare support for the data type.
func (m *Manager) SetPreference(dataType providers.DataType, primary string, fallbacks []string) error {
	chain := append([]string{primary}, fallbacks...)
	for _, name := range chain {
		_, cfg, ok := m.registry.Get(name)
		if !ok {
			return fmt.Errorf("unknown provider %s", name)
		}
		if !cfg.Supports(dataType) {
			return fmt.Errorf("provider %s does not support %s", name, dataType)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferences[dataType] = Preference{
		DataType:    dataType,
		Primary:     primary,
		Fallbacks:   fallbacks,
		LastUpdated: time.Now(),
	}
	return nil
}

// Preference returns the current chain for dataType.
func (m *Manager) Preference(dataType providers.DataType) (Preference, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pref, ok := m.preferences[dataType]
	return pref, ok
}

// Resolve returns the payload for dataType+symbol, or nil when no provider
// can serve it. The error return is reserved for programming mistakes
// (unknown data type decoding); provider failures never propagate.
func (m *Manager) Resolve(ctx context.Context, dataType providers.DataType, symbol string) (any, error) {
	m.bumpStat(dataType, func(s *Stats) { s.TotalRequests++ })

	key := fmt.Sprintf("data:%s:%s", symbol, dataType)
	ttl := m.cacheCfg.TTLFor(dataType)

	raw, hit, err := m.store.GetOrFetch(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		payload := m.fetchFromChain(ctx, dataType, symbol)
		if payload == nil {
			return nil, errNoData
		}
		return json.Marshal(payload)
	})
	if err != nil {
		if err == errNoData {
			m.bumpStat(dataType, func(s *Stats) { s.TotalFailures++ })
			return nil, nil
		}
		return nil, err
	}
	if hit {
		m.bumpStat(dataType, func(s *Stats) { s.CacheHits++ })
	}
	return decodePayload(dataType, raw)
}

// errNoData is the internal marker for "every candidate failed"; it never
// leaves Resolve.
var errNoData = fmt.Errorf("no provider returned data")

// fetchFromChain walks the preference chain and returns the first valid
// payload, or nil when the chain is empty or exhausted.
func (m *Manager) fetchFromChain(ctx context.Context, dataType providers.DataType, symbol string) any {
	m.mu.RLock()
	pref, ok := m.preferences[dataType]
	m.mu.RUnlock()
	if !ok {
		log.Warn().Str("data_type", string(dataType)).Msg("no preference chain configured")
		return nil
	}

	candidates := m.registry.Candidates(dataType, pref.chain())
	if len(candidates) == 0 {
		log.Warn().Str("data_type", string(dataType)).Msg("no enabled candidate providers")
		return nil
	}

	for i, p := range candidates {
		payload, err := m.policy.Call(ctx, p.Name(), string(dataType), func(ctx context.Context) (any, error) {
			result, err := providers.Fetch(ctx, p, dataType, symbol)
			if err != nil {
				return nil, err
			}
			if verr := validatePayload(p.Name(), dataType, result); verr != nil {
				return nil, verr
			}
			return result, nil
		})
		m.registry.RecordOutcome(p.Name(), err)
		if err != nil {
			log.Warn().
				Str("provider", p.Name()).
				Str("data_type", string(dataType)).
				Str("symbol", symbol).
				Err(err).
				Msg("provider failed, trying next candidate")
			continue
		}
		if payload == nil {
			continue
		}

		isPrimary := i == 0 && p.Name() == pref.Primary
		m.bumpStat(dataType, func(s *Stats) {
			if isPrimary {
				s.PrimarySuccess++
			} else {
				s.FallbackUsed++
				if s.FallbackSuccess == nil {
					s.FallbackSuccess = make(map[string]int64)
				}
				s.FallbackSuccess[p.Name()]++
			}
		})
		log.Info().
			Str("provider", p.Name()).
			Str("data_type", string(dataType)).
			Str("symbol", symbol).
			Bool("fallback", !isPrimary).
			Msg("provider satisfied request")
		return payload
	}
	return nil
}

func (m *Manager) bumpStat(dataType providers.DataType, fn func(*Stats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[dataType]
	if !ok {
		s = &Stats{FallbackSuccess: make(map[string]int64)}
		m.stats[dataType] = s
	}
	fn(s)
}

// StatsSnapshot returns a copy of per-data-type resolution stats.
func (m *Manager) StatsSnapshot() map[providers.DataType]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[providers.DataType]Stats, len(m.stats))
	for dt, s := range m.stats {
		copied := *s
		copied.FallbackSuccess = make(map[string]int64, len(s.FallbackSuccess))
		for k, v := range s.FallbackSuccess {
			copied.FallbackSuccess[k] = v
		}
		out[dt] = copied
	}
	return out
}
