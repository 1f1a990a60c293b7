package providers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config is the operator-facing configuration for a registered provider.
type Config struct {
	Enabled            bool       `yaml:"enabled"`
	Priority           int        `yaml:"priority"`
	Reliability        float64    `yaml:"reliability" validate:"gte=0,lte=1"`
	RateLimitPerSecond float64    `yaml:"rate_limit_per_second"`
	SupportedDataTypes []DataType `yaml:"supported_data_types"`
}

// Supports reports whether the provider declares support for dataType.
func (c Config) Supports(dataType DataType) bool {
	for _, dt := range c.SupportedDataTypes {
		if dt == dataType {
			return true
		}
	}
	return false
}

// Status is a point-in-time health snapshot for a provider.
type Status struct {
	Available   bool      `json:"available"`
	LastChecked time.Time `json:"last_checked"`
	LastError   string    `json:"last_error,omitempty"`
}

type registration struct {
	provider Provider
	config   Config
	status   Status
}

// Registry tracks registered providers, their configuration, and the latest
// health snapshot. It is read on every aggregation request and mutated only
// by operator calls and health checks.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register adds or replaces a provider with its configuration.
func (r *Registry) Register(p Provider, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[p.Name()] = &registration{
		provider: p,
		config:   cfg,
		status:   Status{Available: cfg.Enabled, LastChecked: time.Now()},
	}
}

// Get returns the provider and its config by name.
func (r *Registry) Get(name string) (Provider, Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[name]
	if !ok {
		return nil, Config{}, false
	}
	return reg.provider, reg.config, true
}

// SetEnabled toggles a provider without unregistering it.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[name]
	if !ok {
		return false
	}
	reg.config.Enabled = enabled
	log.Info().Str("provider", name).Bool("enabled", enabled).Msg("provider toggled")
	return true
}

// Candidates returns the enabled providers supporting dataType, filtered from
// the preference-ordered names. Unknown names are skipped silently so a stale
// preference list degrades rather than fails.
func (r *Registry) Candidates(dataType DataType, ordered []string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(ordered))
	for _, name := range ordered {
		reg, ok := r.entries[name]
		if !ok {
			continue
		}
		if !reg.config.Enabled || !reg.config.Supports(dataType) {
			continue
		}
		out = append(out, reg.provider)
	}
	return out
}

// Names returns all registered provider names sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StatusSnapshot returns the last recorded health status per provider.
func (r *Registry) StatusSnapshot() map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Status, len(r.entries))
	for name, reg := range r.entries {
		out[name] = reg.status
	}
	return out
}

// RecordOutcome updates the availability snapshot after a live call, so the
// status endpoint reflects real traffic and not just scheduled health checks.
func (r *Registry) RecordOutcome(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[name]
	if !ok {
		return
	}
	reg.status.LastChecked = time.Now()
	if err != nil {
		reg.status.Available = false
		reg.status.LastError = err.Error()
	} else {
		reg.status.Available = true
		reg.status.LastError = ""
	}
}

// RunHealthChecks probes every enabled provider and refreshes its snapshot.
// Intended to be driven by a cron schedule.
func (r *Registry) RunHealthChecks(ctx context.Context) {
	r.mu.RLock()
	targets := make([]Provider, 0, len(r.entries))
	for _, reg := range r.entries {
		if reg.config.Enabled {
			targets = append(targets, reg.provider)
		}
	}
	r.mu.RUnlock()

	for _, p := range targets {
		err := p.HealthCheck(ctx)
		r.RecordOutcome(p.Name(), err)
		if err != nil {
			log.Warn().Str("provider", p.Name()).Err(err).Msg("provider health check failed")
		}
	}
}

// Reliability returns the configured reliability weight for name, defaulting
// to a neutral 0.5 when the provider is unknown.
func (r *Registry) Reliability(name string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.entries[name]; ok {
		return reg.config.Reliability
	}
	return 0.5
}
