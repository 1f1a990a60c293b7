// Package cache implements the cache-aside store: a durable Redis tier with
// an automatic in-memory fallback when Redis is unreachable. A durable-tier
// outage never surfaces as an application error; it degrades silently and
// repopulates Redis opportunistically once it heals.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// redisRetryAfter is how long the store waits before probing a degraded
// Redis connection again.
const redisRetryAfter = 30 * time.Second

// Stats reports cache performance counters.
type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
	DurableHits    int64   `json:"durable_hits"`
	MemoryHits     int64   `json:"memory_hits"`
	Sets           int64   `json:"sets"`
	Errors         int64   `json:"errors"`
	MemoryEntries  int     `json:"memory_entries"`
	DurableHealthy bool    `json:"durable_healthy"`
}

// Store is the two-tier cache. All values are stored as JSON bytes so the
// durable and memory tiers carry identical TTL semantics.
type Store struct {
	client    redis.UniversalClient
	memory    *memoryCache
	keyPrefix string

	hits        atomic.Int64
	misses      atomic.Int64
	durableHits atomic.Int64
	memoryHits  atomic.Int64
	sets        atomic.Int64
	errors      atomic.Int64

	mu            sync.Mutex
	degraded      bool
	degradedSince time.Time
	lastProbe     time.Time

	// onDegrade is invoked once per outage transition for observability.
	onDegrade func(healthy bool)
}

// Option customizes Store construction.
type Option func(*Store)

// WithDegradeHook registers a callback fired on durable-tier health
// transitions (false = degraded, true = recovered).
func WithDegradeHook(fn func(healthy bool)) Option {
	return func(s *Store) { s.onDegrade = fn }
}

// WithMaxMemoryEntries bounds the in-memory fallback tier.
func WithMaxMemoryEntries(n int64) Option {
	return func(s *Store) { s.memory = newMemoryCache(n) }
}

// NewStore creates a Store over client. A nil client means memory-only
// operation (useful for tests and local runs without Redis).
func NewStore(client redis.UniversalClient, keyPrefix string, opts ...Option) *Store {
	if keyPrefix == "" {
		keyPrefix = "vfr:"
	}
	s := &Store{
		client:    client,
		memory:    newMemoryCache(10000),
		keyPrefix: keyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	if client == nil {
		s.degraded = true
		s.degradedSince = time.Now()
	}
	return s
}

// NewRedisClient builds the go-redis client with the pool and timeout
// settings used across the codebase.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      2,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})
}

// GetOrFetch returns the cached bytes for key, computing them via fetchFn on
// a miss and writing back to both tiers. The second return reports whether
// the value came from cache.
func (s *Store) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	fullKey := s.keyPrefix + key

	if value, ok := s.getDurable(ctx, fullKey); ok {
		s.hits.Add(1)
		s.durableHits.Add(1)
		return value, true, nil
	}
	if value, ok := s.memory.Get(fullKey); ok {
		s.hits.Add(1)
		s.memoryHits.Add(1)
		// Redis missed but memory hit: repopulate the durable tier so
		// sibling processes benefit. Fire and forget.
		s.repopulate(fullKey, value, ttl)
		return value, true, nil
	}

	s.misses.Add(1)
	value, err := fetchFn(ctx)
	if err != nil {
		return nil, false, err
	}
	s.set(ctx, fullKey, value, ttl)
	return value, false, nil
}

// Get returns the cached bytes for key without fetching.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	fullKey := s.keyPrefix + key
	if value, ok := s.getDurable(ctx, fullKey); ok {
		s.hits.Add(1)
		s.durableHits.Add(1)
		return value, true
	}
	if value, ok := s.memory.Get(fullKey); ok {
		s.hits.Add(1)
		s.memoryHits.Add(1)
		return value, true
	}
	s.misses.Add(1)
	return nil, false
}

// Set writes a value to both tiers.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	s.set(ctx, s.keyPrefix+key, value, ttl)
}

func (s *Store) set(ctx context.Context, fullKey string, value []byte, ttl time.Duration) {
	s.sets.Add(1)
	s.memory.Set(fullKey, value, ttl)

	if !s.durableAvailable() {
		return
	}
	if err := s.client.Set(ctx, fullKey, value, ttl).Err(); err != nil {
		s.markDegraded(err)
	} else {
		s.markHealthy()
	}
}

// Clear removes cached entries. An empty pattern clears everything; a
// non-empty pattern clears keys under prefix+pattern (used for per-symbol
// invalidation).
func (s *Store) Clear(ctx context.Context, pattern string) int {
	prefix := s.keyPrefix + pattern
	removed := s.memory.DeletePrefix(prefix)

	if s.durableAvailable() {
		iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err == nil {
				removed++
			}
		}
		if err := iter.Err(); err != nil {
			s.markDegraded(err)
		}
	}
	return removed
}

// SweepExpired removes dead entries from the memory tier. Redis expires its
// own keys; this exists so the fallback tier does not leak between reads.
func (s *Store) SweepExpired() int {
	return s.memory.RemoveExpired()
}

// Healthy pings the durable tier and updates degradation state.
func (s *Store) Healthy(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.markDegraded(err)
		return false
	}
	s.markHealthy()
	return true
}

// Stats returns a snapshot of cache counters.
func (s *Store) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	s.mu.Lock()
	healthy := !s.degraded
	s.mu.Unlock()

	return Stats{
		Hits:           hits,
		Misses:         misses,
		HitRate:        hitRate,
		DurableHits:    s.durableHits.Load(),
		MemoryHits:     s.memoryHits.Load(),
		Sets:           s.sets.Load(),
		Errors:         s.errors.Load(),
		MemoryEntries:  s.memory.Len(),
		DurableHealthy: healthy,
	}
}

func (s *Store) getDurable(ctx context.Context, fullKey string) ([]byte, bool) {
	if !s.durableAvailable() {
		return nil, false
	}
	value, err := s.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.markDegraded(err)
		}
		return nil, false
	}
	s.markHealthy()
	return value, true
}

// durableAvailable reports whether the durable tier should be attempted.
// While degraded, one probe is allowed every redisRetryAfter.
func (s *Store) durableAvailable() bool {
	if s.client == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.degraded {
		return true
	}
	if time.Since(s.lastProbe) >= redisRetryAfter {
		s.lastProbe = time.Now()
		return true
	}
	return false
}

func (s *Store) markDegraded(err error) {
	s.errors.Add(1)
	s.mu.Lock()
	wasHealthy := !s.degraded
	s.degraded = true
	if wasHealthy {
		s.degradedSince = time.Now()
	}
	s.lastProbe = time.Now()
	hook := s.onDegrade
	s.mu.Unlock()

	if wasHealthy {
		log.Warn().Err(err).Msg("durable cache unreachable, degrading to in-memory")
		if hook != nil {
			hook(false)
		}
	}
}

func (s *Store) markHealthy() {
	s.mu.Lock()
	wasDegraded := s.degraded
	s.degraded = false
	hook := s.onDegrade
	var outage time.Duration
	if wasDegraded {
		outage = time.Since(s.degradedSince)
	}
	s.mu.Unlock()

	if wasDegraded {
		log.Info().Dur("outage", outage).Msg("durable cache recovered")
		if hook != nil {
			hook(true)
		}
	}
}

// repopulate pushes a memory-tier value back into Redis without blocking the
// request path.
func (s *Store) repopulate(fullKey string, value []byte, ttl time.Duration) {
	if !s.durableAvailable() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.client.Set(ctx, fullKey, value, ttl).Err(); err != nil {
			s.markDegraded(err)
		} else {
			s.markHealthy()
		}
	}()
}

// GetOrFetchJSON is the typed convenience over GetOrFetch: values round-trip
// through JSON so both tiers stay format-compatible.
func GetOrFetchJSON[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fetchFn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	raw, hit, err := s.GetOrFetch(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, false, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false, err
	}
	return out, hit, nil
}
