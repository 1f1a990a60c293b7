// Package resilience wraps every provider call in a circuit breaker, a
// per-operation timeout, and a bounded retry with exponential backoff and
// jitter. Retries only fire for transient classifications; the breaker stops
// retry storms against an already-degraded provider.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/mlocke/vfr-api-sub009/internal/config"
	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

// Policy applies breaker + retry + timeout around provider operations.
// Breakers are keyed per provider+operation so one failing endpoint does not
// blind the provider's healthy endpoints.
type Policy struct {
	cfg config.ResilienceConfig

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	limiters map[string]*rate.Limiter

	// sleep is swappable in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a Policy with the given resilience configuration.
func NewPolicy(cfg config.ResilienceConfig) *Policy {
	return &Policy{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		limiters: make(map[string]*rate.Limiter),
		sleep:    sleepCtx,
	}
}

// SetRateLimit installs a per-provider request rate limit. A non-positive
// rps removes the limit.
func (p *Policy) SetRateLimit(provider string, rps float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rps <= 0 {
		delete(p.limiters, provider)
		return
	}
	burst := int(math.Max(1, rps))
	p.limiters[provider] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Call executes fn under the full policy for provider+op. The error returned
// is always a classified *providers.Error on failure.
func (p *Policy) Call(ctx context.Context, provider, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	breaker := p.breakerFor(provider, op)

	result, err := breaker.Execute(func() (any, error) {
		return p.callWithRetry(ctx, provider, op, fn)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, providers.NewError(providers.KindCircuitOpen, provider, op, err)
		}
		return nil, err
	}
	return result, nil
}

// callWithRetry runs the bounded attempt loop. It counts as a single outcome
// for the breaker, so a logical request costs at most one failure increment.
func (p *Policy) callWithRetry(ctx context.Context, provider, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	var lastErr error
	timeout := p.cfg.TimeoutFor(op)

	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt)
			log.Debug().
				Str("provider", provider).
				Str("op", op).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("retrying provider call")
			if err := p.sleep(ctx, delay); err != nil {
				return nil, providers.NewError(providers.KindTimeout, provider, op, err)
			}
		}

		if err := p.waitRateLimit(ctx, provider); err != nil {
			return nil, providers.NewError(providers.KindTimeout, provider, op, err)
		}

		result, err := p.attempt(ctx, provider, op, timeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !providers.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// attempt runs one timed invocation of fn.
func (p *Policy) attempt(ctx context.Context, provider, op string, timeout time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := fn(attemptCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, providers.NewError(providers.KindTimeout, provider, op,
				fmt.Errorf("exceeded %s budget: %w", timeout, err))
		}
		var pe *providers.Error
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, providers.NewError(providers.KindNetwork, provider, op, err)
	}
	return result, nil
}

// backoff computes base × 2^(attempt-1) with ±25% jitter.
func (p *Policy) backoff(attempt int) time.Duration {
	base := p.cfg.BaseBackoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := float64(base) * math.Pow(2, float64(attempt-1))
	jitter := 1 + (rand.Float64()-0.5)*0.5
	return time.Duration(d * jitter)
}

func (p *Policy) waitRateLimit(ctx context.Context, provider string) error {
	p.mu.RLock()
	limiter := p.limiters[provider]
	p.mu.RUnlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (p *Policy) breakerFor(provider, op string) *gobreaker.CircuitBreaker {
	key := provider + ":" + op

	p.mu.RLock()
	breaker, ok := p.breakers[key]
	p.mu.RUnlock()
	if ok {
		return breaker
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if breaker, ok = p.breakers[key]; ok {
		return breaker
	}

	threshold := p.cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := p.cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}

	breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1, // exactly one half-open probe
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	p.breakers[key] = breaker
	return breaker
}

// BreakerStates returns the current state per provider:op breaker key.
func (p *Policy) BreakerStates() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]string, len(p.breakers))
	for key, b := range p.breakers {
		out[key] = b.State().String()
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
