package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlocke/vfr-api-sub009/internal/config"
	"github.com/mlocke/vfr-api-sub009/internal/providers"
)

func newTestPolicy(cfg config.ResilienceConfig) *Policy {
	p := NewPolicy(cfg)
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func TestCallPassesResultThrough(t *testing.T) {
	p := newTestPolicy(config.DefaultResilienceConfig())

	result, err := p.Call(context.Background(), "alpha", "stock_price", func(ctx context.Context) (any, error) {
		return "payload", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "payload", result)
}

func TestRetryOnTransientThenSuccess(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.MaxAttempts = 3
	p := newTestPolicy(cfg)

	calls := 0
	result, err := p.Call(context.Background(), "alpha", "stock_price", func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, providers.NewError(providers.KindNetwork, "alpha", "stock_price", errors.New("connection reset"))
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestNoRetryOnValidationError(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.MaxAttempts = 3
	p := newTestPolicy(cfg)

	calls := 0
	_, err := p.Call(context.Background(), "alpha", "stock_price", func(ctx context.Context) (any, error) {
		calls++
		return nil, providers.NewError(providers.KindValidation, "alpha", "stock_price", errors.New("bad symbol"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable errors must not be retried")
	assert.Equal(t, providers.KindValidation, providers.KindOf(err))
}

func TestRetriesExhaustedReturnsLastError(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.MaxAttempts = 3
	p := newTestPolicy(cfg)

	calls := 0
	_, err := p.Call(context.Background(), "alpha", "stock_price", func(ctx context.Context) (any, error) {
		calls++
		return nil, providers.NewError(providers.KindTimeout, "alpha", "stock_price", errors.New("slow upstream"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, providers.KindTimeout, providers.KindOf(err))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.FailureThreshold = 2
	cfg.MaxAttempts = 1
	p := newTestPolicy(cfg)

	fail := func(ctx context.Context) (any, error) {
		return nil, providers.NewError(providers.KindNetwork, "alpha", "fundamentals", errors.New("down"))
	}

	for i := 0; i < 2; i++ {
		_, err := p.Call(context.Background(), "alpha", "fundamentals", fail)
		require.Error(t, err)
		assert.Equal(t, providers.KindNetwork, providers.KindOf(err))
	}

	// Threshold reached: the next call is rejected without invoking fn.
	invoked := false
	_, err := p.Call(context.Background(), "alpha", "fundamentals", func(ctx context.Context) (any, error) {
		invoked = true
		return nil, nil
	})
	require.Error(t, err)
	assert.False(t, invoked)
	assert.Equal(t, providers.KindCircuitOpen, providers.KindOf(err))

	states := p.BreakerStates()
	assert.Equal(t, "open", states["alpha:fundamentals"])
}

func TestBreakerHalfOpenProbeClosesOnSuccess(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.FailureThreshold = 1
	cfg.MaxAttempts = 1
	cfg.Cooldown = 30 * time.Millisecond
	p := newTestPolicy(cfg)

	_, err := p.Call(context.Background(), "alpha", "esg", func(ctx context.Context) (any, error) {
		return nil, providers.NewError(providers.KindNetwork, "alpha", "esg", errors.New("down"))
	})
	require.Error(t, err)
	assert.Equal(t, "open", p.BreakerStates()["alpha:esg"])

	time.Sleep(50 * time.Millisecond)

	result, err := p.Call(context.Background(), "alpha", "esg", func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", p.BreakerStates()["alpha:esg"])
}

func TestBreakersAreIndependentPerOperation(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.FailureThreshold = 1
	cfg.MaxAttempts = 1
	p := newTestPolicy(cfg)

	_, err := p.Call(context.Background(), "alpha", "sentiment", func(ctx context.Context) (any, error) {
		return nil, providers.NewError(providers.KindAPI, "alpha", "sentiment", errors.New("500"))
	})
	require.Error(t, err)

	// Same provider, different operation: still closed.
	result, err := p.Call(context.Background(), "alpha", "stock_price", func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestAttemptTimeoutClassifiedAsTimeout(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.MaxAttempts = 1
	cfg.OpTimeouts = map[string]time.Duration{"stock_price": 10 * time.Millisecond}
	p := newTestPolicy(cfg)

	_, err := p.Call(context.Background(), "alpha", "stock_price", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, providers.KindTimeout, providers.KindOf(err))
	assert.True(t, providers.IsRetryable(err))
}

func TestUnclassifiedErrorDefaultsToNetwork(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.MaxAttempts = 1
	p := newTestPolicy(cfg)

	_, err := p.Call(context.Background(), "alpha", "macro_context", func(ctx context.Context) (any, error) {
		return nil, errors.New("raw transport error")
	})
	require.Error(t, err)
	assert.Equal(t, providers.KindNetwork, providers.KindOf(err))
}

func TestBackoffGrowsWithJitterBounds(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.BaseBackoff = 100 * time.Millisecond
	p := NewPolicy(cfg)

	for attempt := 1; attempt <= 4; attempt++ {
		expected := float64(cfg.BaseBackoff) * float64(int(1)<<(attempt-1))
		for i := 0; i < 20; i++ {
			d := float64(p.backoff(attempt))
			assert.GreaterOrEqual(t, d, expected*0.75)
			assert.LessOrEqual(t, d, expected*1.25)
		}
	}
}
