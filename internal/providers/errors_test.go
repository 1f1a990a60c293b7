package providers

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryableTaxonomy(t *testing.T) {
	cases := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{KindValidation, false},
		{KindRateLimit, true},
		{KindTimeout, true},
		{KindNetwork, true},
		{KindAPI, false},
		{KindDataQuality, false},
		{KindCircuitOpen, false},
	}
	for _, tc := range cases {
		if got := tc.kind.Retryable(); got != tc.retryable {
			t.Errorf("%s: Retryable() = %v, want %v", tc.kind, got, tc.retryable)
		}
	}
}

func TestKindOfUnwrapsNestedErrors(t *testing.T) {
	inner := NewError(KindRateLimit, "alpha", "stock_price", errors.New("429"))
	wrapped := fmt.Errorf("resolve AAPL: %w", inner)

	if got := KindOf(wrapped); got != KindRateLimit {
		t.Errorf("KindOf(wrapped) = %s, want rate_limit", got)
	}
	if !IsRetryable(wrapped) {
		t.Error("wrapped rate limit error should stay retryable")
	}
}

func TestKindOfUnclassifiedDefaultsToNetwork(t *testing.T) {
	if got := KindOf(errors.New("raw")); got != KindNetwork {
		t.Errorf("KindOf(raw) = %s, want network", got)
	}
}

func TestErrorStringIncludesAttribution(t *testing.T) {
	err := NewError(KindTimeout, "alpha", "historical_ohlc", errors.New("deadline"))
	want := "alpha historical_ohlc: timeout: deadline"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
