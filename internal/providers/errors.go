package providers

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures so the resilience layer can decide
// whether a retry is worthwhile.
type ErrorKind int

const (
	KindValidation ErrorKind = iota // malformed symbol/input, never retried
	KindRateLimit                   // provider throttled us, retryable with backoff
	KindTimeout                     // request exceeded its budget, retryable
	KindNetwork                     // transport-level failure, retryable
	KindAPI                         // provider returned a structured failure, not retried
	KindDataQuality                 // payload parsed but is unusable (NaN, negative price)
	KindCircuitOpen                 // short-circuited locally, no network attempt made
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	case KindDataQuality:
		return "data_quality"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind is transient enough to
// retry against the same provider.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimit, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// Error is the classified error returned by every provider call.
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a classification and call attribution.
func NewError(kind ErrorKind, provider, op string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Op: op, Err: err}
}

// KindOf extracts the classification from err. Unclassified errors are
// treated as network failures, the conservative retryable default.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}

// IsRetryable reports whether err should be retried against the same provider.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
