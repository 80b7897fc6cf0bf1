package llmclient

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls how a failed LLM call is retried. The formula is the
// teacher's exponential-backoff-with-jitter (internal/dispatch/retry.go's
// backoffDelayWithFactor), generalized from dispatch-tier escalation to a
// flat "retry N times then fail" policy.
type RetryPolicy struct {
	MaxRetries    int // additional attempts beyond the first
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// DefaultRetryPolicy allows up to 3 retries beyond the first attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      30 * time.Second,
	}
}

// delay returns the backoff duration before retry attempt n (1-indexed:
// the delay before the first retry is delay(1)).
func (p RetryPolicy) delay(attempt int) time.Duration {
	return backoffDelayWithFactor(attempt, p.InitialDelay, p.MaxDelay, p.BackoffFactor)
}

func backoffDelayWithFactor(retries int, base, maxDelay time.Duration, factor float64) time.Duration {
	if retries <= 0 || base <= 0 {
		return 0
	}
	if factor < 1.0 {
		factor = 1.0
	}

	backoff := float64(base) * math.Pow(factor, float64(retries-1))
	if math.IsNaN(backoff) || math.IsInf(backoff, 0) {
		if maxDelay > 0 {
			backoff = float64(maxDelay)
		} else {
			backoff = float64(base)
		}
	}
	if maxDelay > 0 && backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}
	if backoff < float64(base) {
		backoff = float64(base)
	}

	jitter := 1.0 + (rand.Float64() * 0.1)
	return time.Duration(backoff * jitter)
}

// ErrConnect, ErrTimeout, and ErrEmptyResponse are the retryable sentinel
// failure modes that aren't otherwise expressed as a *BackendError.
var (
	ErrConnect       = errors.New("connect error")
	ErrTimeout       = errors.New("timeout")
	ErrEmptyResponse = errors.New("empty response")
)

// BackendError wraps an HTTP-status-bearing backend failure.
type BackendError struct {
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "backend error"
}

func (e *BackendError) Unwrap() error { return e.Err }

// isRetryable classifies a call failure: connect errors, HTTP 5xx,
// timeouts, empty responses and schema-validation failures are retryable;
// HTTP 4xx other than rate-limit (429) and any other unexpected error are
// not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnect) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var be *BackendError
	if errors.As(err, &be) {
		if be.StatusCode == 429 {
			return true
		}
		if be.StatusCode >= 500 && be.StatusCode < 600 {
			return true
		}
		return false
	}
	var se *schemaValidationError
	if errors.As(err, &se) {
		return true
	}
	return false
}
