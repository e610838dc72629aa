// Package backoff implements the doubling-delay-with-jitter retry policy
// shared by the streamable HTTP client's stream reconnect loop and its POST
// send path, so both honor the same max-retry/backoff-cap/no-retry-on-auth
// rules instead of each hand-rolling its own loop.
package backoff

import (
	"math/rand"
	"net/http"
	"time"
)

// Policy controls how many times an operation retries and how long it
// waits between attempts. The zero value is not usable; construct one via
// Default.
type Policy struct {
	// MaxRetries caps the number of retry attempts after the first try.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the doubling delay.
	MaxDelay time.Duration
	// Jitter is the fractional +/- randomization applied to each delay,
	// e.g. 0.1 spreads a 1s delay across [0.9s, 1.1s].
	Jitter float64
	// RetriableStatus lists HTTP status codes worth retrying. Codes absent
	// from this set are treated as terminal failures.
	RetriableStatus map[int]bool
}

// Default returns the policy grounded on the streamable client's original
// reconnect loop (500ms base, 10s cap, doubling), extended with a bounded
// retry count, +/-10% jitter, and the status codes a transient server or
// proxy failure typically returns.
func Default() *Policy {
	return &Policy{
		MaxRetries: 5,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Jitter:     0.1,
		RetriableStatus: map[int]bool{
			http.StatusRequestTimeout:      true,
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
			http.StatusInsufficientStorage: true,
			509:                            true, // Bandwidth Limit Exceeded (no net/http constant)
		},
	}
}

// Delay returns how long to wait before attempt (1-indexed: attempt 1 is the
// delay before the first retry, i.e. after the initial try failed). The base
// delay doubles each attempt up to MaxDelay, then gets +/-Jitter randomized.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.Jitter <= 0 {
		return delay
	}
	spread := float64(delay) * p.Jitter
	offset := (rand.Float64()*2 - 1) * spread
	jittered := time.Duration(float64(delay) + offset)
	if jittered < 0 {
		jittered = 0
	}
	return jittered
}

// ShouldRetry reports whether a request that failed with statusCode on the
// given attempt (the number of retries already made: 0 after the initial try
// fails) should be retried.
// 401 and 403 never retry: a retry cannot fix an authorization failure and
// only delays surfacing it to the caller.
func (p *Policy) ShouldRetry(statusCode int, attempt int) bool {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return false
	}
	if attempt >= p.MaxRetries {
		return false
	}
	return p.RetriableStatus[statusCode]
}

// Sleep blocks for Delay(attempt), honoring ctx cancellation via the done
// channel if provided; callers without a context can pass nil.
func (p *Policy) Sleep(attempt int, done <-chan struct{}) {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	if done == nil {
		<-timer.C
		return
	}
	select {
	case <-timer.C:
	case <-done:
	}
}
