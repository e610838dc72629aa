package backoff

import (
	"net/http"
	"testing"
	"time"
)

func TestPolicy_DelayDoublesAndCaps(t *testing.T) {
	p := &Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 1 * time.Second}
	cases := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: 1 * time.Second,
		9: 1 * time.Second,
	}
	for attempt, want := range cases {
		if got := p.Delay(attempt); got != want {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestPolicy_DelayJitterStaysInBounds(t *testing.T) {
	p := &Policy{BaseDelay: 1 * time.Second, MaxDelay: 10 * time.Second, Jitter: 0.1}
	for i := 0; i < 50; i++ {
		got := p.Delay(1)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("Delay(1) = %v out of +/-10%% bounds", got)
		}
	}
}

func TestPolicy_DelayBelowOneTreatedAsOne(t *testing.T) {
	p := &Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 1 * time.Second}
	if got, want := p.Delay(0), p.Delay(1); got != want {
		t.Fatalf("Delay(0) = %v, want same as Delay(1) = %v", got, want)
	}
}

func TestPolicy_ShouldRetryRetriableStatus(t *testing.T) {
	p := Default()
	if !p.ShouldRetry(http.StatusServiceUnavailable, 0) {
		t.Fatalf("expected retry on 503 at attempt 0")
	}
	if !p.ShouldRetry(http.StatusTooManyRequests, p.MaxRetries-1) {
		t.Fatalf("expected retry on last allowed attempt")
	}
}

func TestPolicy_ShouldRetryExhausted(t *testing.T) {
	p := Default()
	if p.ShouldRetry(http.StatusServiceUnavailable, p.MaxRetries) {
		t.Fatalf("expected no retry once MaxRetries attempts have been made")
	}
}

func TestPolicy_ShouldRetryNeverOnAuthFailures(t *testing.T) {
	p := Default()
	if p.ShouldRetry(http.StatusUnauthorized, 0) {
		t.Fatalf("expected no retry on 401 regardless of attempt count")
	}
	if p.ShouldRetry(http.StatusForbidden, 0) {
		t.Fatalf("expected no retry on 403 regardless of attempt count")
	}
}

func TestPolicy_ShouldRetryNonRetriableStatus(t *testing.T) {
	p := Default()
	if p.ShouldRetry(http.StatusNotFound, 0) {
		t.Fatalf("expected no retry on 404 - not in the retriable set")
	}
	if p.ShouldRetry(http.StatusOK, 0) {
		t.Fatalf("expected no retry on 200")
	}
}

func TestPolicy_SleepReturnsOnDone(t *testing.T) {
	p := &Policy{BaseDelay: time.Hour, MaxDelay: time.Hour}
	done := make(chan struct{})
	close(done)
	start := time.Now()
	p.Sleep(1, done)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Sleep did not return promptly on closed done channel, took %v", elapsed)
	}
}
