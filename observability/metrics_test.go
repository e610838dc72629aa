package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStats_GaugesReflectSnapshot(t *testing.T) {
	ObserveStats(Stats{Active: 3, Closed: 1, Error: 2, TotalRequests: 10, TotalBytes: 1024})

	if got := testutil.ToFloat64(sessionsActive); got != 3 {
		t.Fatalf("sessionsActive = %v, want 3", got)
	}
	if got := testutil.ToFloat64(sessionsClosed); got != 1 {
		t.Fatalf("sessionsClosed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sessionsError); got != 2 {
		t.Fatalf("sessionsError = %v, want 2", got)
	}
}

func TestObserveStats_CountersOnlyIncreaseOnNewTotals(t *testing.T) {
	lastMu.Lock()
	lastRequests = 0
	lastBytes = 0
	lastMu.Unlock()

	ObserveStats(Stats{TotalRequests: 5, TotalBytes: 500})
	before := testutil.ToFloat64(requestsTotal)

	// A second observation with the same totals must not double-count.
	ObserveStats(Stats{TotalRequests: 5, TotalBytes: 500})
	if after := testutil.ToFloat64(requestsTotal); after != before {
		t.Fatalf("requestsTotal changed on a repeated identical snapshot: %v -> %v", before, after)
	}

	ObserveStats(Stats{TotalRequests: 8, TotalBytes: 800})
	if after := testutil.ToFloat64(requestsTotal); after != before+3 {
		t.Fatalf("requestsTotal = %v, want %v", after, before+3)
	}
}

func TestHandler_ReturnsNonNil(t *testing.T) {
	if Handler() == nil {
		t.Fatalf("Handler returned nil")
	}
}
