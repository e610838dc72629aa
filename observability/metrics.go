// Package observability mirrors session-manager stats onto Prometheus
// gauges/counters and wraps session-level Send/Notify in OpenTelemetry
// spans, following this corpus's usual split: a dedicated metrics.go
// registering typed collectors against a private registry, and a
// tracing.go wrapping call sites with start/end span helpers.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats is the minimal session-manager snapshot ObserveStats mirrors onto
// Prometheus. It mirrors the shape of mcp.Stats without importing the mcp
// package, since mcp imports observability for tracing - keeping this
// package a leaf avoids the import cycle that would otherwise create.
type Stats struct {
	Active        int
	Closed        int
	Error         int
	TotalRequests uint64
	TotalBytes    uint64
}

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcprpc_sessions_active",
		Help: "Number of sessions not yet closed or errored",
	})
	sessionsClosed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcprpc_sessions_closed",
		Help: "Number of sessions that reached the closed state",
	})
	sessionsError = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcprpc_sessions_error",
		Help: "Number of sessions that reached the error state",
	})
	requestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcprpc_requests_total",
		Help: "Cumulative count of requests sent across all sessions",
	})
	bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcprpc_bytes_total",
		Help: "Cumulative count of request bytes sent across all sessions",
	})
)

// Registry is the private Prometheus registry mcprpc's metrics register
// into, matching the teacher's pattern of a dedicated registry rather than
// prometheus.DefaultRegisterer, so embedding mcprpc into a larger process
// doesn't collide with that process's own metric names.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(sessionsActive, sessionsClosed, sessionsError, requestsTotal, bytesTotal)
}

// lastRequests and lastBytes track the previous snapshot's cumulative
// counters, since mcp.Stats reports running totals but Prometheus counters
// can only be incremented, never set.
var (
	lastMu       sync.Mutex
	lastRequests uint64
	lastBytes    uint64
)

// ObserveStats mirrors a SessionManager.GetStats() snapshot onto the
// package's gauges/counters. Call this periodically (e.g. on every
// /metrics scrape, as the teacher's updateMetrics does) or after any
// session lifecycle change.
func ObserveStats(stats Stats) {
	sessionsActive.Set(float64(stats.Active))
	sessionsClosed.Set(float64(stats.Closed))
	sessionsError.Set(float64(stats.Error))

	lastMu.Lock()
	defer lastMu.Unlock()
	if stats.TotalRequests > lastRequests {
		requestsTotal.Add(float64(stats.TotalRequests - lastRequests))
	}
	lastRequests = stats.TotalRequests

	if stats.TotalBytes > lastBytes {
		bytesTotal.Add(float64(stats.TotalBytes - lastBytes))
	}
	lastBytes = stats.TotalBytes
}

// Handler serves Registry in Prometheus exposition format, for mounting at
// e.g. GET /metrics by cmd/mcprpc's serve http command.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
