package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/viant/mcprpc/internal/collection"
	"github.com/viant/mcprpc/observability"
)

// Stats summarizes the sessions a SessionManager currently tracks. Observe
// converts it into observability.Stats for mirroring onto Prometheus
// gauges/counters; observability cannot import mcp directly since mcp
// already imports observability for tracing.
type Stats struct {
	Active        int
	Closed        int
	Error         int
	TotalRequests uint64
	TotalBytes    uint64
}

// Observe converts s into observability.Stats and records it, e.g. from a
// /metrics handler's scrape callback or after any session lifecycle change.
func (s Stats) Observe() {
	observability.ObserveStats(observability.Stats{
		Active:        s.Active,
		Closed:        s.Closed,
		Error:         s.Error,
		TotalRequests: s.TotalRequests,
		TotalBytes:    s.TotalBytes,
	})
}

// SessionManager maps session ids to Sessions behind a single lock
// (collection.SyncMap), giving add/get/has/remove O(1) and non-blocking.
type SessionManager struct {
	sessions      *collection.SyncMap[string, *Session]
	totalRequests uint64
	totalBytes    uint64
}

// NewSessionManager constructs an empty SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: collection.NewSyncMap[string, *Session]()}
}

// Add registers a session under id. A duplicate id replaces the prior entry.
func (m *SessionManager) Add(id string, session *Session) {
	m.sessions.Put(id, session)
}

// Get returns the session registered under id, if any.
func (m *SessionManager) Get(id string) (*Session, bool) {
	return m.sessions.Get(id)
}

// Has reports whether id is currently registered.
func (m *SessionManager) Has(id string) bool {
	_, ok := m.sessions.Get(id)
	return ok
}

// Remove unregisters id without closing the session. Callers that also want
// the session torn down should call CloseSession instead.
func (m *SessionManager) Remove(id string) {
	m.sessions.Delete(id)
}

// CloseSession closes the session registered under id, then unregisters it.
func (m *SessionManager) CloseSession(ctx context.Context, id string) error {
	session, ok := m.sessions.Get(id)
	if !ok {
		return fmt.Errorf("mcp: no session registered under %q", id)
	}
	err := session.Close(ctx)
	m.sessions.Delete(id)
	return err
}

// CloseAll closes every registered session best-effort: every close is
// attempted regardless of earlier failures, and all errors are collected
// and returned together rather than aborting on the first one.
func (m *SessionManager) CloseAll(ctx context.Context) error {
	var ids []string
	m.sessions.Range(func(id string, _ *Session) bool {
		ids = append(ids, id)
		return true
	})
	var errs []string
	for _, id := range ids {
		if err := m.CloseSession(ctx, id); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", id, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("mcp: closeAll encountered %d error(s): %s", len(errs), strings.Join(errs, "; "))
}

// RecordRequest accounts for one outbound request and the bytes it carried,
// feeding GetStats's TotalRequests/TotalBytes counters. SessionManager has
// no visibility into wire traffic on its own, and no transport in this
// module calls RecordRequest, so those counters move only when a caller does.
func (m *SessionManager) RecordRequest(bytes int) {
	atomic.AddUint64(&m.totalRequests, 1)
	atomic.AddUint64(&m.totalBytes, uint64(bytes))
}

// GetStats snapshots the manager's current session counts by state plus the
// cumulative request/byte counters.
func (m *SessionManager) GetStats() Stats {
	stats := Stats{
		TotalRequests: atomic.LoadUint64(&m.totalRequests),
		TotalBytes:    atomic.LoadUint64(&m.totalBytes),
	}
	m.sessions.Range(func(_ string, session *Session) bool {
		switch session.State() {
		case StateClosed:
			stats.Closed++
		case StateError:
			stats.Error++
		default:
			stats.Active++
		}
		return true
	})
	return stats
}
