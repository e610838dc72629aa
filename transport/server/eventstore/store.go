// Package eventstore provides pluggable storage for SSE replay events,
// letting a streamable-HTTP session resume from a Last-Event-ID across a
// process restart or a request routed to a different server instance.
// The streamable-HTTP handler in this module does not use it: it replays
// from the replay buffer kept on base.Session.
package eventstore

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested stream has no recorded events.
var ErrNotFound = errors.New("eventstore: stream not found")

// Event is a single buffered, framed message along with the monotonic id a
// client can present via Last-Event-ID to resume after it.
type Event struct {
	ID      uint64
	Message []byte
}

// Store persists framed SSE messages per stream (one stream per MCP
// session) so a reconnecting client can replay everything it missed.
// Implementations must be safe for concurrent use.
type Store interface {
	// Store appends message to streamID's event log and returns its assigned id.
	Store(ctx context.Context, streamID string, message []byte) (eventID uint64, err error)

	// ReplayAfter returns every event recorded for streamID with id > afterID,
	// in id order. An unknown streamID returns ErrNotFound.
	ReplayAfter(ctx context.Context, streamID string, afterID uint64) ([]Event, error)

	// Cleanup removes streams whose retention has elapsed. Implementations
	// that expire entries natively (e.g. Redis TTLs) may no-op.
	Cleanup(ctx context.Context) error

	// Drop discards all events recorded for streamID, e.g. on session close.
	Drop(ctx context.Context, streamID string) error
}
