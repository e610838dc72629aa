package jsonrpc

// contextKey is a private type to avoid collisions with context keys defined
// in other packages sharing a context.Context.
type contextKey string

// SessionKey is the context.Context key used to carry session identity across
// transport boundaries. Its value is transport-specific: HTTP client
// transports store the session id string; server-side handlers store the
// concrete server session so handlers can reply without re-resolving it.
const SessionKey contextKey = "mcprpc.session"

// Listener observes every decoded Message as it crosses a transport, in
// either direction. It is used for structured logging, tracing, and metrics
// hooks without requiring the transport to know about any of them.
type Listener func(message *Message)
