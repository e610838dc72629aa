package streamable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/viant/mcprpc"
	"github.com/viant/mcprpc/transport"
	"github.com/viant/mcprpc/transport/server/base"
	"github.com/viant/mcprpc/transport/server/http/common"
	"github.com/viant/mcprpc/transport/server/http/session"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Default values following the MCP spec.
const (
	defaultURI = ""
	// default header name for session id; may be overridden via Options.SessionLocation
	defaultSessionHeaderKey = "Mcp-Session-Id"
	sseMime                 = "text/event-stream"
	defaultEventBuffer      = 1024
)

// Handler implements server-side of Streamable-HTTP transport (Model Context Protocol).
// Single endpoint (URI) is used for handshake, message exchange and streaming.
// Operation mode is distinguished by HTTP method and Accept header value.
type Handler struct {
	Options
	base       *base.Handler
	locator    session.Locator
	newHandler transport.NewHandler
	options    []base.Option

	sweeperOnce sync.Once
	stopSweeper chan struct{}
}

// ServeHTTP implements http.Handler.
// POST (no session header) – handshake creates a session, returns session id in header.
// POST (with Mcp-Session-Id) – JSON-RPC message for the session; response returned sync.
// GET  (with Accept: text/event-stream & Mcp-Session-Id) – opens long-lived streaming connection.
// DELETE (with Mcp-Session-Id) – terminates session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.applyCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if h.URI != "" && !strings.HasSuffix(r.URL.Path, h.URI) {
		http.NotFound(w, r)
		return
	}
	if h.LogoutAllPath != "" && r.URL.Path == h.LogoutAllPath {
		h.handleLogoutAll(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handlePOST(w, r)
	case http.MethodGet:
		h.handleGET(w, r)
	case http.MethodDelete:
		h.handleDELETE(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// applyCORS sets CORS response headers according to Options. With no
// AllowedOrigins configured it preserves the teacher's permissive default
// (Access-Control-Allow-Origin: *), which is safe only because credentials
// are never allowed in that case.
func (h *Handler) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	switch {
	case len(h.AllowedOrigins) == 0:
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case origin != "" && originAllowed(origin, h.AllowedOrigins):
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
	}
	if h.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+h.sessionHeaderName()+", Last-Event-ID")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Expose-Headers", h.sessionHeaderName())
}

func originAllowed(origin string, allowed []string) bool {
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (h *Handler) sessionHeaderName() string {
	if h.SessionLocation != nil && h.SessionLocation.Kind == "header" {
		return h.SessionLocation.Name
	}
	return defaultSessionHeaderKey
}

func (h *Handler) handlePOST(w http.ResponseWriter, r *http.Request) {
	// locate session using configured location (default: header)
	sessionID, _ := h.locator.Locate(h.SessionLocation, r)
	if sessionID == "" {
		// handshake – create session
		h.initHandshake(w, r)
		return
	}
	// message for existing session
	h.handleMessage(w, r, sessionID)
}

func (h *Handler) handleGET(w http.ResponseWriter, r *http.Request) {
	if !acceptsSSE(r.Header) {
		http.Error(w, "SSE not supported on this endpoint", http.StatusMethodNotAllowed)
		return
	}
	// locate session using configured location (default: header)
	sessionID, _ := h.locator.Locate(h.SessionLocation, r)
	if sessionID == "" {
		// Try query param fallback (for debug convenience)
		sessionID = r.URL.Query().Get(h.SessionLocation.Name)
	}
	if sessionID == "" {
		http.Error(w, fmt.Sprintf("missing %s", h.SessionLocation.Name), http.StatusBadRequest)
		return
	}

	aSession, ok := h.base.Sessions.Get(sessionID)
	if !ok {
		http.Error(w, fmt.Sprintf("session '%s' not found", sessionID), http.StatusNotFound)
		return
	}

	// Prepare SSE response headers.
	w.Header().Set("Content-Type", sseMime)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Re-attach (or attach for the first time) the writer, guarding against a
	// stale writer from a previous connection still being in flight.
	aSession.MarkActiveWithWriter(common.NewFlushWriter(w))
	generation := aSession.WriterGeneration()

	base.WithFramer(frameSSE)(aSession)
	base.WithEventBuffer(h.eventBufferSize())(aSession)
	base.WithOverflowPolicy(h.OverflowPolicy)(aSession)
	base.WithSSE()(aSession)

	// Support resumability: replay events after Last-Event-ID if provided
	if last := strings.TrimSpace(r.Header.Get("Last-Event-ID")); last != "" {
		if v, err := strconv.ParseUint(last, 10, 64); err == nil {
			if msgs := aSession.EventsAfter(v); len(msgs) > 0 {
				for _, m := range msgs {
					_, _ = aSession.Writer.Write(m)
				}
			}
		}
	}

	// Block until client closes.
	<-r.Context().Done()

	// Only mark detached if no newer connection has re-attached in the
	// meantime (guards against a slow-closing old connection clobbering a
	// fresh reconnect's state).
	if aSession.WriterGeneration() == generation {
		aSession.MarkDetached()
		if h.RemovalPolicy == base.RemovalOnDisconnect {
			h.base.Sessions.Delete(sessionID)
		}
	}
}

func (h *Handler) handleDELETE(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := h.locator.Locate(h.SessionLocation, r)
	if sessionID == "" {
		http.Error(w, fmt.Sprintf("missing %s", h.SessionLocation.Name), http.StatusBadRequest)
		return
	}
	if s, ok := h.base.Sessions.Get(sessionID); ok && h.OnSessionClose != nil {
		h.OnSessionClose(s)
	}
	h.base.Sessions.Delete(sessionID)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if h.AuthStore == nil || h.AuthCookie == nil {
		http.Error(w, "logout-all not configured", http.StatusNotFound)
		return
	}
	cookie, err := r.Cookie(h.AuthCookie.Name)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	grant, err := h.AuthStore.Get(r.Context(), cookie.Value)
	if err == nil && grant != nil {
		_ = h.AuthStore.RevokeFamily(r.Context(), grant.FamilyID)
	}
	w.WriteHeader(http.StatusOK)
}

// initHandshake creates a new session and returns its id in response header.
func (h *Handler) initHandshake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.RehydrateOnHandshake && h.AuthStore != nil && h.AuthCookie != nil {
		cookie, err := r.Cookie(h.AuthCookie.Name)
		if err != nil || cookie.Value == "" {
			http.Error(w, "missing auth session", http.StatusUnauthorized)
			return
		}
		grant, err := h.AuthStore.Get(ctx, cookie.Value)
		if err != nil || grant == nil {
			http.Error(w, "invalid or expired auth session", http.StatusUnauthorized)
			return
		}
		_ = h.AuthStore.Touch(ctx, grant.ID, time.Now())
	}

	aSession := base.NewSession(ctx, "", io.Discard, h.newHandler)
	// apply buffering; framer will be configured when streaming begins
	base.WithEventBuffer(h.eventBufferSize())(aSession)
	base.WithOverflowPolicy(h.OverflowPolicy)(aSession)

	h.base.Sessions.Put(aSession.Id, aSession)
	// return session id at the configured location; for header we always set header
	// and use the configured header name
	if h.SessionLocation != nil && h.SessionLocation.Kind == "header" {
		w.Header().Set(h.SessionLocation.Name, aSession.Id)
	} else {
		// default to header if unspecified
		w.Header().Set(defaultSessionHeaderKey, aSession.Id)
	}
	if h.CookieSession != nil {
		http.SetCookie(w, h.sessionCookie(r, aSession.Id))
	}
	h.handleMessage(w, r, aSession.Id)
}

func (h *Handler) sessionCookie(r *http.Request, sessionID string) *http.Cookie {
	c := h.CookieSession
	domain := c.Domain
	if domain == "" && h.CookieUseTopDomain {
		if top, err := common.TopDomain(r.Host); err == nil {
			domain = top
		}
	}
	return &http.Cookie{
		Name:     c.Name,
		Value:    sessionID,
		Path:     c.Path,
		Domain:   domain,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
		MaxAge:   c.MaxAge,
	}
}

func (h *Handler) eventBufferSize() int {
	if h.MaxEventBuffer > 0 {
		return h.MaxEventBuffer
	}
	return defaultEventBuffer
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request, sessionID string) {
	aSession, ok := h.base.Sessions.Get(sessionID)
	if !ok {
		http.Error(w, fmt.Sprintf("session '%s' not found", sessionID), http.StatusNotFound)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}
	_ = r.Body.Close()

	ctx := context.WithValue(r.Context(), jsonrpc.SessionKey, aSession)

	// If client accepts SSE, and this is a JSON-RPC request, stream via SSE.
	if acceptsSSE(r.Header) && isJSONRPCRequest(data) && hasID(data) {
		// Prepare SSE response and writer
		w.Header().Set("Content-Type", sseMime)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		aSession.MarkActiveWithWriter(common.NewFlushWriter(w))
		base.WithFramer(frameSSE)(aSession)
		base.WithEventBuffer(h.eventBufferSize())(aSession)
		base.WithOverflowPolicy(h.OverflowPolicy)(aSession)
		base.WithSSE()(aSession)
		// Stream response and any further messages on this connection
		h.base.HandleMessage(ctx, aSession, data, nil)
		return
	}

	// Default: synchronous JSON response or 202 Accepted for notifications
	buffer := bytes.Buffer{}
	h.base.HandleMessage(ctx, aSession, data, &buffer)
	if buffer.Len() == 0 { // notification (no response)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buffer.Bytes())
}

// Helper – checks if Accept header contains text/event-stream
func acceptsSSE(hdr http.Header) bool {
	for _, v := range hdr.Values("Accept") {
		if strings.Contains(v, sseMime) {
			return true
		}
	}
	return false
}

// isJSONRPCRequest returns true if data looks like a JSON-RPC request (has method and optional id)
func isJSONRPCRequest(data []byte) bool {
	var tmp struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return false
	}
	return tmp.Method != ""
}

// hasID returns true if the JSON has a non-null id field
func hasID(data []byte) bool {
	var tmp struct {
		ID *json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return false
	}
	return tmp.ID != nil
}

// startSweeper runs a periodic pass over all sessions, removing those whose
// lifecycle has expired per RemovalPolicy, IdleTTL and MaxLifetime. It is a
// no-op when CleanupInterval is zero.
func (h *Handler) startSweeper() {
	if h.CleanupInterval <= 0 {
		return
	}
	h.sweeperOnce.Do(func() {
		h.stopSweeper = make(chan struct{})
		go func() {
			ticker := time.NewTicker(h.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					h.sweep()
				case <-h.stopSweeper:
					return
				}
			}
		}()
	})
}

func (h *Handler) sweep() {
	now := time.Now()
	var toRemove []string
	h.base.Sessions.Range(func(id string, s *base.Session) bool {
		remove := false
		if s.State == base.SessionStateDetached {
			switch h.RemovalPolicy {
			case base.RemovalOnDisconnect:
				remove = true
			case base.RemovalAfterGrace:
				if s.DetachedAt != nil && now.Sub(*s.DetachedAt) >= h.ReconnectGrace {
					remove = true
				}
			}
		}
		if h.RemovalPolicy != base.RemovalManual {
			if h.IdleTTL > 0 && now.Sub(s.LastSeen) >= h.IdleTTL {
				remove = true
			}
			if h.MaxLifetime > 0 && now.Sub(s.CreatedAt) >= h.MaxLifetime {
				remove = true
			}
		}
		if remove {
			toRemove = append(toRemove, id)
		}
		return true
	})
	for _, id := range toRemove {
		if s, ok := h.base.Sessions.Get(id); ok && h.OnSessionClose != nil {
			h.OnSessionClose(s)
		}
		h.base.Sessions.Delete(id)
	}
}

// Close stops the background cleanup sweeper, if running.
func (h *Handler) Close() {
	if h.stopSweeper != nil {
		close(h.stopSweeper)
	}
}

// New constructs Handler with default settings and provided options.
func New(newHandler transport.NewHandler, opts ...Option) *Handler {
	h := &Handler{
		newHandler: newHandler,
		Options: Options{
			URI:             defaultURI,
			SessionLocation: session.NewHeaderLocation(defaultSessionHeaderKey),
		},
		base: base.NewHandler(),
		options: []base.Option{
			base.WithFramer(frameJSON),
		},
	}
	for _, o := range opts {
		o(&h.Options)
	}
	if h.Store != nil {
		h.base.Sessions = h.Store
	}
	h.startSweeper()
	return h
}
