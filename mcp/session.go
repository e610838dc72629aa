package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/viant/mcprpc"
	"github.com/viant/mcprpc/observability"
	"github.com/viant/mcprpc/transport"

	"go.opentelemetry.io/otel/attribute"
)

// RequestHandler answers a server-initiated request such as
// sampling/createMessage or roots/list. A non-nil *jsonrpc.Error is written
// back to the server as the response error.
type RequestHandler func(ctx context.Context, method string, params json.RawMessage) (interface{}, *jsonrpc.Error)

// NotificationHandler observes a server-initiated notification, e.g.
// notifications/progress or notifications/resources/updated.
type NotificationHandler func(ctx context.Context, method string, params json.RawMessage)

// Session is a typed MCP client session layered over a transport.Transport.
// It owns the handshake state machine (state.go) and exposes one method per
// MCP operation, translating jsonrpc.Request/Response into the payload
// shapes in types.go. It is distinct from transport/server/base.Session,
// which is a low-level per-connection record the server transports use for
// request correlation and SSE replay - this Session never touches the wire
// directly, it only calls transport.Transport.Send/Notify.
type Session struct {
	mu              sync.RWMutex
	state           State
	transport       transport.Transport
	clientInfo      ClientInfo
	clientCaps      Capabilities
	protocolVersion string
	serverInfo      ServerInfo
	serverCaps      Capabilities
	requestHandler  RequestHandler
	notifyHandler   NotificationHandler
}

// SessionOption configures a Session before it is bound to a transport.
type SessionOption func(*Session)

// WithClientInfo sets the name/version reported during the initialize handshake.
func WithClientInfo(info ClientInfo) SessionOption {
	return func(s *Session) { s.clientInfo = info }
}

// WithClientCapabilities sets the capability set advertised to the server.
func WithClientCapabilities(caps Capabilities) SessionOption {
	return func(s *Session) { s.clientCaps = caps }
}

// WithProtocolVersion overrides the protocol version requested during
// initialize. Defaults to DefaultProtocolVersion.
func WithProtocolVersion(version string) SessionOption {
	return func(s *Session) { s.protocolVersion = version }
}

// WithRequestHandler installs the handler invoked for server-initiated
// requests (e.g. sampling/createMessage). Without one, every server request
// is answered with a method-not-found error.
func WithRequestHandler(handler RequestHandler) SessionOption {
	return func(s *Session) { s.requestHandler = handler }
}

// WithNotificationHandler installs the handler invoked for server-initiated
// notifications.
func WithNotificationHandler(handler NotificationHandler) SessionOption {
	return func(s *Session) { s.notifyHandler = handler }
}

// DefaultProtocolVersion is the MCP revision requested when none is set via
// WithProtocolVersion.
const DefaultProtocolVersion = "2025-03-26"

// legacyProtocolVersion is the "HTTP+SSE" revision Initialize automatically
// falls back to when DefaultProtocolVersion fails with a protocol-level
// error over a transport that supports the fallback (see legacyDialer).
const legacyProtocolVersion = "2024-11-05"

// knownProtocolVersions lists the MCP revisions this client recognizes. A
// server response outside this list fails the handshake with
// ProtocolVersionMismatchError rather than silently trusting the peer.
var knownProtocolVersions = []string{DefaultProtocolVersion, legacyProtocolVersion}

func isKnownProtocolVersion(version string) bool {
	for _, v := range knownProtocolVersions {
		if v == version {
			return true
		}
	}
	return false
}

// legacyDialer is implemented by a transport that can redial the legacy
// 2024-11-05 HTTP+SSE flow against the endpoint it was already talking to
// (streamable.Client.DialLegacy). Initialize uses it for the automatic
// protocol-version fallback described in package docs; a transport that
// doesn't implement it (e.g. stdio) simply has no fallback path.
type legacyDialer interface {
	DialLegacy(ctx context.Context, handler transport.Handler) (transport.Transport, error)
}

// pendingCanceler is satisfied by client transports that expose their
// round-trip table for local cancellation (stdio.Client, streamable.Client,
// the legacy sse.Client). Session uses it to fail outstanding requests
// immediately instead of waiting on a response or timeout.
type pendingCanceler interface {
	CancelPending(id jsonrpc.RequestId, err *jsonrpc.Error) bool
	CancelAllPending(err *jsonrpc.Error)
}

// NewSession constructs a Session in StateNew. Bind must be called with a
// live transport.Transport (typically after passing the Session itself as
// the transport.Handler to a client constructor's WithHandler option) before
// any typed operation is invoked.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		state:           StateNew,
		protocolVersion: DefaultProtocolVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind attaches the transport a Session will send requests over. Client
// transports (stdio.New, streamable.New) require a transport.Handler at
// construction time, before the transport.Transport they return exists -
// so a Session is built first, handed to WithHandler, and bound to the
// resulting transport once construction completes.
func (s *Session) Bind(t transport.Transport) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ServerInfo returns the server identity learned during Initialize. Valid
// once State is StateReady or later.
func (s *Session) ServerInfo() ServerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverInfo
}

// ServerCapabilities returns the capability set the server advertised
// during Initialize.
func (s *Session) ServerCapabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverCaps
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, to) {
		return &StateError{Op: fmt.Sprintf("transition to %s", to), State: s.state}
	}
	s.state = to
	return nil
}

func (s *Session) requireState(op string, want State) error {
	s.mu.RLock()
	cur := s.state
	s.mu.RUnlock()
	if cur != want {
		return &StateError{Op: op, State: cur}
	}
	return nil
}

func (s *Session) fail(_ error) {
	s.mu.Lock()
	if s.state != StateClosed && canTransition(s.state, StateError) {
		s.state = StateError
	}
	s.mu.Unlock()
}

// call sends a request for method with the given params and unmarshals the
// result into out (which must be a pointer, or nil to discard the result).
func (s *Session) call(ctx context.Context, method string, params interface{}, out interface{}) (err error) {
	ctx, endSpan := observability.StartSpan(ctx, "Session.Send", attribute.String("method", method))
	defer func() { endSpan(err) }()

	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()
	if t == nil {
		err = fmt.Errorf("mcp: session not bound to a transport")
		return err
	}
	request, buildErr := jsonrpc.NewRequest(method, params)
	if buildErr != nil {
		err = fmt.Errorf("mcp: failed to build %s request: %w", method, buildErr)
		return err
	}
	response, sendErr := t.Send(ctx, request)
	if sendErr != nil {
		err = sendErr
		return err
	}
	if response.Error != nil {
		err = response.Error
		return err
	}
	if out == nil || len(response.Result) == 0 {
		return nil
	}
	err = json.Unmarshal(response.Result, out)
	return err
}

// Initialize performs the MCP handshake, negotiating protocol version and
// capabilities with the server. It must be the first operation invoked.
//
// If the handshake at s.protocolVersion fails and the bound transport is a
// legacyDialer, Initialize retries once against the legacy 2024-11-05
// HTTP+SSE flow before giving up - the automatic fallback path the
// handshake defines. The resulting protocolVersion is then checked against
// knownProtocolVersions; a server offering anything else fails the session
// with ProtocolVersionMismatchError rather than proceeding on an
// unrecognized revision.
func (s *Session) Initialize(ctx context.Context) (*InitializeResult, error) {
	if err := s.requireState("Initialize", StateNew); err != nil {
		return nil, err
	}
	if err := s.transition(StateInitializing); err != nil {
		return nil, err
	}
	result, err := s.handshake(ctx, s.protocolVersion)
	if err != nil {
		result, err = s.fallbackHandshake(ctx, err)
		if err != nil {
			s.fail(err)
			return nil, err
		}
	}
	if !isKnownProtocolVersion(result.ProtocolVersion) {
		mismatch := &ProtocolVersionMismatchError{Requested: s.protocolVersion, Offered: result.ProtocolVersion}
		s.fail(mismatch)
		return nil, mismatch
	}
	s.mu.Lock()
	s.serverInfo = result.ServerInfo
	s.serverCaps = result.Capabilities
	s.mu.Unlock()
	// the server already accepted initialize; a failed follow-up
	// notification is not fatal, but the session only becomes ready once
	// the attempt to flush it has been made.
	_ = s.notify(ctx, "notifications/initialized", nil)
	if err := s.transition(StateReady); err != nil {
		return nil, err
	}
	return result, nil
}

// handshake sends one initialize request at protocolVersion and records it
// as the version the session believes it negotiated at.
func (s *Session) handshake(ctx context.Context, protocolVersion string) (*InitializeResult, error) {
	s.mu.Lock()
	s.protocolVersion = protocolVersion
	s.mu.Unlock()
	params := InitializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo:      s.clientInfo,
		Capabilities:    s.clientCaps,
	}
	result := &InitializeResult{}
	if err := s.call(ctx, "initialize", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// fallbackHandshake retries the handshake over the legacy 2024-11-05
// HTTP+SSE flow when the original failure happened at DefaultProtocolVersion
// and the bound transport supports redialing it. originalErr is returned
// unchanged when no fallback is available or the fallback itself fails.
func (s *Session) fallbackHandshake(ctx context.Context, originalErr error) (*InitializeResult, error) {
	if s.protocolVersion != DefaultProtocolVersion {
		return nil, originalErr
	}
	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()
	dialer, ok := t.(legacyDialer)
	if !ok {
		return nil, originalErr
	}
	legacyTransport, dialErr := dialer.DialLegacy(ctx, s)
	if dialErr != nil {
		return nil, originalErr
	}
	s.mu.Lock()
	s.transport = legacyTransport
	s.mu.Unlock()
	result, err := s.handshake(ctx, legacyProtocolVersion)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Session) notify(ctx context.Context, method string, params interface{}) (err error) {
	ctx, endSpan := observability.StartSpan(ctx, "Session.Notify", attribute.String("method", method))
	defer func() { endSpan(err) }()

	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()
	if t == nil {
		err = fmt.Errorf("mcp: session not bound to a transport")
		return err
	}
	notification := &jsonrpc.Notification{Jsonrpc: jsonrpc.Version, Method: method}
	if params != nil {
		raw, buildErr := jsonrpc.NewRequest(method, params)
		if buildErr != nil {
			err = buildErr
			return err
		}
		notification.Params = raw.Params
	}
	err = t.Notify(ctx, notification)
	return err
}

// Ping is a liveness check; the server is expected to answer with an empty result.
func (s *Session) Ping(ctx context.Context) error {
	if err := s.requireState("Ping", StateReady); err != nil {
		return err
	}
	return s.call(ctx, "ping", struct{}{}, nil)
}

// ListTools returns the tools the server currently exposes.
func (s *Session) ListTools(ctx context.Context) (*ListToolsResult, error) {
	if err := s.requireState("ListTools", StateReady); err != nil {
		return nil, err
	}
	result := &ListToolsResult{}
	if err := s.call(ctx, "tools/list", struct{}{}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// CallTool invokes a named tool with the given arguments.
func (s *Session) CallTool(ctx context.Context, name string, arguments interface{}) (*CallToolResult, error) {
	if err := s.requireState("CallTool", StateReady); err != nil {
		return nil, err
	}
	params := struct {
		Name      string      `json:"name"`
		Arguments interface{} `json:"arguments,omitempty"`
	}{Name: name, Arguments: arguments}
	result := &CallToolResult{}
	if err := s.call(ctx, "tools/call", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListResources returns the resources the server currently exposes.
func (s *Session) ListResources(ctx context.Context) (*ListResourcesResult, error) {
	if err := s.requireState("ListResources", StateReady); err != nil {
		return nil, err
	}
	result := &ListResourcesResult{}
	if err := s.call(ctx, "resources/list", struct{}{}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ReadResource fetches the content of a single resource by URI.
func (s *Session) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	if err := s.requireState("ReadResource", StateReady); err != nil {
		return nil, err
	}
	params := struct {
		URI string `json:"uri"`
	}{URI: uri}
	result := &ReadResourceResult{}
	if err := s.call(ctx, "resources/read", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Subscribe registers interest in update notifications for a resource.
func (s *Session) Subscribe(ctx context.Context, uri string) error {
	if err := s.requireState("Subscribe", StateReady); err != nil {
		return err
	}
	params := struct {
		URI string `json:"uri"`
	}{URI: uri}
	return s.call(ctx, "resources/subscribe", params, nil)
}

// Unsubscribe cancels a prior Subscribe for a resource.
func (s *Session) Unsubscribe(ctx context.Context, uri string) error {
	if err := s.requireState("Unsubscribe", StateReady); err != nil {
		return err
	}
	params := struct {
		URI string `json:"uri"`
	}{URI: uri}
	return s.call(ctx, "resources/unsubscribe", params, nil)
}

// ListPrompts returns the prompt templates the server currently exposes.
func (s *Session) ListPrompts(ctx context.Context) (*ListPromptsResult, error) {
	if err := s.requireState("ListPrompts", StateReady); err != nil {
		return nil, err
	}
	result := &ListPromptsResult{}
	if err := s.call(ctx, "prompts/list", struct{}{}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetPrompt renders a named prompt template with the given arguments.
func (s *Session) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*GetPromptResult, error) {
	if err := s.requireState("GetPrompt", StateReady); err != nil {
		return nil, err
	}
	params := struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments,omitempty"`
	}{Name: name, Arguments: arguments}
	result := &GetPromptResult{}
	if err := s.call(ctx, "prompts/get", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel requests cancellation of a pending request by id: it immediately
// signals the request's local completion with a Cancelled error - so a
// caller blocked in CallTool/ListTools/etc. for that id returns right away
// instead of waiting on the wire - discards any response that later
// arrives for the same id, and emits the notifications/cancelled
// notification as a courtesy to the server. It never fails the session.
func (s *Session) Cancel(ctx context.Context, requestID jsonrpc.RequestId, reason string) error {
	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()
	if canceler, ok := t.(pendingCanceler); ok {
		canceler.CancelPending(requestID, jsonrpc.NewError(jsonrpc.Cancelled, "request cancelled", reason))
	}
	params := struct {
		RequestId jsonrpc.RequestId `json:"requestId"`
		Reason    string            `json:"reason,omitempty"`
	}{RequestId: requestID, Reason: reason}
	return s.notify(ctx, "notifications/cancelled", params)
}

// closer is satisfied by client transports that own a teardown-able
// connection (the process pipe behind stdio.Client, the HTTP connection
// behind streamable.Client). transport.Transport itself carries no Close
// method, so Session only tears one down when the bound value happens to
// offer it.
type closer interface {
	Close() error
}

// Close transitions the session to StateClosed, signalling every pending
// completion on the bound transport with a Cancelled error before tearing
// the transport down (if it exposes a Close method). It is idempotent:
// closing an already-closed session is a no-op. A new or errored session
// moves straight to StateClosed, without cancelling completions or closing
// the transport.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()
	switch cur {
	case StateClosed:
		return nil
	case StateError, StateNew:
		return s.transition(StateClosed)
	}
	if err := s.transition(StateClosing); err != nil {
		return err
	}
	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()
	if canceler, ok := t.(pendingCanceler); ok {
		canceler.CancelAllPending(jsonrpc.NewError(jsonrpc.Cancelled, "session closed", nil))
	}
	if err := s.transition(StateClosed); err != nil {
		return err
	}
	if c, ok := t.(closer); ok {
		return c.Close()
	}
	return nil
}

// Serve implements transport.Handler, answering server-initiated requests
// via the configured RequestHandler.
func (s *Session) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	response.Id = request.Id
	response.Jsonrpc = jsonrpc.Version
	if s.requestHandler == nil {
		response.Error = jsonrpc.NewMethodNotFound(request.Id, fmt.Errorf("method %v not found", request.Method), nil)
		return
	}
	result, rpcErr := s.requestHandler(ctx, request.Method, request.Params)
	if rpcErr != nil {
		response.Error = rpcErr
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		response.Error = jsonrpc.NewInternalError(request.Id, err, nil)
		return
	}
	response.Result = data
}

// OnNotification implements transport.Handler, forwarding server-initiated
// notifications to the configured NotificationHandler.
func (s *Session) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	if s.notifyHandler == nil {
		return
	}
	s.notifyHandler(ctx, notification.Method, notification.Params)
}
