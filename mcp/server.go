package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/mcprpc"
	"github.com/viant/mcprpc/mcp/policy"
	"github.com/viant/mcprpc/mcp/registry"
	"github.com/viant/mcprpc/transport"
)

// Server holds the registries and policy a dispatch Handler is built
// against. One Server backs every connection a transport server accepts;
// NewHandler returns the transport.NewHandler factory that builds one
// per-connection dispatcher per spec's session-per-connection model.
type Server struct {
	Info         ServerInfo
	Capabilities Capabilities

	Tools     *registry.ToolRegistry
	Prompts   *registry.PromptRegistry
	Resources *registry.ResourceRegistry

	// Policy gates tools/call dispatch. A nil Policy allows every call.
	Policy *policy.Policy
}

// NewServer constructs a Server with empty registries and no policy
// (allow-all) ready for Register calls before serving any connection.
func NewServer(info ServerInfo) *Server {
	return &Server{
		Info:      info,
		Tools:     registry.NewToolRegistry(),
		Prompts:   registry.NewPromptRegistry(),
		Resources: registry.NewResourceRegistry(),
	}
}

// NewHandler returns the transport.NewHandler factory a transport server
// (transport/server/base.Session, sse.New, streamable.New, stdio/server.New)
// invokes once per accepted connection.
func (srv *Server) NewHandler() transport.NewHandler {
	return func(ctx context.Context, t transport.Transport) transport.Handler {
		return &serverSession{server: srv, transport: t}
	}
}

// serverSession is the per-connection dispatcher a Server hands out. It
// tracks only what's needed to answer requests on this connection: the
// session id resources/subscribe records subscriptions under. It does not
// embed mcp.Session - that type is the client-side façade over an outbound
// transport.Transport, while serverSession answers inbound requests
// arriving over the same transport a server accepted a connection on.
type serverSession struct {
	server    *Server
	transport transport.Transport
	sessionID string
}

func (s *serverSession) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	response.Id = request.Id
	response.Jsonrpc = jsonrpc.Version

	var result json.RawMessage
	var err error
	switch request.Method {
	case "initialize":
		result, err = s.initialize(request.Params)
	case "ping":
		result = json.RawMessage(`{}`)
	case "tools/list":
		result, err = marshalListToolsResult(s.server.Tools.List())
	case "tools/call":
		result, err = s.callTool(ctx, request.Params)
	case "resources/list":
		result, err = marshalListResourcesResult(s.server.Resources.List())
	case "resources/read":
		result, err = s.readResource(ctx, request.Params)
	case "resources/subscribe":
		err = s.subscribe(request.Params)
		result = json.RawMessage(`{}`)
	case "resources/unsubscribe":
		err = s.unsubscribe(request.Params)
		result = json.RawMessage(`{}`)
	case "prompts/list":
		result, err = marshalListPromptsResult(s.server.Prompts.List())
	case "prompts/get":
		result, err = s.getPrompt(ctx, request.Params)
	default:
		response.Error = jsonrpc.NewMethodNotFound(request.Id, fmt.Errorf("method %v not found", request.Method), nil)
		return
	}

	if err != nil {
		response.Error = toJSONRPCError(request.Id, err)
		return
	}
	response.Result = result
}

// OnNotification handles client-sent notifications, e.g.
// notifications/initialized (a no-op acknowledgment here since serverSession
// has no per-session ready-state to flip) and notifications/cancelled.
func (s *serverSession) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	// intentionally inert: serverSession has nothing to cancel or acknowledge
	// beyond what the transport layer already does for framing.
}

func (s *serverSession) initialize(params json.RawMessage) (json.RawMessage, error) {
	var req InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &invalidParamsError{err: err}
		}
	}
	// Negotiate down to DefaultProtocolVersion unless the client explicitly
	// asked for the legacy revision, which this server also speaks - the
	// server side of the fallback mcp.Session.Initialize drives from the
	// client when its DefaultProtocolVersion handshake fails.
	negotiated := DefaultProtocolVersion
	if req.ProtocolVersion == legacyProtocolVersion {
		negotiated = req.ProtocolVersion
	}
	return json.Marshal(&InitializeResult{
		ProtocolVersion: negotiated,
		ServerInfo:      s.server.Info,
		Capabilities:    s.server.Capabilities,
	})
}

func (s *serverSession) callTool(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &invalidParamsError{err: err}
	}
	if s.server.Policy != nil {
		var args map[string]interface{}
		if len(req.Arguments) > 0 {
			_ = json.Unmarshal(req.Arguments, &args)
		}
		allowed, err := s.server.Policy.Evaluate(ctx, req.Name, args, map[string]interface{}{"sessionId": s.sessionID})
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, &PermissionError{Tool: req.Name}
		}
	}
	return s.server.Tools.Execute(ctx, req.Name, req.Arguments)
}

func (s *serverSession) readResource(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &invalidParamsError{err: err}
	}
	return s.server.Resources.Read(ctx, req.URI)
}

func (s *serverSession) subscribe(params json.RawMessage) error {
	var req struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return &invalidParamsError{err: err}
	}
	return s.server.Resources.Subscribe(req.URI, s.sessionID)
}

func (s *serverSession) unsubscribe(params json.RawMessage) error {
	var req struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return &invalidParamsError{err: err}
	}
	s.server.Resources.Unsubscribe(req.URI, s.sessionID)
	return nil
}

func (s *serverSession) getPrompt(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments,omitempty"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &invalidParamsError{err: err}
	}
	return s.server.Prompts.Get(ctx, req.Name, req.Arguments)
}

// marshalListToolsResult adapts registry.ToolInfo (which carries no mcp
// dependency, see mcp/registry/tools.go) into the wire ListToolsResult shape.
func marshalListToolsResult(infos []registry.ToolInfo) (json.RawMessage, error) {
	result := ListToolsResult{Tools: make([]Tool, 0, len(infos))}
	for _, info := range infos {
		tool := Tool{Name: info.Name, Description: info.Description}
		if info.Schema != nil {
			if raw, err := json.Marshal(info.Schema); err == nil {
				tool.InputSchema = raw
			}
		}
		result.Tools = append(result.Tools, tool)
	}
	return json.Marshal(&result)
}

func marshalListResourcesResult(infos []registry.ResourceInfo) (json.RawMessage, error) {
	result := ListResourcesResult{Resources: make([]Resource, 0, len(infos))}
	for _, info := range infos {
		result.Resources = append(result.Resources, Resource{
			URI:         info.URI,
			Name:        info.Name,
			Description: info.Description,
			MimeType:    info.MimeType,
		})
	}
	return json.Marshal(&result)
}

func marshalListPromptsResult(infos []registry.PromptInfo) (json.RawMessage, error) {
	result := ListPromptsResult{Prompts: make([]Prompt, 0, len(infos))}
	for _, info := range infos {
		args := make([]PromptArgument, 0, len(info.Arguments))
		for _, arg := range info.Arguments {
			args = append(args, PromptArgument{Name: arg.Name, Description: arg.Description, Required: arg.Required})
		}
		result.Prompts = append(result.Prompts, Prompt{Name: info.Name, Description: info.Description, Arguments: args})
	}
	return json.Marshal(&result)
}

// invalidParamsError marks a request.Params decode failure for
// toJSONRPCError to map to jsonrpc.InvalidParams rather than a generic
// internal error.
type invalidParamsError struct{ err error }

func (e *invalidParamsError) Error() string { return e.err.Error() }
func (e *invalidParamsError) Unwrap() error { return e.err }

// toJSONRPCError classifies a dispatch error into the matching JSON-RPC
// error code: registry.NotFoundError -> MethodNotFound, invalidParamsError
// and registry.InvalidArgsError -> InvalidParams, *PermissionError -> its
// own reserved code, anything else -> InternalError.
func toJSONRPCError(id jsonrpc.RequestId, err error) *jsonrpc.Error {
	switch e := err.(type) {
	case *registry.NotFoundError:
		return jsonrpc.NewMethodNotFound(id, e, nil)
	case *registry.InvalidArgsError:
		return jsonrpc.NewInvalidParams(id, e, nil)
	case *invalidParamsError:
		return jsonrpc.NewInvalidParams(id, e, nil)
	case *PermissionError:
		return jsonrpc.NewError(e.Code(), e.Error(), nil)
	default:
		return jsonrpc.NewInternalError(id, e, nil)
	}
}
