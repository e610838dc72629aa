package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/viant/mcprpc"
	"github.com/viant/mcprpc/mcp/policy"
	"github.com/viant/mcprpc/mcp/registry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(ServerInfo{Name: "test-server", Version: "1.0.0"})
	err := srv.Tools.Register("echo", "", nil, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params struct {
			Value string `json:"value"`
		}
		_ = json.Unmarshal(args, &params)
		return json.Marshal(&CallToolResult{Content: []ContentBlock{{Type: "text", Text: params.Value}}})
	})
	if err != nil {
		t.Fatalf("Register tool failed: %v", err)
	}
	if err := srv.Resources.Register(registry.ResourceInfo{URI: "file:///a.txt", Name: "a"}, func(ctx context.Context, uri string) (json.RawMessage, error) {
		return json.Marshal(&ReadResourceResult{Contents: []ResourceContent{{URI: uri, Text: "hello"}}})
	}); err != nil {
		t.Fatalf("Register resource failed: %v", err)
	}
	return srv
}

func serve(srv *Server, method string, params interface{}) *jsonrpc.Response {
	handler := srv.NewHandler()(context.Background(), &mockTransport{})
	raw, _ := json.Marshal(params)
	response := &jsonrpc.Response{}
	handler.Serve(context.Background(), &jsonrpc.Request{Id: 1, Jsonrpc: jsonrpc.Version, Method: method, Params: raw}, response)
	return response
}

func TestServer_Initialize(t *testing.T) {
	response := serve(newTestServer(t), "initialize", InitializeParams{ProtocolVersion: DefaultProtocolVersion})
	if response.Error != nil {
		t.Fatalf("unexpected error: %v", response.Error)
	}
	var result InitializeResult
	if err := json.Unmarshal(response.Result, &result); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if result.ServerInfo.Name != "test-server" {
		t.Fatalf("unexpected server info: %+v", result)
	}
}

func TestServer_ToolsListAndCall(t *testing.T) {
	srv := newTestServer(t)
	listResp := serve(srv, "tools/list", struct{}{})
	if listResp.Error != nil {
		t.Fatalf("unexpected error: %v", listResp.Error)
	}
	var list ListToolsResult
	_ = json.Unmarshal(listResp.Result, &list)
	if len(list.Tools) != 1 || list.Tools[0].Name != "echo" {
		t.Fatalf("unexpected tool list: %+v", list)
	}

	callResp := serve(srv, "tools/call", map[string]interface{}{"name": "echo", "arguments": map[string]string{"value": "hi"}})
	if callResp.Error != nil {
		t.Fatalf("unexpected error: %v", callResp.Error)
	}
	var result CallToolResult
	_ = json.Unmarshal(callResp.Result, &result)
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Fatalf("unexpected call result: %+v", result)
	}
}

func TestServer_ToolsCallUnknownToolIsMethodNotFound(t *testing.T) {
	response := serve(newTestServer(t), "tools/call", map[string]interface{}{"name": "missing"})
	if response.Error == nil || response.Error.Code != jsonrpc.MethodNotFound {
		t.Fatalf("expected MethodNotFound, got %v", response.Error)
	}
}

func TestServer_ResourcesReadUnknownURIIsMethodNotFound(t *testing.T) {
	response := serve(newTestServer(t), "resources/read", map[string]string{"uri": "file:///missing.txt"})
	if response.Error == nil || response.Error.Code != jsonrpc.MethodNotFound {
		t.Fatalf("expected MethodNotFound, got %v", response.Error)
	}
}

func TestServer_ResourcesRead(t *testing.T) {
	response := serve(newTestServer(t), "resources/read", map[string]string{"uri": "file:///a.txt"})
	if response.Error != nil {
		t.Fatalf("unexpected error: %v", response.Error)
	}
	var result ReadResourceResult
	_ = json.Unmarshal(response.Result, &result)
	if result.Contents[0].Text != "hello" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestServer_UnknownMethod(t *testing.T) {
	response := serve(newTestServer(t), "sampling/createMessage", struct{}{})
	if response.Error == nil || response.Error.Code != jsonrpc.MethodNotFound {
		t.Fatalf("expected MethodNotFound, got %v", response.Error)
	}
}

func TestServer_PolicyDeniesToolCall(t *testing.T) {
	srv := newTestServer(t)
	pol, err := policy.New()
	if err != nil {
		t.Fatalf("policy.New failed: %v", err)
	}
	if err := pol.Allow("echo", `false`); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	srv.Policy = pol

	response := serve(srv, "tools/call", map[string]interface{}{"name": "echo", "arguments": map[string]string{"value": "hi"}})
	if response.Error == nil {
		t.Fatalf("expected policy to deny the call")
	}
	if response.Error.Code != (&PermissionError{}).Code() {
		t.Fatalf("expected PermissionError code, got %d", response.Error.Code)
	}
}
