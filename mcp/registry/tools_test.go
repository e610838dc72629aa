package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestToolRegistry_ListAndExecute(t *testing.T) {
	tools := NewToolRegistry()
	schema := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"value"},
		Properties: map[string]*jsonschema.Schema{
			"value": {Type: "string"},
		},
	}
	err := tools.Register("echo", "echoes its input", schema, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"text": params.Value})
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	list := tools.List()
	if len(list) != 1 || list[0].Name != "echo" {
		t.Fatalf("unexpected tool list: %+v", list)
	}

	result, err := tools.Execute(context.Background(), "echo", json.RawMessage(`{"value":"hi"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["text"] != "hi" {
		t.Fatalf("unexpected result: %+v", decoded)
	}
}

func TestToolRegistry_ExecuteInvalidArgs(t *testing.T) {
	tools := NewToolRegistry()
	schema := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"value"},
		Properties: map[string]*jsonschema.Schema{
			"value": {Type: "string"},
		},
	}
	_ = tools.Register("echo", "", schema, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})

	if _, err := tools.Execute(context.Background(), "echo", json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected invalid args error")
	} else if _, ok := err.(*InvalidArgsError); !ok {
		t.Fatalf("expected *InvalidArgsError, got %T: %v", err, err)
	}
}

func TestToolRegistry_ExecuteUnknownTool(t *testing.T) {
	tools := NewToolRegistry()
	if _, err := tools.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatalf("expected not-found error")
	} else if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %T: %v", err, err)
	}
}
