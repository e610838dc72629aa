package registry

import (
	"context"
	"encoding/json"
	"testing"
)

func TestPromptRegistry_GetRendersAndValidates(t *testing.T) {
	prompts := NewPromptRegistry()
	args := []PromptArgument{{Name: "topic", Required: true}}
	err := prompts.Register("summarize", "summarizes a topic", args, func(ctx context.Context, arguments map[string]string) (json.RawMessage, error) {
		return json.Marshal(map[string]string{"text": "summarize " + arguments["topic"]})
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	list := prompts.List()
	if len(list) != 1 || len(list[0].Arguments) != 1 {
		t.Fatalf("unexpected prompt list: %+v", list)
	}

	result, err := prompts.Get(context.Background(), "summarize", map[string]string{"topic": "go"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["text"] != "summarize go" {
		t.Fatalf("unexpected rendered prompt: %+v", decoded)
	}

	if _, err := prompts.Get(context.Background(), "summarize", map[string]string{}); err == nil {
		t.Fatalf("expected error for missing required argument")
	} else if _, ok := err.(*InvalidArgsError); !ok {
		t.Fatalf("expected *InvalidArgsError, got %T: %v", err, err)
	}
}

func TestPromptRegistry_GetUnknownPrompt(t *testing.T) {
	prompts := NewPromptRegistry()
	if _, err := prompts.Get(context.Background(), "missing", nil); err == nil {
		t.Fatalf("expected not-found error")
	} else if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %T: %v", err, err)
	}
}
