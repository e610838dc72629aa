package registry

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestRegistry_RegisterGetList(t *testing.T) {
	reg := New[int]()
	if err := reg.Register(&Entry[int]{Name: "a", Value: 1}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register(&Entry[int]{Name: "b", Value: 2}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	entry, ok := reg.Get("a")
	if !ok || entry.Value != 1 {
		t.Fatalf("Get(a) = %v, %v", entry, ok)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", reg.Len())
	}
	if len(reg.List()) != 2 {
		t.Fatalf("expected List to return 2 entries")
	}
}

func TestRegistry_RegisterEmptyName(t *testing.T) {
	reg := New[int]()
	if err := reg.Register(&Entry[int]{Name: "", Value: 1}); err == nil {
		t.Fatalf("expected error registering an empty name")
	}
}

func TestRegistry_ValidateAgainstSchema(t *testing.T) {
	reg := New[int]()
	schema := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"name"},
		Properties: map[string]*jsonschema.Schema{
			"name": {Type: "string"},
		},
	}
	if err := reg.Register(&Entry[int]{Name: "greet", Schema: schema, Value: 1}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Validate("greet", map[string]interface{}{"name": "ada"}); err != nil {
		t.Fatalf("expected valid args to pass, got: %v", err)
	}
	if err := reg.Validate("greet", map[string]interface{}{}); err == nil {
		t.Fatalf("expected missing required property to fail validation")
	}
}

func TestRegistry_ValidateUnknownEntry(t *testing.T) {
	reg := New[int]()
	if err := reg.Validate("missing", nil); err == nil {
		t.Fatalf("expected error validating an unregistered entry")
	}
}
