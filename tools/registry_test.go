package tools

import (
	"context"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

type testTool struct {
	name    string
	kind    string
	primary string
}

func (t *testTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       t.name,
		Description: "Test tool",
		Type:        "object",
	}
}

func (t *testTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return "test result", nil
}

func (t *testTool) GetType() string {
	return t.kind
}

func (t *testTool) PrimaryField() string {
	return t.primary
}

func TestNewToolRegistry(t *testing.T) {
	registry := NewToolRegistry([]Tool{
		&testTool{name: "tool1"},
		&testTool{name: "tool2"},
	})

	if len(registry.All()) != 2 {
		t.Errorf("Expected 2 tools, got %d", len(registry.All()))
	}
}

func TestRegistryGet(t *testing.T) {
	registry := NewToolRegistry(nil)
	tool := &testTool{name: "test-tool"}
	registry.Register(tool)

	retrieved, exists := registry.Get("test-tool")
	if !exists {
		t.Fatal("Expected tool to exist")
	}
	if retrieved != tool {
		t.Error("Expected to get the same tool instance")
	}

	if _, exists := registry.Get("non-existent"); exists {
		t.Error("Expected non-existent tool to not exist")
	}
}

func TestRegistryReplaceAndRemove(t *testing.T) {
	registry := NewToolRegistry([]Tool{&testTool{name: "dup", kind: "local"}})
	registry.Register(&testTool{name: "dup", kind: "http"})

	if len(registry.All()) != 1 {
		t.Fatalf("Expected re-registration to replace, got %d tools", len(registry.All()))
	}
	if kind, _ := registry.Kind("dup"); kind != KindHTTP {
		t.Errorf("Expected replaced kind http, got %s", kind)
	}

	registry.Remove("dup")
	if _, exists := registry.Get("dup"); exists {
		t.Error("Expected tool to be removed")
	}
}

func TestRegistryKinds(t *testing.T) {
	registry := NewToolRegistry([]Tool{
		&testTool{name: "plain"},
		&testTool{name: "remote", kind: "http"},
		&testTool{name: "odd", kind: "teleport"},
		NewWebSearchTool(),
		NewHelpSearchTool(&fakeSearcher{}, nil),
	})

	tests := map[string]Kind{
		"plain":        KindLocal,
		"remote":       KindHTTP,
		"odd":          KindLocal,
		"web_search":   KindNative,
		HelpSearchTool: KindSubAgent,
	}
	for name, expected := range tests {
		kind, ok := registry.Kind(name)
		if !ok {
			t.Errorf("Expected %s to be registered", name)
			continue
		}
		if kind != expected {
			t.Errorf("Expected %s to route as %s, got %s", name, expected, kind)
		}
	}
}

func TestRegistryAllSorted(t *testing.T) {
	registry := NewToolRegistry([]Tool{
		&testTool{name: "zeta"},
		&testTool{name: "alpha"},
		&testTool{name: "mid"},
	})

	schemas := registry.GetSchemas()
	expected := []string{"alpha", "mid", "zeta"}
	for i, s := range schemas {
		if s.Title != expected[i] {
			t.Errorf("Expected %s at %d, got %s", expected[i], i, s.Title)
		}
	}
}

func TestRegistryPrimaryField(t *testing.T) {
	registry := NewToolRegistry([]Tool{
		&testTool{name: "with", primary: "date_str"},
		&DateTool{},
	})

	if got := registry.PrimaryField("with"); got != "date_str" {
		t.Errorf("Expected date_str, got %s", got)
	}
	if got := registry.PrimaryField("is_date_in_future"); got != "date_str" {
		t.Errorf("Expected date_str, got %s", got)
	}
	if got := registry.PrimaryField("missing"); got != "" {
		t.Errorf("Expected empty field for unknown tool, got %s", got)
	}
}
