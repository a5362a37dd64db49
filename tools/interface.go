package tools

import (
	"context"

	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is the generic interface for all tools. The schema Title is the tool name.
type Tool interface {
	GetSchema() *jsonschema.Schema
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Kind is the dispatch route of a tool
type Kind string

const (
	// KindNative tools are executed by the provider itself
	KindNative Kind = "native"
	// KindLocal tools are pure functions run in-process
	KindLocal Kind = "local"
	// KindSubAgent tools delegate to a secondary search provider
	KindSubAgent Kind = "subagent"
	// KindHTTP tools wrap a remote HTTP API
	KindHTTP Kind = "http"
	// KindMCP tools are served by an MCP server
	KindMCP Kind = "mcp"
)

// TypedTool reports its dispatch kind; tools without it are local
type TypedTool interface {
	GetType() string
}

// PrimaryArgument names the argument shown while a call streams in and used
// when only that argument could be salvaged from a partial payload
type PrimaryArgument interface {
	PrimaryField() string
}

// Searcher runs one sub-agent search
type Searcher interface {
	Execute(ctx context.Context, query string, domains []string) messages.SearchResult
}

// SearchTool is a tool whose result is reinjected into the conversation
type SearchTool interface {
	Tool
	Search(ctx context.Context, query string) messages.SearchResult
	Mode() messages.ReinjectionMode
}

// ToolName returns the registered name of a tool
func ToolName(tool Tool) string {
	if schema := tool.GetSchema(); schema != nil {
		return schema.Title
	}
	return ""
}

// KindOf returns the dispatch kind of a tool
func KindOf(tool Tool) Kind {
	if _, ok := tool.(SearchTool); ok {
		return KindSubAgent
	}
	if typed, ok := tool.(TypedTool); ok {
		switch k := Kind(typed.GetType()); k {
		case KindNative, KindLocal, KindSubAgent, KindHTTP, KindMCP:
			return k
		}
	}
	return KindLocal
}
