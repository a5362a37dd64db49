package tools

import (
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"
)

// route is one entry of the dispatch table
type route struct {
	tool    Tool
	kind    Kind
	handler handler
}

// ToolRegistry is the name → route table built at session start
type ToolRegistry struct {
	mu     sync.RWMutex
	routes map[string]route
}

// NewToolRegistry creates a new tool registry from a list of tools
func NewToolRegistry(tools []Tool) *ToolRegistry {
	registry := &ToolRegistry{
		routes: make(map[string]route),
	}

	for _, tool := range tools {
		registry.Register(tool)
	}

	return registry
}

// Register adds a tool to the registry, replacing any tool of the same name
func (r *ToolRegistry) Register(tool Tool) {
	name := ToolName(tool)
	kind := KindOf(tool)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[name] = route{tool: tool, kind: kind, handler: handlerFor(tool, kind)}
	zap.S().Debugw("tool_registered", "name", name, "kind", kind)
}

// Get retrieves a tool by name
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.routes[name]
	return rt.tool, ok
}

// Kind returns the dispatch kind of a registered tool
func (r *ToolRegistry) Kind(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.routes[name]
	return rt.kind, ok
}

func (r *ToolRegistry) lookup(name string) (route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.routes[name]
	return rt, ok
}

// Remove removes a tool by name from the registry
func (r *ToolRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[name]; ok {
		delete(r.routes, name)
		zap.S().Debugw("tool_removed", "name", name)
	}
}

// All returns all tools in the registry, sorted by name
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.routes[name].tool)
	}
	return tools
}

// GetSchemas returns all tool schemas
func (r *ToolRegistry) GetSchemas() []*jsonschema.Schema {
	tools := r.All()
	schemas := make([]*jsonschema.Schema, 0, len(tools))
	for _, tool := range tools {
		schemas = append(schemas, tool.GetSchema())
	}
	return schemas
}

// PrimaryField returns the argument shown for a tool while it streams in
func (r *ToolRegistry) PrimaryField(name string) string {
	tool, ok := r.Get(name)
	if !ok {
		return ""
	}
	if p, ok := tool.(PrimaryArgument); ok {
		return p.PrimaryField()
	}
	return ""
}
