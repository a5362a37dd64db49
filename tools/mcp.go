package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// MCPTool wraps an MCP server tool so it can be routed like any other tool
type MCPTool struct {
	session      *mcp.ClientSession
	tool         *mcp.Tool
	Source       string // Server spec that provided this tool
	cachedSchema *jsonschema.Schema
}

// NewMCPTool creates a new MCP tool wrapper
func NewMCPTool(session *mcp.ClientSession, tool *mcp.Tool) *MCPTool {
	return &MCPTool{
		session: session,
		tool:    tool,
	}
}

// GetSchema converts the server's input schema, cached after first call
func (m *MCPTool) GetSchema() *jsonschema.Schema {
	if m.cachedSchema == nil {
		m.cachedSchema = convertMCPSchema(m.tool)
	}
	return m.cachedSchema
}

func convertMCPSchema(tool *mcp.Tool) *jsonschema.Schema {
	fallback := &jsonschema.Schema{
		Title:       tool.Name,
		Description: tool.Description,
		Type:        "object",
	}
	if tool.InputSchema == nil {
		return fallback
	}

	data, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return fallback
	}
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(data, schema); err != nil {
		zap.S().Debugw("mcp_schema_unparsed", "tool", tool.Name, "error", err)
		return fallback
	}

	// the registry routes on Title
	schema.Title = tool.Name
	if schema.Description == "" {
		schema.Description = tool.Description
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}

// GetType returns "mcp" for MCP tools
func (m *MCPTool) GetType() string {
	return string(KindMCP)
}

// Execute calls the tool on its MCP server
func (m *MCPTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	zap.S().Debugw("mcp_tool_call", "tool", m.tool.Name, "source", m.Source, "args", args)

	if args == nil {
		args = make(map[string]any)
	}

	result, err := m.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      m.tool.Name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("MCP tool execution failed: %w", err)
	}

	if result.IsError {
		if len(result.Content) > 0 {
			return "", fmt.Errorf("tool returned error: %s", contentText(result.Content))
		}
		return "", fmt.Errorf("tool returned error without content")
	}

	return contentText(result.Content), nil
}

// contentText joins text content and JSON-encodes anything else
func contentText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if text, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
			continue
		}
		data, err := json.Marshal(c)
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n")
}

// MCPConfig represents the JSON configuration for an MCP server
type MCPConfig struct {
	// Local/stdio transport fields
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// Remote transport fields
	URL       string            `json:"url,omitempty"`
	Transport string            `json:"transport,omitempty"` // "stdio" | "sse" | "streamable"
	Headers   map[string]string `json:"headers,omitempty"`
	Timeout   string            `json:"timeout,omitempty"` // e.g. "30s"
}

// MCPServersConfig is the {"mcpServers": {...}} file format
type MCPServersConfig struct {
	MCPServers map[string]MCPConfig `json:"mcpServers"`
}

// ParseServerSpec splits "path/to/config.json#servername" into its parts
func ParseServerSpec(spec string) (jsonFile string, serverName string) {
	if idx := strings.LastIndex(spec, "#"); idx != -1 {
		if strings.HasSuffix(spec[:idx], ".json") {
			return spec[:idx], spec[idx+1:]
		}
	}
	return spec, ""
}

// LoadMCPConfigFile parses a config file and returns server configs
func LoadMCPConfigFile(jsonFile string) (map[string]MCPConfig, error) {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read MCP config file %s: %w", jsonFile, err)
	}

	var multiConfig MCPServersConfig
	if err := json.Unmarshal(data, &multiConfig); err != nil {
		return nil, fmt.Errorf("failed to parse MCP config: %w", err)
	}

	if len(multiConfig.MCPServers) == 0 {
		return nil, fmt.Errorf("no servers defined in mcpServers (use format: {\"mcpServers\": {\"name\": {...}}})")
	}

	return multiConfig.MCPServers, nil
}

// SelectServer picks the named server, or the only one when no name is given
func SelectServer(configs map[string]MCPConfig, jsonFile, serverName string) (MCPConfig, string, error) {
	available := make([]string, 0, len(configs))
	for name := range configs {
		available = append(available, name)
	}
	sort.Strings(available)

	if serverName != "" {
		cfg, ok := configs[serverName]
		if !ok {
			return MCPConfig{}, "", fmt.Errorf("server %q not found in config (available: %v)", serverName, available)
		}
		return cfg, serverName, nil
	}
	if len(configs) == 1 {
		return configs[available[0]], available[0], nil
	}
	return MCPConfig{}, "", fmt.Errorf("config has multiple servers, specify one: %s#<servername> (available: %v)", jsonFile, available)
}

// GetMCPDisplayName returns "file.json#server → command args" for a server spec
func GetMCPDisplayName(serverSpec string) string {
	jsonFile, serverName := ParseServerSpec(serverSpec)
	if !strings.HasSuffix(jsonFile, ".json") {
		return serverSpec
	}

	configs, err := LoadMCPConfigFile(jsonFile)
	if err != nil {
		return serverSpec
	}
	cfg, _, err := SelectServer(configs, jsonFile, serverName)
	if err != nil {
		return serverSpec
	}

	switch cfg.Transport {
	case "sse", "streamable":
		return fmt.Sprintf("%s → %s (%s)", serverSpec, cfg.URL, cfg.Transport)
	default:
		return fmt.Sprintf("%s → %s", serverSpec, strings.Join(append([]string{cfg.Command}, cfg.Args...), " "))
	}
}

// headerRoundTripper injects custom headers into every request
type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	return h.base.RoundTrip(req)
}

func httpClientWithTimeout(headers map[string]string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &headerRoundTripper{
			base:    http.DefaultTransport,
			headers: headers,
		},
	}
}

// MCPClient manages the connection to one MCP server
type MCPClient struct {
	session    *mcp.ClientSession
	serverSpec string
}

// NewMCPClient connects to the server named by a spec
func NewMCPClient(ctx context.Context, serverSpec string) (*MCPClient, error) {
	jsonFile, serverName := ParseServerSpec(serverSpec)
	if !strings.HasSuffix(jsonFile, ".json") {
		return nil, fmt.Errorf("MCP servers must be defined in JSON files (got %s)", jsonFile)
	}

	configs, err := LoadMCPConfigFile(jsonFile)
	if err != nil {
		return nil, err
	}
	config, namespace, err := SelectServer(configs, jsonFile, serverName)
	if err != nil {
		return nil, err
	}

	zap.S().Debugw("mcp_config_loaded", "file", jsonFile, "server", namespace)
	client, err := NewMCPClientFromConfig(ctx, &config)
	if err != nil {
		return nil, err
	}
	client.serverSpec = serverSpec
	return client, nil
}

// mcpTransport builds the client transport for a server config
func mcpTransport(config *MCPConfig) (mcp.Transport, error) {
	timeout := 30 * time.Second
	if config.Timeout != "" {
		if t, err := time.ParseDuration(config.Timeout); err == nil {
			timeout = t
		}
	}

	switch config.Transport {
	case "sse":
		if config.URL == "" {
			return nil, fmt.Errorf("SSE transport requires a URL")
		}
		return &mcp.SSEClientTransport{
			Endpoint:   config.URL,
			HTTPClient: httpClientWithTimeout(config.Headers, timeout),
		}, nil

	case "streamable":
		if config.URL == "" {
			return nil, fmt.Errorf("streamable transport requires a URL")
		}
		return &mcp.StreamableClientTransport{
			Endpoint:   config.URL,
			HTTPClient: httpClientWithTimeout(config.Headers, timeout),
		}, nil

	case "stdio", "":
		if config.Command == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		cmd := exec.Command(config.Command, config.Args...)
		if len(config.Env) > 0 {
			cmd.Env = os.Environ()
			for key, value := range config.Env {
				cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
			}
		}
		return &mcp.CommandTransport{Command: cmd}, nil

	default:
		return nil, fmt.Errorf("unknown transport type: %s (supported: stdio, sse, streamable)", config.Transport)
	}
}

// NewMCPClientFromConfig connects to an MCP server described by config
func NewMCPClientFromConfig(ctx context.Context, config *MCPConfig) (*MCPClient, error) {
	transport, err := mcpTransport(config)
	if err != nil {
		return nil, err
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "jurisearch",
		Version: "1.0.0",
	}, nil)

	zap.S().Debugw("mcp_connecting", "transport", config.Transport, "command", config.Command, "url", config.URL)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server: %w", err)
	}
	return &MCPClient{session: session}, nil
}

// ListTools returns all tools available from the MCP server
func (c *MCPClient) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("error listing tools: %w", err)
		}
		if tool == nil {
			continue
		}
		zap.S().Debugw("mcp_tool_loaded", "name", tool.Name, "source", c.serverSpec)
		mcpTool := NewMCPTool(c.session, tool)
		mcpTool.Source = c.serverSpec
		tools = append(tools, mcpTool)
	}
	return tools, nil
}

// Close closes the MCP client connection
func (c *MCPClient) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// LoadMCPTools connects to every server spec and collects their tools. The
// returned clients must be closed by the caller.
func LoadMCPTools(ctx context.Context, specs []string) ([]Tool, []*MCPClient, error) {
	var all []Tool
	var clients []*MCPClient
	for _, spec := range specs {
		client, err := NewMCPClient(ctx, spec)
		if err != nil {
			closeAll(clients)
			return nil, nil, fmt.Errorf("failed to load MCP server %s: %w", spec, err)
		}
		clients = append(clients, client)

		tools, err := client.ListTools(ctx)
		if err != nil {
			closeAll(clients)
			return nil, nil, fmt.Errorf("failed to list tools from %s: %w", spec, err)
		}
		all = append(all, tools...)
	}
	return all, clients, nil
}

func closeAll(clients []*MCPClient) {
	for _, c := range clients {
		if err := c.Close(); err != nil {
			zap.S().Debugw("mcp_close_failed", "source", c.serverSpec, "error", err)
		}
	}
}
