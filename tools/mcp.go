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

const defaultMCPTimeout = 30 * time.Second

// MCPTool wraps a tool served by an external MCP server
type MCPTool struct {
	session *mcp.ClientSession
	tool    *mcp.Tool
	schema  *jsonschema.Schema
}

// NewMCPTool creates a new MCP tool wrapper
func NewMCPTool(session *mcp.ClientSession, tool *mcp.Tool) *MCPTool {
	return &MCPTool{
		session: session,
		tool:    tool,
		schema:  convertInputSchema(tool),
	}
}

// convertInputSchema reads the server's input schema, falling back to an
// empty object schema when it cannot be decoded
func convertInputSchema(tool *mcp.Tool) *jsonschema.Schema {
	schema := &jsonschema.Schema{}
	if tool.InputSchema != nil {
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil || json.Unmarshal(raw, schema) != nil {
			schema = &jsonschema.Schema{}
		}
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	if schema.Title == "" {
		schema.Title = tool.Name
	}
	if schema.Description == "" {
		schema.Description = tool.Description
	}
	return schema
}

func (m *MCPTool) GetSchema() *jsonschema.Schema {
	return m.schema
}

// Execute calls the tool on its server and returns the text content
func (m *MCPTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = make(map[string]any)
	}

	result, err := m.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      m.tool.Name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcp tool %s failed: %w", m.tool.Name, err)
	}

	text := contentText(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool returned error without content"
		}
		return "", fmt.Errorf("mcp tool %s: %s", m.tool.Name, text)
	}
	return text, nil
}

// contentText joins the text parts of a tool result; other parts are
// rendered as JSON
func contentText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
			continue
		}
		if raw, err := json.Marshal(c); err == nil {
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "\n")
}

// MCPConfig describes how to reach one MCP server
type MCPConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	URL       string            `json:"url,omitempty"`
	Transport string            `json:"transport,omitempty"` // stdio, sse or streamable
	Headers   map[string]string `json:"headers,omitempty"`
	Timeout   string            `json:"timeout,omitempty"`
}

// MCPServersConfig is the {"mcpServers": {...}} file format
type MCPServersConfig struct {
	MCPServers map[string]MCPConfig `json:"mcpServers"`
}

// ParseServerSpec splits "config.json#server" into file and server name
func ParseServerSpec(spec string) (jsonFile string, serverName string) {
	if idx := strings.LastIndex(spec, "#"); idx != -1 {
		if strings.HasSuffix(spec[:idx], ".json") {
			return spec[:idx], spec[idx+1:]
		}
	}
	return spec, ""
}

// LoadMCPConfigFile reads the server definitions in jsonFile
func LoadMCPConfigFile(jsonFile string) (map[string]MCPConfig, error) {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read MCP config file %s: %w", jsonFile, err)
	}

	var cfg MCPServersConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse MCP config: %w", err)
	}
	if len(cfg.MCPServers) == 0 {
		return nil, fmt.Errorf("no servers defined in mcpServers")
	}
	return cfg.MCPServers, nil
}

// SelectServer picks the named server, or the only one when name is empty
func SelectServer(configs map[string]MCPConfig, name string) (MCPConfig, string, error) {
	if name != "" {
		cfg, ok := configs[name]
		if !ok {
			return MCPConfig{}, "", fmt.Errorf("server %q not found in config (available: %v)", name, serverNames(configs))
		}
		return cfg, name, nil
	}
	if len(configs) == 1 {
		for n, cfg := range configs {
			return cfg, n, nil
		}
	}
	return MCPConfig{}, "", fmt.Errorf("config has multiple servers, pick one with #name (available: %v)", serverNames(configs))
}

func serverNames(configs map[string]MCPConfig) []string {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	return h.base.RoundTrip(req)
}

// Transport builds the client transport the config describes
func (c MCPConfig) transport() (mcp.Transport, error) {
	timeout := defaultMCPTimeout
	if c.Timeout != "" {
		if t, err := time.ParseDuration(c.Timeout); err == nil {
			timeout = t
		}
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &headerRoundTripper{base: http.DefaultTransport, headers: c.Headers},
	}

	switch c.Transport {
	case "sse":
		if c.URL == "" {
			return nil, fmt.Errorf("sse transport requires a url")
		}
		return &mcp.SSEClientTransport{Endpoint: c.URL, HTTPClient: httpClient}, nil
	case "streamable":
		if c.URL == "" {
			return nil, fmt.Errorf("streamable transport requires a url")
		}
		return &mcp.StreamableClientTransport{Endpoint: c.URL, HTTPClient: httpClient}, nil
	case "stdio", "":
		if c.Command == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		cmd := exec.Command(c.Command, c.Args...)
		if len(c.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range c.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		cmd.Stderr = os.Stderr
		return &mcp.CommandTransport{Command: cmd}, nil
	}
	return nil, fmt.Errorf("unknown transport type: %s (supported: stdio, sse, streamable)", c.Transport)
}

// MCPClient is a connection to an external MCP server
type MCPClient struct {
	session *mcp.ClientSession
	name    string
}

// NewMCPClient connects to the server named by spec
// ("config.json" or "config.json#server")
func NewMCPClient(ctx context.Context, spec string) (*MCPClient, error) {
	jsonFile, serverName := ParseServerSpec(spec)
	if !strings.HasSuffix(jsonFile, ".json") {
		return nil, fmt.Errorf("MCP servers must be defined in JSON files (got %s)", jsonFile)
	}

	configs, err := LoadMCPConfigFile(jsonFile)
	if err != nil {
		return nil, err
	}
	cfg, name, err := SelectServer(configs, serverName)
	if err != nil {
		return nil, err
	}
	return ConnectMCP(ctx, name, cfg)
}

// ConnectMCP opens a session to the server cfg describes
func ConnectMCP(ctx context.Context, name string, cfg MCPConfig) (*MCPClient, error) {
	transport, err := cfg.transport()
	if err != nil {
		return nil, err
	}
	return connectTransport(ctx, name, transport)
}

func connectTransport(ctx context.Context, name string, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "deskchat", Version: Version}, nil)

	zap.S().Debugw("mcp_client_connecting", "server", name)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server %s: %w", name, err)
	}
	return &MCPClient{session: session, name: name}, nil
}

// ListTools returns the server's tools wrapped as Tools
func (c *MCPClient) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("error listing tools: %w", err)
		}
		zap.S().Debugw("mcp_tool_loaded", "server", c.name, "tool", tool.Name)
		tools = append(tools, NewMCPTool(c.session, tool))
	}
	return tools, nil
}

// Close closes the session
func (c *MCPClient) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
