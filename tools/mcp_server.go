package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Version is reported to MCP peers
var Version = "dev"

// MCPServer exposes a tool registry over the Model Context Protocol
type MCPServer struct {
	registry *ToolRegistry
	server   *mcp.Server
}

// NewMCPServer registers every tool in registry with a new MCP server
func NewMCPServer(registry *ToolRegistry) *MCPServer {
	s := &MCPServer{
		registry: registry,
		server:   mcp.NewServer(&mcp.Implementation{Name: "deskchat", Version: Version}, nil),
	}

	for _, tool := range registry.All() {
		schema := tool.GetSchema()
		s.server.AddTool(&mcp.Tool{
			Name:        schema.Title,
			Description: schema.Description,
			InputSchema: schema,
		}, s.handler(schema.Title))
	}
	return s
}

// Server returns the underlying MCP server
func (s *MCPServer) Server() *mcp.Server {
	return s.server
}

// Run serves over stdio until ctx is done or the peer disconnects
func (s *MCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// handler runs the named tool through the registry. Tool failures are
// returned as error results so the peer can show them.
func (s *MCPServer) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]any)
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Errorf("arguments must be a JSON object: %w", err)), nil
			}
		}

		zap.S().Debugw("mcp_tool_called", "name", name)
		out, err := s.registry.Execute(ctx, name, args)
		if err != nil {
			zap.S().Debugw("mcp_tool_failed", "name", name, "error", err)
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out}},
		}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
