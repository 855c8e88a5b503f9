package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// connectInMemory serves registry over an in-memory transport and returns a
// client connected to it
func connectInMemory(t *testing.T, registry *ToolRegistry) *MCPClient {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	session, err := NewMCPServer(registry).Server().Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	client, err := connectTransport(ctx, "memory", clientTransport)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestMCPServerListsRegistry(t *testing.T) {
	registry := NewToolRegistry(Builtins(Surface{Streamer: &fakeStreamer{}}))
	client := connectInMemory(t, registry)

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	var names []string
	for _, tool := range tools {
		schema := tool.GetSchema()
		if schema.Type != "object" {
			t.Errorf("tool %s schema type = %q", schema.Title, schema.Type)
		}
		names = append(names, schema.Title)
	}
	var want []string
	for _, schema := range registry.GetSchemas() {
		want = append(want, schema.Title)
	}
	if len(want) != 4+len(Presets) {
		t.Fatalf("registry holds %d tools, want %d", len(want), 4+len(Presets))
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tool names mismatch (-want +got):\n%s", diff)
	}
}

func TestMCPRoundTrip(t *testing.T) {
	registry := NewToolRegistry([]Tool{&testTool{name: "echo"}})
	client := connectInMemory(t, registry)
	ctx := context.Background()

	tools, err := client.ListTools(ctx)
	if err != nil || len(tools) != 1 {
		t.Fatalf("ListTools = %d tools, err %v", len(tools), err)
	}
	remote := tools[0]

	out, err := remote.Execute(ctx, map[string]any{"text": "over the wire"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "echo:over the wire" {
		t.Errorf("Execute() = %q", out)
	}

	// Validation failures come back as tool errors
	_, err = remote.Execute(ctx, map[string]any{"count": 3})
	if err == nil || !strings.Contains(err.Error(), "invalid arguments for echo") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestParseServerSpec(t *testing.T) {
	tests := []struct {
		spec, file, server string
	}{
		{"servers.json", "servers.json", ""},
		{"servers.json#time", "servers.json", "time"},
		{"weird#name", "weird#name", ""},
	}
	for _, tt := range tests {
		file, server := ParseServerSpec(tt.spec)
		if file != tt.file || server != tt.server {
			t.Errorf("ParseServerSpec(%q) = %q, %q", tt.spec, file, server)
		}
	}
}

func TestLoadMCPConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.json")
	body := `{"mcpServers": {
		"time": {"command": "uvx", "args": ["mcp-server-time"]},
		"remote": {"url": "https://example.com/mcp", "transport": "streamable", "timeout": "5s"}
	}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	configs, err := LoadMCPConfigFile(path)
	if err != nil {
		t.Fatalf("LoadMCPConfigFile failed: %v", err)
	}

	cfg, name, err := SelectServer(configs, "time")
	if err != nil || name != "time" || cfg.Command != "uvx" {
		t.Errorf("SelectServer(time) = %+v, %q, %v", cfg, name, err)
	}
	if _, _, err := SelectServer(configs, ""); err == nil {
		t.Error("expected error when several servers are defined and none is named")
	}
	if _, _, err := SelectServer(configs, "nope"); err == nil {
		t.Error("expected error for unknown server")
	}

	if _, err := configs["remote"].transport(); err != nil {
		t.Errorf("remote transport: %v", err)
	}
	if _, err := (MCPConfig{Transport: "carrier-pigeon"}).transport(); err == nil {
		t.Error("expected error for unknown transport")
	}
	if _, err := (MCPConfig{Transport: "sse"}).transport(); err == nil {
		t.Error("expected error for sse without url")
	}
}

func TestLoadMCPConfigFileErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"mcpServers": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadMCPConfigFile(empty); err == nil {
		t.Error("expected error for config without servers")
	}
	if _, err := LoadMCPConfigFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := NewMCPClient(context.Background(), "not-json"); err == nil {
		t.Error("expected error for non-json spec")
	}
}
