package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// ErrUnknownTool is returned by Execute for a name that was never registered
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError reports arguments that do not satisfy a tool's schema
type ArgumentError struct {
	Tool     string
	Problems []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// ToolRegistry manages available tools
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates a new tool registry from a list of tools
func NewToolRegistry(tools []Tool) *ToolRegistry {
	registry := &ToolRegistry{
		tools: make(map[string]Tool),
	}

	for _, tool := range tools {
		registry.Register(tool)
	}

	return registry
}

// Register adds a tool to the registry, replacing any tool of the same name
func (r *ToolRegistry) Register(tool Tool) {
	name := toolName(tool)

	r.mu.Lock()
	defer r.mu.Unlock()

	zap.S().Debugw("tool_registered", "name", name)
	r.tools[name] = tool
}

// Get retrieves a tool by name
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Remove removes a tool by name from the registry
func (r *ToolRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; ok {
		delete(r.tools, name)
		zap.S().Debugw("tool_removed", "name", name)
	}
}

// All returns all tools in the registry, sorted by name
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return toolName(tools[i]) < toolName(tools[j])
	})
	return tools
}

// GetSchemas returns all tool schemas, sorted by name
func (r *ToolRegistry) GetSchemas() []*jsonschema.Schema {
	all := r.All()
	schemas := make([]*jsonschema.Schema, 0, len(all))
	for _, tool := range all {
		schemas = append(schemas, tool.GetSchema())
	}
	return schemas
}

// Execute validates args against the named tool's schema and runs it
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if args == nil {
		args = make(map[string]any)
	}
	if err := Validate(tool.GetSchema(), args); err != nil {
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			argErr.Tool = name
		}
		return "", err
	}

	zap.S().Debugw("tool_execute", "name", name, "args", args)
	return tool.Execute(ctx, args)
}

// Validate checks args against schema
func Validate(schema *jsonschema.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("failed to validate arguments: %w", err)
	}
	if result.Valid() {
		return nil
	}

	argErr := &ArgumentError{Tool: schema.Title}
	for _, problem := range result.Errors() {
		argErr.Problems = append(argErr.Problems, problem.String())
	}
	return argErr
}
