package tools

import (
	"context"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/stream"
	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is the generic interface for all tools
type Tool interface {
	GetSchema() *jsonschema.Schema
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Streamer starts one chat stream against the backend. *client.Client
// satisfies it.
type Streamer interface {
	Stream(ctx context.Context, req messages.ChatRequest, h stream.Handlers) (string, error)
}

// Progress receives status text while a tool surface is streaming
type Progress func(text string)

// toolName returns the registry key of a tool
func toolName(tool Tool) string {
	if schema := tool.GetSchema(); schema != nil {
		return schema.Title
	}
	return ""
}
