package messages

// StreamEventType represents the type of streaming event
type StreamEventType string

const (
	// EventTypeToken represents incremental content being streamed
	EventTypeToken StreamEventType = "token"
	// EventTypeError represents an error reported by the model provider
	EventTypeError StreamEventType = "error"
	// EventTypeComplete represents the end of the stream with the complete message
	EventTypeComplete StreamEventType = "complete"
)

// StreamEvent represents a single event produced from a provider stream
type StreamEvent struct {
	Type    StreamEventType
	Content string       // For incremental content chunks
	Message *ChatMessage // For the complete message
	Error   error        // For error events
}

// UpstreamError is a failure the backend reported inside an otherwise healthy stream
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}
