package messages

import "time"

// StopReason indicates why a generation stopped
type StopReason string

const (
	// StopReasonEndTurn indicates normal completion
	StopReasonEndTurn StopReason = "end_turn"
	// StopReasonMaxTokens indicates the response was truncated due to token limit
	StopReasonMaxTokens StopReason = "max_tokens"
	// StopReasonContentFilter indicates the provider withheld content
	StopReasonContentFilter StopReason = "content_filter"
	// StopReasonCancelled indicates the caller abandoned the stream
	StopReasonCancelled StopReason = "cancelled"
	// StopReasonError marks a chunk that carries an error message instead of content
	StopReasonError StopReason = "error"
)

// Standard role constants
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation, or one streamed chunk of a turn
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	StopReason StopReason `json:"-"`
}

// IsError reports whether the message is an error chunk
func (m ChatMessage) IsError() bool {
	return m.StopReason == StopReasonError
}

// Mode is the category hint sent with a chat request; the backend picks its
// system prompt from it.
type Mode string

const (
	ModeChat      Mode = "chat"
	ModeThink     Mode = "think"
	ModeCode      Mode = "code"
	ModeAnalyze   Mode = "analyze"
	ModeTranslate Mode = "translate"
	ModeWrite     Mode = "write"
	ModeResearch  Mode = "research"
	ModeImage     Mode = "image"
)

// Modes lists every mode the backend understands
var Modes = []Mode{ModeChat, ModeThink, ModeCode, ModeAnalyze, ModeTranslate, ModeWrite, ModeResearch, ModeImage}

// ParseMode validates a mode name; the empty string maps to ModeChat
func ParseMode(s string) (Mode, bool) {
	if s == "" {
		return ModeChat, true
	}
	for _, m := range Modes {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// ChatRequest is the body of a streaming generation request
type ChatRequest struct {
	Text      string `json:"text" jsonschema:"required,description=Free-text prompt"`
	Mode      Mode   `json:"mode,omitempty" jsonschema:"enum=chat,enum=think,enum=code,enum=analyze,enum=translate,enum=write,enum=research,enum=image"`
	Model     string `json:"model,omitempty" jsonschema:"description=Model identifier in provider/model form"`
	WebSearch bool   `json:"web_search,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty" jsonschema:"description=Do not persist the exchange in conversation history"`
}

// TitleUpdate is the payload of a title event
type TitleUpdate struct {
	ID    string `json:"id" jsonschema:"required"`
	Title string `json:"title" jsonschema:"required"`
}

// Conversation is the listing form of a stored conversation
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Model describes one entry of the model registry
type Model struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
}

// SystemInfo describes the host running the backend
type SystemInfo struct {
	OS  string `json:"os"`
	CPU string `json:"cpu"`
	RAM string `json:"ram"`
	GPU string `json:"gpu"`
}

// UploadResult is the text extracted from an uploaded file
type UploadResult struct {
	Text string     `json:"text"`
	Type string     `json:"type"`
	Meta UploadMeta `json:"meta"`
}

// UploadMeta describes the uploaded file itself
type UploadMeta struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated,omitempty"`
	// Image uploads only
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Format string `json:"format,omitempty"`
}
