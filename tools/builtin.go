package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/stream"
	"github.com/google/jsonschema-go/jsonschema"
)

const (
	DefaultOutlinePages = 10
	MinOutlinePages     = 3
	MaxOutlinePages     = 30
	DefaultOutlineStyle = "business"

	// DocumentLimit bounds the document text sent with a question, in runes
	DocumentLimit = 8000

	noResponse = "(no response)"
)

// Surface holds what every built-in tool needs to run its stream
type Surface struct {
	Streamer Streamer
	// Model is sent with each request; empty selects the backend's current model
	Model string
	// Progress, when set, receives each tool's progress text
	Progress Progress
}

// Builtins returns the built-in tool surfaces bound to s, catalog presets included
func Builtins(s Surface) []Tool {
	return append([]Tool{
		&OutlineTool{surface: s},
		&MediaAnalysisTool{surface: s},
		&DocumentQATool{surface: s},
		&AssistantTool{surface: s},
	}, PresetTools(s)...)
}

// run streams one ephemeral request, translating the accumulated text into
// progress updates with the given strategy
func (s Surface) run(ctx context.Context, text string, mode messages.Mode, status func(string) string) (string, error) {
	if s.Streamer == nil {
		return "", fmt.Errorf("no backend configured")
	}

	req := messages.ChatRequest{
		Text:      text,
		Mode:      mode,
		Model:     s.Model,
		Ephemeral: true,
	}

	var h stream.Handlers
	if s.Progress != nil {
		h.OnProgress = func(partial string) {
			s.Progress(status(partial))
		}
	}
	return s.Streamer.Stream(ctx, req, h)
}

func passthrough(partial string) string { return partial }

func requireString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return strings.TrimSpace(v), nil
}

// OutlineTool drafts a slide deck outline for a topic
type OutlineTool struct {
	surface Surface
}

func (t *OutlineTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       "ppt_outline",
		Description: "Generate a slide-by-slide presentation outline for a topic",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"topic": {
				Type:        "string",
				Description: "What the presentation is about",
			},
			"pages": {
				Type:        "integer",
				Description: "Number of slides",
				Default:     json.RawMessage(fmt.Sprint(DefaultOutlinePages)),
				Minimum:     jsonschema.Ptr(float64(MinOutlinePages)),
				Maximum:     jsonschema.Ptr(float64(MaxOutlinePages)),
			},
			"style": {
				Type:        "string",
				Description: "Visual style of the deck",
				Default:     json.RawMessage(`"` + DefaultOutlineStyle + `"`),
			},
		},
		Required: []string{"topic"},
	}
}

func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	topic, err := requireString(args, "topic")
	if err != nil {
		return "", err
	}
	pages := min(max(intArg(args, "pages", DefaultOutlinePages), MinOutlinePages), MaxOutlinePages)
	style := stringArg(args, "style", DefaultOutlineStyle)

	return t.surface.run(ctx, OutlinePrompt(topic, pages, style), messages.ModeWrite, func(partial string) string {
		return fmt.Sprintf("Generating… %d chars", utf8.RuneCountInString(partial))
	})
}

// OutlinePrompt builds the request text for a presentation outline
func OutlinePrompt(topic string, pages int, style string) string {
	return fmt.Sprintf("Create a detailed outline for a %d-slide presentation in a %s style.\n\n"+
		"Topic: %s\n\n"+
		"Requirements:\n"+
		"1. Every slide has a title and 3-5 key points\n"+
		"2. Professional content with a clear structure\n"+
		"3. Include an opening, the main body and a summary\n"+
		"4. Suitable for presenting to an audience",
		pages, style, topic)
}

// MediaSections is the parsed result of a media analysis
type MediaSections struct {
	Summary    string `json:"summary"`
	Transcript string `json:"transcript"`
	Timeline   string `json:"timeline"`
}

// A section runs to the next section tag, so bracketed timestamps and links
// inside a section stay in it.
const nextSection = `(?:\[(?:Summary|Transcript|Timeline)\]|\z)`

var (
	summaryTag    = regexp.MustCompile(`(?s)\[Summary\](.*?)` + nextSection)
	transcriptTag = regexp.MustCompile(`(?s)\[Transcript\](.*?)` + nextSection)
	timelineTag   = regexp.MustCompile(`(?s)\[Timeline\](.*?)` + nextSection)
)

// ParseMediaSections splits text on its section tags. A section whose tag is
// missing holds the full text.
func ParseMediaSections(text string) MediaSections {
	section := func(re *regexp.Regexp) string {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
		return text
	}
	return MediaSections{
		Summary:    section(summaryTag),
		Transcript: section(transcriptTag),
		Timeline:   section(timelineTag),
	}
}

// String renders the sections for display
func (m MediaSections) String() string {
	return fmt.Sprintf("Summary:\n%s\n\nTranscript:\n%s\n\nTimeline:\n%s", m.Summary, m.Transcript, m.Timeline)
}

// MediaAnalysisTool summarizes an audio or video recording by its metadata
type MediaAnalysisTool struct {
	surface Surface
}

func (t *MediaAnalysisTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       "media_analysis",
		Description: "Summarize an audio or video recording into a summary, transcript outline and timeline",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"filename": {
				Type:        "string",
				Description: "Name of the recording",
			},
			"kind": {
				Type:        "string",
				Description: "Recording type",
				Enum:        []any{"audio", "video"},
			},
			"size": {
				Type:        "integer",
				Description: "Size of the recording in bytes",
				Minimum:     jsonschema.Ptr(0.0),
			},
		},
		Required: []string{"filename", "kind"},
	}
}

func (t *MediaAnalysisTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename, err := requireString(args, "filename")
	if err != nil {
		return "", err
	}
	kind := stringArg(args, "kind", "audio")
	size := int64(intArg(args, "size", 0))

	text, err := t.surface.run(ctx, MediaPrompt(filename, kind, size), messages.ModeAnalyze, func(partial string) string {
		return ParseMediaSections(partial).Summary
	})
	if err != nil {
		return text, err
	}
	return ParseMediaSections(text).String(), nil
}

// MediaPrompt builds the request text for a media analysis
func MediaPrompt(filename, kind string, size int64) string {
	return fmt.Sprintf("The user uploaded a %s file named %q, size %s. Produce:\n"+
		"1. A short summary of the content (assume a meeting or lecture)\n"+
		"2. An outline of the likely full transcript\n"+
		"3. A timeline of the key moments\n\n"+
		"Separate the parts with the [Summary], [Transcript] and [Timeline] tags.",
		kind, filename, FormatSize(size))
}

// DocumentQATool answers a question about a document's text
type DocumentQATool struct {
	surface Surface
}

func (t *DocumentQATool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       "doc_qa",
		Description: "Answer a question about the text of a document",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"document": {
				Type:        "string",
				Description: "Extracted document text",
			},
			"name": {
				Type:        "string",
				Description: "Document file name",
			},
			"question": {
				Type:        "string",
				Description: "Question to answer",
			},
		},
		Required: []string{"document", "question"},
	}
}

func (t *DocumentQATool) Execute(ctx context.Context, args map[string]any) (string, error) {
	document, err := requireString(args, "document")
	if err != nil {
		return "", err
	}
	question, err := requireString(args, "question")
	if err != nil {
		return "", err
	}
	name := stringArg(args, "name", "document")

	return t.surface.run(ctx, DocumentPrompt(name, document, question), messages.ModeAnalyze, passthrough)
}

// DocumentPrompt builds the request text for a document question
func DocumentPrompt(name, document, question string) string {
	return fmt.Sprintf("Answer the question using the document below.\n\n"+
		"Document: %s\nContent:\n%s\n\nQuestion: %s",
		name, truncateRunes(document, DocumentLimit), question)
}

// AssistantTool runs a prompt under fixed instructions without touching history
type AssistantTool struct {
	surface Surface
}

func (t *AssistantTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       "assistant",
		Description: "Run a one-off prompt under a set of instructions",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"instructions": {
				Type:        "string",
				Description: "Instructions placed before the prompt",
			},
			"prompt": {
				Type:        "string",
				Description: "The user's request",
			},
		},
		Required: []string{"instructions"},
	}
}

func (t *AssistantTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	instructions, err := requireString(args, "instructions")
	if err != nil {
		return "", err
	}
	return t.surface.ask(ctx, instructions, stringArg(args, "prompt", ""))
}

// ask streams instructions followed by the user's text in chat mode
func (s Surface) ask(ctx context.Context, instructions, input string) (string, error) {
	result, err := s.run(ctx, assistantText(instructions, input), messages.ModeChat, passthrough)
	if err == nil && result == "" {
		result = noResponse
	}
	return result, err
}

func assistantText(instructions, input string) string {
	if input = strings.TrimSpace(input); input != "" {
		return instructions + "\n" + input
	}
	return instructions
}

// FormatSize renders a byte count for humans
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
