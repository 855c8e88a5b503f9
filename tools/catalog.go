package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Preset categories
const (
	CategoryDraw  = "draw"
	CategoryUtil  = "util"
	CategoryFun   = "fun"
	CategoryLearn = "learn"
	CategoryWork  = "work"
)

var Categories = []string{CategoryDraw, CategoryUtil, CategoryFun, CategoryLearn, CategoryWork}

// Preset is a catalog tool: a fixed instruction placed before whatever the
// user types
type Preset struct {
	ID          string
	Category    string
	Description string
	Prompt      string
}

var Presets = []Preset{
	{"ai_draw", CategoryDraw, "Describe a picture to draw", "Generate an image from the following description:"},
	{"story", CategoryDraw, "Picture-book story with page-by-page scenes", "Write a classical-style picture book story for me, with the text and a scene description for each page:"},
	{"logo", CategoryDraw, "Logo concept for a brand", "Design a logo for the following brand and describe the design in words:"},
	{"avatar", CategoryDraw, "Personalized avatar design", "Design a personalized avatar for me in the following style:"},

	{"format", CategoryUtil, "Convert content between formats", "Convert the following into the requested format:"},
	{"rewrite", CategoryUtil, "Rewrite text, keeping its meaning", "Rewrite the following text, keeping its meaning but improving the wording:\n\n"},
	{"translate", CategoryUtil, "Translate between languages", "Translate the following (detect the language and translate it into the other one):\n\n"},
	{"code", CategoryUtil, "Write code from a description", "Write the following code for me (state the language and the requirements):"},

	{"headline", CategoryFun, "Five catchy headlines for a topic", "Generate 5 eye-catching headlines for the following topic:\n\nTopic:"},
	{"story_write", CategoryFun, "Story of a given genre and theme", "Write a story for me of the following genre and theme:"},
	{"role_play", CategoryFun, "Talk with a character you describe", "Play the following character and talk with me (the character is described below):"},
	{"puzzle", CategoryFun, "A riddle or brain teaser", "Give me a fun riddle or brain teaser!"},

	{"knowledge", CategoryLearn, "Detailed answer to a question", "Answer the following question in detail:"},
	{"paper", CategoryLearn, "Academic abstract, review or outline", "Help me write the following academic content (abstract, review or outline):"},
	{"english", CategoryLearn, "English practice with corrections", "Act as my English teacher and help me practise the following (correct mistakes, translate, explain grammar):\n\n"},
	{"math", CategoryLearn, "Step-by-step math solution", "Solve the following math problem in detail, showing every step:\n\n"},

	{"polish", CategoryWork, "Polish text to read professionally", "Polish the following text so it reads professionally and fluently:\n\n"},
	{"report", CategoryWork, "Weekly work report from notes", "Write a weekly work report from these points:\n\nDone this week:\nPlan for next week:\nNeeds coordination:"},
	{"email", CategoryWork, "Business email from requirements", "Write a business email with the following requirements:"},
	{"interview", CategoryWork, "Mock interview for a position", "Act as an interviewer for the following position and start asking questions:\n\nPosition:"},
}

// PresetTools returns one tool per catalog entry, bound to s
func PresetTools(s Surface) []Tool {
	out := make([]Tool, len(Presets))
	for i, p := range Presets {
		out[i] = &PresetTool{preset: p, surface: s}
	}
	return out
}

// PresetTool runs a catalog preset through the assistant path
type PresetTool struct {
	preset  Preset
	surface Surface
}

// Category returns the catalog category of the preset
func (t *PresetTool) Category() string { return t.preset.Category }

func (t *PresetTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       t.preset.ID,
		Description: fmt.Sprintf("[%s] %s", t.preset.Category, t.preset.Description),
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"input": {
				Type:        "string",
				Description: "Text appended after the preset's instruction",
			},
		},
	}
}

func (t *PresetTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return t.surface.ask(ctx, t.preset.Prompt, stringArg(args, "input", ""))
}

// PresetPrompt is the request text a preset sends for input
func PresetPrompt(p Preset, input string) string {
	return assistantText(p.Prompt, input)
}
