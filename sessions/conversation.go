package sessions

import (
	"time"

	"github.com/alexschlessinger/deskchat/messages"
)

// DefaultTitle is carried by a conversation until it is auto-titled or renamed
const DefaultTitle = "New chat"

// Metadata holds the mutable settings of a conversation
type Metadata struct {
	Title     string `json:"title"`
	Model     string `json:"model,omitempty"`
	Mode      string `json:"mode,omitempty"`
	WebSearch bool   `json:"web_search,omitempty"`
	// Titled is set once the first user message has named the conversation
	Titled bool `json:"titled,omitempty"`
}

// Conversation is the stored form of one chat
type Conversation struct {
	ID       string                 `json:"id"`
	Metadata *Metadata              `json:"metadata"`
	History  []messages.ChatMessage `json:"messages"`
	Created  time.Time              `json:"created_at"`
	Updated  time.Time              `json:"updated_at"`
}

func newConversation(id string, cfg *Config, model string) *Conversation {
	if model == "" {
		model = cfg.DefaultModel
	}
	now := time.Now()
	return &Conversation{
		ID: id,
		Metadata: &Metadata{
			Title: cfg.DefaultTitle,
			Model: model,
		},
		History: []messages.ChatMessage{},
		Created: now,
		Updated: now,
	}
}

// Title returns the conversation title
func (c *Conversation) Title() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata.Title
}

// Model returns the model the conversation is bound to
func (c *Conversation) Model() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata.Model
}

// Summary returns the listing form of the conversation
func (c *Conversation) Summary() messages.Conversation {
	return messages.Conversation{
		ID:           c.ID,
		Title:        c.Title(),
		CreatedAt:    c.Created,
		MessageCount: len(c.History),
	}
}

// Clone returns a deep copy
func (c *Conversation) Clone() *Conversation {
	out := *c
	if c.Metadata != nil {
		md := *c.Metadata
		out.Metadata = &md
	}
	out.History = CopyHistory(c.History)
	return &out
}

// appendMessage applies Append semantics in place
func (c *Conversation) appendMessage(msg messages.ChatMessage, maxHistory int) {
	if c.Metadata == nil {
		c.Metadata = &Metadata{}
	}
	if msg.Role == messages.MessageRoleUser && !c.Metadata.Titled {
		// Files written before the flag existed are titled once they hold a user message
		if countRole(c.History, messages.MessageRoleUser) == 0 {
			c.Metadata.Title = AutoTitle(msg.Content)
		}
		c.Metadata.Titled = true
	}
	c.History = append(c.History, msg)
	c.History = TrimHistory(c.History, maxHistory)
	c.Updated = time.Now()
}
