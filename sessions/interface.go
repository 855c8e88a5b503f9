package sessions

import (
	"errors"

	"github.com/alexschlessinger/deskchat/messages"
)

// ErrNotFound is returned for operations on a conversation id that does not exist
var ErrNotFound = errors.New("conversation not found")

// ErrInvalidID is returned for ids that cannot name a stored conversation
var ErrInvalidID = errors.New("invalid conversation id")

// Store persists conversations. Every method returns copies; mutating a
// returned Conversation does not change the stored one.
type Store interface {
	Create(model string) (*Conversation, error)
	Get(id string) (*Conversation, error)
	List() ([]*Conversation, error) // newest first
	Delete(id string) error

	// Append adds a message and auto-titles the conversation on its first user message
	Append(id string, msg messages.ChatMessage) (*Conversation, error)

	Rename(id, title string) error
	SetModel(id, model string) error
	Update(id string, update *Metadata) error // Apply partial updates (only non-zero values)
}
