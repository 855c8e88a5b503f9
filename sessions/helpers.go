package sessions

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/google/uuid"
)

// titleLength is how many characters of the first user message become the title
const titleLength = 30

// AutoTitle derives a conversation title from its first user message
func AutoTitle(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= titleLength {
		return text
	}
	return string(runes[:titleLength]) + "…"
}

// NewID returns a short conversation id
func NewID() string {
	return uuid.NewString()[:8]
}

// TrimHistory keeps the most recent maxHistory messages
func TrimHistory(history []messages.ChatMessage, maxHistory int) []messages.ChatMessage {
	if maxHistory <= 0 || len(history) <= maxHistory {
		return history
	}
	return append(history[:0], history[len(history)-maxHistory:]...)
}

// CopyHistory creates a copy of the history slice
func CopyHistory(history []messages.ChatMessage) []messages.ChatMessage {
	result := make([]messages.ChatMessage, len(history))
	copy(result, history)
	return result
}

func countRole(history []messages.ChatMessage, role string) int {
	n := 0
	for _, m := range history {
		if m.Role == role {
			n++
		}
	}
	return n
}

// MergeMetadata merges the non-empty string fields of in over existing and
// returns a new value. WebSearch always comes from in: every update carries
// the flag of the request that made it.
func MergeMetadata(existing *Metadata, in *Metadata) *Metadata {
	if existing == nil {
		existing = &Metadata{}
	}
	out := *existing
	if in == nil {
		return &out
	}

	if err := mergo.Merge(&out, *in, mergo.WithOverride); err != nil {
		return existing
	}
	out.WebSearch = in.WebSearch
	return &out
}

// validateID checks that a conversation id is safe to use as a file name
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, "/\\:*?\"<>|") {
		return fmt.Errorf("%w: contains invalid characters (/, \\, :, *, ?, \", <, >, |)", ErrInvalidID)
	}
	if strings.HasPrefix(id, ".") || strings.HasSuffix(id, " ") || strings.HasPrefix(id, " ") {
		return fmt.Errorf("%w: cannot start with a dot or start or end with spaces", ErrInvalidID)
	}
	for _, r := range id {
		if r < 32 || r == 127 {
			return fmt.Errorf("%w: contains control characters", ErrInvalidID)
		}
	}
	return nil
}
