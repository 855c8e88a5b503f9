package llm

import "github.com/alexschlessinger/deskchat/messages"

// ThinkingEffort is how hard a reasoning-capable model should think
type ThinkingEffort string

const (
	ThinkingOff    ThinkingEffort = "off"
	ThinkingLow    ThinkingEffort = "low"
	ThinkingMedium ThinkingEffort = "medium"
	ThinkingHigh   ThinkingEffort = "high"
)

// IsEnabled reports whether the request asks for reasoning at all
func (e ThinkingEffort) IsEnabled() bool {
	return e != "" && e != ThinkingOff
}

// ThinkingForMode picks the reasoning effort a chat mode implies
func ThinkingForMode(mode messages.Mode) ThinkingEffort {
	switch mode {
	case messages.ModeThink:
		return ThinkingMedium
	case messages.ModeResearch:
		return ThinkingLow
	default:
		return ThinkingOff
	}
}
