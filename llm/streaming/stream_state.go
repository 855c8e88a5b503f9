package streaming

import (
	"sync"

	"github.com/alexschlessinger/deskchat/messages"
)

// StreamStateInterface is the part of the streaming state provider adapters
// may touch. It lets adapters live in their own package.
type StreamStateInterface interface {
	SetTokenUsage(input, output int)
	SetStopReason(reason messages.StopReason)
	GetInputTokens() int
	GetOutputTokens() int
}

// StreamState holds what accumulates across the chunks of one provider stream
type StreamState struct {
	ResponseContent string // after think filtering
	StopReason      messages.StopReason
	InputTokens     int
	OutputTokens    int

	mu sync.Mutex
}

func NewStreamState() *StreamState {
	return &StreamState{}
}

// AppendContent records emitted reply text
func (s *StreamState) AppendContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResponseContent += content
}

// SetTokenUsage replaces the usage counters; providers report totals, not deltas
func (s *StreamState) SetTokenUsage(input, output int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InputTokens = input
	s.OutputTokens = output
}

func (s *StreamState) SetStopReason(reason messages.StopReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopReason = reason
}

func (s *StreamState) GetInputTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.InputTokens
}

func (s *StreamState) GetOutputTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.OutputTokens
}

// Snapshot reads every field under one lock
func (s *StreamState) Snapshot() (content string, reason messages.StopReason, input, output int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResponseContent, s.StopReason, s.InputTokens, s.OutputTokens
}
