package streaming

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/alexschlessinger/deskchat/messages"
	"go.uber.org/zap"
)

// StreamingCore provides common streaming functionality for all providers.
// It manages state accumulation and the message channel, and hands raw
// provider chunks to a provider-specific adapter.
type StreamingCore struct {
	state          *StreamState
	adapter        ProviderAdapter
	filter         *ThinkFilter
	messageChannel chan<- messages.ChatMessage
	ctx            context.Context
}

// ProviderAdapter extracts bookkeeping (usage, stop reason) from a provider's
// raw stream chunks. The chunk type depends on the provider.
type ProviderAdapter interface {
	ProcessChunk(chunk any, state StreamStateInterface) error
}

// CoreOption configures a StreamingCore
type CoreOption func(*StreamingCore)

// WithThinkFilter strips inline <think> spans from emitted content
func WithThinkFilter() CoreOption {
	return func(sc *StreamingCore) {
		sc.filter = &ThinkFilter{}
	}
}

// NewStreamingCore creates a new streaming coordinator
func NewStreamingCore(
	ctx context.Context,
	messageChannel chan<- messages.ChatMessage,
	adapter ProviderAdapter,
	opts ...CoreOption,
) *StreamingCore {
	sc := &StreamingCore{
		state:          NewStreamState(),
		adapter:        adapter,
		messageChannel: messageChannel,
		ctx:            ctx,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// GetState returns the current streaming state
func (sc *StreamingCore) GetState() *StreamState {
	return sc.state
}

// EmitContent sends a content chunk through the message channel
func (sc *StreamingCore) EmitContent(content string) {
	if sc.filter != nil {
		content = sc.filter.Process(content)
	}
	sc.send(content)
}

func (sc *StreamingCore) send(content string) {
	if content == "" {
		return
	}

	select {
	case <-sc.ctx.Done():
		return
	case sc.messageChannel <- messages.ChatMessage{
		Role:    messages.MessageRoleAssistant,
		Content: content,
	}:
		sc.state.AppendContent(content)
	}
}

// EmitError sends an error chunk through the channel. Errors caused by the
// caller abandoning the stream are not reported.
func (sc *StreamingCore) EmitError(err error) {
	if sc.ctx.Err() != nil {
		zap.S().Debugw("streaming_cancelled", "error", err)
		return
	}

	select {
	case <-sc.ctx.Done():
		return
	case sc.messageChannel <- messages.ChatMessage{
		Role:       messages.MessageRoleAssistant,
		Content:    err.Error(),
		StopReason: messages.StopReasonError,
	}:
		zap.S().Debugw("streaming_error", "error", err)
	}
}

// ProcessChunk delegates chunk bookkeeping to the adapter
func (sc *StreamingCore) ProcessChunk(chunk any) error {
	if sc.adapter == nil {
		return fmt.Errorf("no adapter configured")
	}
	return sc.adapter.ProcessChunk(chunk, sc.state)
}

// SetStopReason updates the stop reason in the state
func (sc *StreamingCore) SetStopReason(reason messages.StopReason) {
	sc.state.SetStopReason(reason)
}

// Complete flushes held-back content and sends the closing message carrying
// the stop reason. Content is never repeated; it was already streamed.
func (sc *StreamingCore) Complete() {
	if sc.filter != nil {
		sc.send(sc.filter.Flush())
	}

	content, reason, input, output := sc.state.Snapshot()
	if reason == "" {
		reason = messages.StopReasonEndTurn
	}

	select {
	case <-sc.ctx.Done():
		return
	case sc.messageChannel <- messages.ChatMessage{
		Role:       messages.MessageRoleAssistant,
		StopReason: reason,
	}:
	}

	zap.S().Debugw("streaming_completed",
		"content_preview", preview(content, previewRunes),
		"content_length", len(content),
		"stop_reason", reason,
		"input_tokens", input,
		"output_tokens", output,
	)
}

const previewRunes = 200

// preview shortens s to at most n runes for logging
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
