package adapters

import (
	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

// AnthropicAdapter captures usage and stop reasons from Anthropic stream events
type AnthropicAdapter struct{}

// NewAnthropicAdapter creates a new Anthropic streaming adapter
func NewAnthropicAdapter() *AnthropicAdapter {
	return &AnthropicAdapter{}
}

// ProcessChunk handles Anthropic streaming events
func (a *AnthropicAdapter) ProcessChunk(chunk any, state streaming.StreamStateInterface) error {
	event, ok := chunk.(anthropic.MessageStreamEventUnion)
	if !ok {
		return nil
	}

	switch event.Type {
	case string(constant.ValueOf[constant.MessageStart]()):
		msgStart := event.AsMessageStart()
		state.SetTokenUsage(int(msgStart.Message.Usage.InputTokens), state.GetOutputTokens())

	case string(constant.ValueOf[constant.MessageDelta]()):
		// Message delta carries stop_reason and output usage
		msgDelta := event.AsMessageDelta()
		state.SetStopReason(mapAnthropicStopReason(msgDelta.Delta.StopReason))
		state.SetTokenUsage(state.GetInputTokens(), int(msgDelta.Usage.OutputTokens))
	}
	return nil
}

func mapAnthropicStopReason(reason anthropic.StopReason) messages.StopReason {
	switch reason {
	case anthropic.StopReasonMaxTokens:
		return messages.StopReasonMaxTokens
	case anthropic.StopReasonRefusal:
		return messages.StopReasonContentFilter
	default:
		return messages.StopReasonEndTurn
	}
}
