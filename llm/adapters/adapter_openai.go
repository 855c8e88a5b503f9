package adapters

import (
	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	ai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter captures usage and finish reasons from OpenAI-compatible chunks
type OpenAIAdapter struct{}

// NewOpenAIAdapter creates a new OpenAI streaming adapter
func NewOpenAIAdapter() *OpenAIAdapter {
	return &OpenAIAdapter{}
}

// ProcessChunk handles OpenAI streaming chunks
func (a *OpenAIAdapter) ProcessChunk(chunk any, state streaming.StreamStateInterface) error {
	response, ok := chunk.(*ai.ChatCompletionStreamResponse)
	if !ok {
		return nil
	}

	// Usage arrives on the final chunk when StreamOptions.IncludeUsage is set
	if response.Usage != nil {
		state.SetTokenUsage(response.Usage.PromptTokens, response.Usage.CompletionTokens)
	}

	if len(response.Choices) > 0 && response.Choices[0].FinishReason != "" {
		state.SetStopReason(mapOpenAIFinishReason(response.Choices[0].FinishReason))
	}
	return nil
}

func mapOpenAIFinishReason(fr ai.FinishReason) messages.StopReason {
	switch fr {
	case ai.FinishReasonLength:
		return messages.StopReasonMaxTokens
	case ai.FinishReasonContentFilter:
		return messages.StopReasonContentFilter
	default:
		return messages.StopReasonEndTurn
	}
}
