package adapters

import (
	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	"google.golang.org/genai"
)

// GeminiAdapter captures usage and finish reasons from Gemini stream responses
type GeminiAdapter struct{}

// NewGeminiAdapter creates a new Gemini streaming adapter
func NewGeminiAdapter() *GeminiAdapter {
	return &GeminiAdapter{}
}

// ProcessChunk handles Gemini streaming responses
func (a *GeminiAdapter) ProcessChunk(chunk any, state streaming.StreamStateInterface) error {
	resp, ok := chunk.(*genai.GenerateContentResponse)
	if !ok || resp == nil {
		return nil
	}

	// Usage metadata is cumulative; the last chunk holds the totals
	if resp.UsageMetadata != nil {
		state.SetTokenUsage(int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		state.SetStopReason(mapGeminiFinishReason(resp.Candidates[0].FinishReason))
	}
	return nil
}

func mapGeminiFinishReason(reason genai.FinishReason) messages.StopReason {
	switch reason {
	case genai.FinishReasonMaxTokens:
		return messages.StopReasonMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return messages.StopReasonContentFilter
	default:
		return messages.StopReasonEndTurn
	}
}
