package adapters

import (
	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	ollamaapi "github.com/ollama/ollama/api"
)

// OllamaAdapter captures usage and stop reasons from Ollama chat responses
type OllamaAdapter struct{}

// NewOllamaAdapter creates a new Ollama streaming adapter
func NewOllamaAdapter() *OllamaAdapter {
	return &OllamaAdapter{}
}

// ProcessChunk handles Ollama streaming chunks
func (a *OllamaAdapter) ProcessChunk(chunk any, state streaming.StreamStateInterface) error {
	resp, ok := chunk.(*ollamaapi.ChatResponse)
	if !ok || !resp.Done {
		return nil
	}

	// Token counts only arrive on the final chunk
	state.SetTokenUsage(resp.PromptEvalCount, resp.EvalCount)
	if resp.DoneReason == "length" {
		state.SetStopReason(messages.StopReasonMaxTokens)
	} else {
		state.SetStopReason(messages.StopReasonEndTurn)
	}
	return nil
}
