package llm

import (
	"context"
	"strings"

	"github.com/alexschlessinger/deskchat/llm/adapters"
	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"go.uber.org/zap"
)

// Thinking token budgets
const (
	thinkingBudgetLow    = 2048
	thinkingBudgetMedium = 4096
	thinkingBudgetHigh   = 8192
)

var _ LLM = (*AnthropicClient)(nil)

type AnthropicClient struct {
	client anthropic.Client
}

func NewAnthropicClient(apiKey string, baseURL string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
	}
}

func thinkingBudget(effort ThinkingEffort) int64 {
	switch effort {
	case ThinkingLow:
		return thinkingBudgetLow
	case ThinkingHigh:
		return thinkingBudgetHigh
	default:
		return thinkingBudgetMedium
	}
}

// buildRequestParams creates the Anthropic API request parameters
func (a *AnthropicClient) buildRequestParams(req *CompletionRequest) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := MessagesToAnthropicParams(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.maxTokens()),
		Messages:  anthropicMessages,
	}

	// The thinking budget counts against max_tokens and requires the default temperature
	if req.ThinkingEffort.IsEnabled() {
		budget := thinkingBudget(req.ThinkingEffort)
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
		params.MaxTokens += budget
	} else {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		}
	}
	return params
}

// ChatCompletionStream implements the event-based streaming interface
func (a *AnthropicClient) ChatCompletionStream(ctx context.Context, req *CompletionRequest, processor EventStreamProcessor) <-chan *messages.StreamEvent {
	messageChannel := make(chan messages.ChatMessage, 10)

	go func() {
		defer close(messageChannel)

		ctx, cancel := withTimeout(ctx, req.Timeout)
		defer cancel()

		streamCore := streaming.NewStreamingCore(ctx, messageChannel, adapters.NewAnthropicAdapter(), req.coreOptions()...)
		zap.S().Debugw("anthropic_streaming_started", "model", req.Model)

		stream := a.client.Messages.NewStreaming(ctx, a.buildRequestParams(req))
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()

			if err := streamCore.ProcessChunk(event); err != nil {
				streamCore.EmitError(err)
				return
			}

			// Thinking deltas are not relayed; only text deltas form the reply
			if event.Type == string(constant.ValueOf[constant.ContentBlockDelta]()) {
				streamCore.EmitContent(event.AsContentBlockDelta().Delta.Text)
			}
		}

		if err := stream.Err(); err != nil {
			streamCore.EmitError(err)
			return
		}
		streamCore.Complete()
	}()

	return processor.ProcessMessagesToEvents(messageChannel)
}

// MessagesToAnthropicParams converts messages to Anthropic format, returning
// the system prompt separately as the API expects
func MessagesToAnthropicParams(msgs []messages.ChatMessage) ([]anthropic.MessageParam, string) {
	systemPrompt, rest := splitSystem(msgs)

	var anthropicMessages []anthropic.MessageParam
	for _, msg := range rest {
		// The API rejects empty text blocks
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		block := anthropic.NewTextBlock(msg.Content)
		switch msg.Role {
		case messages.MessageRoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(block))
		default:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(block))
		}
	}
	return anthropicMessages, systemPrompt
}
