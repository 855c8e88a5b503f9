package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/alexschlessinger/deskchat/llm/adapters"
	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	ai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var _ LLM = (*OpenAIClient)(nil)

// OpenAIClient streams from OpenAI or any OpenAI-compatible endpoint
type OpenAIClient struct {
	ClientConfig ai.ClientConfig
	Client       *ai.Client
}

func NewOpenAIClient(apiKey string, baseURL string) *OpenAIClient {
	cfg := ai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		ClientConfig: cfg,
		Client:       ai.NewClientWithConfig(cfg),
	}
}

// ChatCompletionStream implements the event-based streaming interface
func (o *OpenAIClient) ChatCompletionStream(ctx context.Context, req *CompletionRequest, processor EventStreamProcessor) <-chan *messages.StreamEvent {
	messageChannel := make(chan messages.ChatMessage, 10)

	go func() {
		defer close(messageChannel)

		streamCore := streaming.NewStreamingCore(ctx, messageChannel, adapters.NewOpenAIAdapter(), req.coreOptions()...)
		if err := o.streamCompletion(ctx, req, streamCore); err != nil {
			streamCore.EmitError(err)
		}
	}()

	return processor.ProcessMessagesToEvents(messageChannel)
}

func (o *OpenAIClient) streamCompletion(ctx context.Context, req *CompletionRequest, streamCore *streaming.StreamingCore) error {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()
	zap.S().Debugw("openai_completion_started", "model", req.Model, "base_url", o.ClientConfig.BaseURL)

	ccr := ai.ChatCompletionRequest{
		MaxCompletionTokens: req.maxTokens(),
		Model:               req.Model,
		Messages:            MessagesToOpenAI(req.Messages),
		Temperature:         req.Temperature,
		Stream:              true,
		StreamOptions: &ai.StreamOptions{
			IncludeUsage: true, // Include token usage in final chunk
		},
	}

	// Enable reasoning for supported models (o-series, DeepSeek, etc.)
	if req.ThinkingEffort.IsEnabled() {
		ccr.ReasoningEffort = string(req.ThinkingEffort)
	}

	stream, err := o.Client.CreateChatCompletionStream(ctx, ccr)
	if err != nil {
		zap.S().Debugw("openai_stream_creation_failed", "error", err)
		return fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			zap.S().Debugw("openai_stream_error", "error", err)
			return fmt.Errorf("error during streaming: %w", err)
		}

		if err := streamCore.ProcessChunk(&response); err != nil {
			return err
		}

		// Reasoning deltas are not part of the reply and are not relayed
		if len(response.Choices) > 0 {
			streamCore.EmitContent(response.Choices[0].Delta.Content)
		}
	}

	streamCore.Complete()
	return nil
}

// MessagesToOpenAI converts our agnostic messages to OpenAI format
func MessagesToOpenAI(msgs []messages.ChatMessage) []ai.ChatCompletionMessage {
	result := make([]ai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		result[i] = ai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}
