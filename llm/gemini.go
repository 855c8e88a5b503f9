package llm

import (
	"context"
	"fmt"

	"github.com/alexschlessinger/deskchat/llm/adapters"
	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var _ LLM = (*GeminiClient)(nil)

type GeminiClient struct {
	apiKey  string
	baseURL string
}

func NewGeminiClient(apiKey string, baseURL string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, baseURL: baseURL}
}

// ChatCompletionStream implements the event-based streaming interface
func (g *GeminiClient) ChatCompletionStream(ctx context.Context, req *CompletionRequest, processor EventStreamProcessor) <-chan *messages.StreamEvent {
	messageChannel := make(chan messages.ChatMessage, 10)

	go func() {
		defer close(messageChannel)

		ctx, cancel := withTimeout(ctx, req.Timeout)
		defer cancel()

		streamCore := streaming.NewStreamingCore(ctx, messageChannel, adapters.NewGeminiAdapter(), req.coreOptions()...)
		if err := g.streamCompletion(ctx, req, streamCore); err != nil {
			streamCore.EmitError(err)
		}
	}()

	return processor.ProcessMessagesToEvents(messageChannel)
}

func (g *GeminiClient) streamCompletion(ctx context.Context, req *CompletionRequest, streamCore *streaming.StreamingCore) error {
	cfg := &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions.BaseURL = g.baseURL
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("new gemini client: %w", err)
	}

	contents, config := buildGeminiRequest(req)
	zap.S().Debugw("gemini_streaming_started", "model", req.Model, "contents", len(contents))

	for resp, err := range client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
		if err != nil {
			zap.S().Debugw("gemini_stream_error", "error", err)
			return fmt.Errorf("error during streaming: %w", err)
		}
		if err := streamCore.ProcessChunk(resp); err != nil {
			return err
		}
		// Text skips thought parts
		streamCore.EmitContent(resp.Text())
	}

	streamCore.Complete()
	return nil
}

// buildGeminiRequest converts messages to Gemini contents and generation config
func buildGeminiRequest(req *CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	systemPrompt, rest := splitSystem(req.Messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := genai.Role(genai.RoleUser)
		if msg.Role == messages.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(req.maxTokens()),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if req.ThinkingEffort.IsEnabled() {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(thinkingBudget(req.ThinkingEffort))),
		}
	}
	return contents, config
}
