package llm

import (
	"context"
	"net/http"
	"net/url"

	"github.com/alexschlessinger/deskchat/llm/adapters"
	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	ollamaapi "github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// DefaultOllamaURL is where a local Ollama daemon listens
const DefaultOllamaURL = "http://localhost:11434"

var _ LLM = (*OllamaClient)(nil)

type OllamaClient struct {
	client *ollamaapi.Client
}

// authTransport adds Bearer token authentication to HTTP requests
type authTransport struct {
	Token string
	Base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.Token)
	return t.Base.RoundTrip(req)
}

func NewOllamaClient(baseURL string, apiKey string) *OllamaClient {
	u, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		zap.S().Debugw("ollama_invalid_url", "url", baseURL, "error", err)
		u, _ = url.Parse(DefaultOllamaURL)
	}

	// Hosted Ollama endpoints take a Bearer token
	httpClient := http.DefaultClient
	if apiKey != "" {
		httpClient = &http.Client{
			Transport: &authTransport{
				Token: apiKey,
				Base:  http.DefaultTransport,
			},
		}
	}

	return &OllamaClient{
		client: ollamaapi.NewClient(u, httpClient),
	}
}

// ChatCompletionStream implements the event-based streaming interface
func (o *OllamaClient) ChatCompletionStream(ctx context.Context, req *CompletionRequest, processor EventStreamProcessor) <-chan *messages.StreamEvent {
	messageChannel := make(chan messages.ChatMessage, 10)

	go func() {
		defer close(messageChannel)

		ctx, cancel := withTimeout(ctx, req.Timeout)
		defer cancel()

		streamCore := streaming.NewStreamingCore(ctx, messageChannel, adapters.NewOllamaAdapter(), req.coreOptions()...)

		chatReq := &ollamaapi.ChatRequest{
			Model:    req.Model,
			Messages: MessagesToOllama(req.Messages),
			Options: map[string]any{
				"temperature": req.Temperature,
				"num_predict": req.maxTokens(),
			},
		}
		if req.ThinkingEffort.IsEnabled() {
			chatReq.Think = &ollamaapi.ThinkValue{Value: true}
		}

		zap.S().Debugw("ollama_streaming_started", "model", req.Model)

		// The callback runs once per streamed chunk; thinking tokens are not relayed
		err := o.client.Chat(ctx, chatReq, func(resp ollamaapi.ChatResponse) error {
			if err := streamCore.ProcessChunk(&resp); err != nil {
				return err
			}
			streamCore.EmitContent(resp.Message.Content)
			return nil
		})
		if err != nil {
			zap.S().Debugw("ollama_chat_error", "error", err)
			streamCore.EmitError(err)
			return
		}
		streamCore.Complete()
	}()

	return processor.ProcessMessagesToEvents(messageChannel)
}

// MessagesToOllama converts messages to Ollama format
func MessagesToOllama(msgs []messages.ChatMessage) []ollamaapi.Message {
	out := make([]ollamaapi.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = ollamaapi.Message{Role: msg.Role, Content: msg.Content}
	}
	return out
}
