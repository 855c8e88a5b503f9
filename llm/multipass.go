package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexschlessinger/deskchat/messages"
)

// ProviderConfig holds the credentials and endpoint of one provider
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key,omitempty"`
	BaseURL string `yaml:"base_url" json:"base_url,omitempty"`
}

// MultiPass routes requests to different LLM providers based on model prefix.
// Providers other than the built-in ones are treated as OpenAI-compatible
// endpoints when they have a base URL configured.
type MultiPass struct {
	providers map[string]ProviderConfig
}

// EnvVarForProvider returns the environment variable holding the provider's API key
func EnvVarForProvider(provider string) string {
	return fmt.Sprintf("DESKCHAT_%s_KEY", strings.ToUpper(provider))
}

// NewMultiPass creates a new multi-provider router
func NewMultiPass(providers map[string]ProviderConfig) *MultiPass {
	normalized := make(map[string]ProviderConfig, len(providers))
	for name, cfg := range providers {
		normalized[strings.ToLower(name)] = cfg
	}
	return &MultiPass{providers: normalized}
}

// SplitModel splits "provider/model" into its parts
func SplitModel(model string) (provider, name string, ok bool) {
	provider, name, ok = strings.Cut(model, "/")
	if !ok || provider == "" || name == "" {
		return "", "", false
	}
	return strings.ToLower(provider), name, true
}

// ChatCompletionStream routes the request to the appropriate provider using event-based streaming
func (m *MultiPass) ChatCompletionStream(ctx context.Context, req *CompletionRequest, processor EventStreamProcessor) <-chan *messages.StreamEvent {
	provider, actualModel, ok := SplitModel(req.Model)
	if !ok {
		return errorStream(processor, fmt.Errorf("model must include provider prefix (e.g., 'openai/gpt-4o', 'anthropic/claude-sonnet-4-5'), got %q", req.Model))
	}

	// Work on a copy so the caller's request keeps its prefixed model
	routed := *req
	routed.Model = actualModel

	cfg := m.providers[provider]
	if routed.APIKey == "" {
		routed.APIKey = cfg.APIKey
	}
	if routed.BaseURL == "" {
		routed.BaseURL = cfg.BaseURL
	}

	keyless := provider == "ollama" || provider == "echo"
	if routed.APIKey == "" && !keyless {
		return errorStream(processor, fmt.Errorf("missing API key for provider '%s'. Set the %s environment variable", provider, EnvVarForProvider(provider)))
	}

	var llm LLM
	switch provider {
	case "openai":
		llm = NewOpenAIClient(routed.APIKey, routed.BaseURL)
	case "anthropic":
		llm = NewAnthropicClient(routed.APIKey, routed.BaseURL)
	case "gemini":
		llm = NewGeminiClient(routed.APIKey, routed.BaseURL)
	case "ollama":
		baseURL := routed.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		llm = NewOllamaClient(baseURL, routed.APIKey)
	case "echo":
		llm = NewEchoClient(0)
	default:
		if routed.BaseURL == "" {
			return errorStream(processor, fmt.Errorf("unknown provider '%s'. Valid providers: openai, anthropic, gemini, ollama, echo, or any provider configured with a base_url", provider))
		}
		llm = NewOpenAIClient(routed.APIKey, routed.BaseURL)
	}

	return llm.ChatCompletionStream(ctx, &routed, processor)
}

// errorStream returns an event stream that reports err and completes
func errorStream(processor EventStreamProcessor, err error) <-chan *messages.StreamEvent {
	errorChan := make(chan messages.ChatMessage, 1)
	errorChan <- messages.ChatMessage{
		Role:       messages.MessageRoleAssistant,
		Content:    err.Error(),
		StopReason: messages.StopReasonError,
	}
	close(errorChan)
	return processor.ProcessMessagesToEvents(errorChan)
}
