package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/google/go-cmp/cmp"
)

func collect(ch <-chan *messages.StreamEvent) (tokens []string, errs []string, final *messages.ChatMessage) {
	for ev := range ch {
		switch ev.Type {
		case messages.EventTypeToken:
			tokens = append(tokens, ev.Content)
		case messages.EventTypeError:
			errs = append(errs, ev.Error.Error())
		case messages.EventTypeComplete:
			final = ev.Message
		}
	}
	return tokens, errs, final
}

func echoRequest(model, prompt string) *CompletionRequest {
	return &CompletionRequest{
		Model: model,
		Messages: []messages.ChatMessage{
			{Role: messages.MessageRoleSystem, Content: "be brief"},
			{Role: messages.MessageRoleUser, Content: prompt},
		},
	}
}

func TestMultiPassEcho(t *testing.T) {
	mp := NewMultiPass(nil)
	req := echoRequest("echo/words", "hello brave new world")
	tokens, errs, final := collect(mp.ChatCompletionStream(context.Background(), req, messages.NewStreamProcessor()))

	if diff := cmp.Diff([]string{"hello ", "brave ", "new ", "world"}, tokens); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
	if len(errs) != 0 {
		t.Errorf("unexpected errors %v", errs)
	}
	if final == nil || final.Content != "hello brave new world" || final.StopReason != messages.StopReasonEndTurn {
		t.Errorf("final = %+v", final)
	}
	if req.Model != "echo/words" {
		t.Errorf("caller's request was modified: %q", req.Model)
	}
}

func TestMultiPassEchoFailure(t *testing.T) {
	tokens, errs, final := collect(NewMultiPass(nil).ChatCompletionStream(
		context.Background(), echoRequest("echo/fail", "partial reply"), messages.NewStreamProcessor()))

	if diff := cmp.Diff([]string{"partial "}, tokens); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
	if len(errs) != 1 || errs[0] != ErrEchoFailure.Error() {
		t.Errorf("errors = %v", errs)
	}
	if final.StopReason != messages.StopReasonError {
		t.Errorf("StopReason = %s", final.StopReason)
	}
}

func TestMultiPassRoutingErrors(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		wantErr string
	}{
		{"no prefix", "gpt-4o", "provider prefix"},
		{"empty model name", "openai/", "provider prefix"},
		{"missing key", "anthropic/claude-sonnet-4-5", "DESKCHAT_ANTHROPIC_KEY"},
		{"unknown provider", "mystery/model", "unknown provider 'mystery'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, errs, final := collect(NewMultiPass(nil).ChatCompletionStream(
				context.Background(), echoRequest(tt.model, "x"), messages.NewStreamProcessor()))
			if len(tokens) != 0 {
				t.Errorf("unexpected tokens %v", tokens)
			}
			if len(errs) != 1 || !strings.Contains(errs[0], tt.wantErr) {
				t.Errorf("errors = %v, want one containing %q", errs, tt.wantErr)
			}
			if final == nil || final.StopReason != messages.StopReasonError {
				t.Errorf("final = %+v", final)
			}
		})
	}
}

func TestEchoCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := NewEchoClient(50 * time.Millisecond)

	events := client.ChatCompletionStream(ctx, echoRequest("words", "one two three four five six"), messages.NewStreamProcessor())

	var tokens []string
	for ev := range events {
		if ev.Type == messages.EventTypeToken {
			tokens = append(tokens, ev.Content)
			if len(tokens) == 2 {
				cancel()
			}
		}
	}
	if len(tokens) >= 6 {
		t.Errorf("stream did not stop after cancellation: %v", tokens)
	}
}

func TestSplitModel(t *testing.T) {
	provider, name, ok := SplitModel("Ollama/llama3.2:3b")
	if !ok || provider != "ollama" || name != "llama3.2:3b" {
		t.Errorf("SplitModel = %q %q %v", provider, name, ok)
	}
	if _, _, ok := SplitModel("plain"); ok {
		t.Error("expected failure for model without provider")
	}
}

func TestThinkingForMode(t *testing.T) {
	if ThinkingForMode(messages.ModeThink) != ThinkingMedium {
		t.Error("think mode should enable reasoning")
	}
	if ThinkingForMode(messages.ModeChat).IsEnabled() {
		t.Error("chat mode should not enable reasoning")
	}
}

func TestMessageConversion(t *testing.T) {
	msgs := []messages.ChatMessage{
		{Role: messages.MessageRoleSystem, Content: "sys"},
		{Role: messages.MessageRoleUser, Content: "hi"},
		{Role: messages.MessageRoleAssistant, Content: ""},
		{Role: messages.MessageRoleAssistant, Content: "hello"},
	}

	anthropicMsgs, system := MessagesToAnthropicParams(msgs)
	if system != "sys" || len(anthropicMsgs) != 2 {
		t.Errorf("anthropic: system %q, %d messages", system, len(anthropicMsgs))
	}

	contents, config := buildGeminiRequest(&CompletionRequest{Messages: msgs, ThinkingEffort: ThinkingHigh})
	if len(contents) != 3 || contents[2].Role != "model" {
		t.Errorf("gemini contents = %+v", contents)
	}
	if config.SystemInstruction == nil || config.ThinkingConfig == nil || config.MaxOutputTokens != DefaultMaxTokens {
		t.Errorf("gemini config = %+v", config)
	}

	if got := MessagesToOpenAI(msgs); len(got) != 4 || got[0].Role != "system" {
		t.Errorf("openai = %+v", got)
	}
	if got := MessagesToOllama(msgs); len(got) != 4 || got[3].Content != "hello" {
		t.Errorf("ollama = %+v", got)
	}
}
