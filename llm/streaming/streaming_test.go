package streaming

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/google/go-cmp/cmp"
)

func TestThinkFilter(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{"no tags", []string{"Hello", " world"}, "Hello world"},
		{"whole span", []string{"<think>plan</think>Answer"}, "Answer"},
		{"split open tag", []string{"<thi", "nk>plan</think>Answer"}, "Answer"},
		{"split close tag", []string{"<think>plan</th", "ink>Answer"}, "Answer"},
		{"text around span", []string{"A<think>x", "y</think>B"}, "AB"},
		{"lone angle bracket", []string{"a < b", " and c"}, "a < b and c"},
		{"trailing partial tag flushed", []string{"x <thi"}, "x <thi"},
		{"unclosed span dropped", []string{"ok<think>never closed"}, "ok"},
		{"byte by byte", strings.Split("<think>hidden</think>shown", ""), "shown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f ThinkFilter
			var out strings.Builder
			for _, c := range tt.chunks {
				out.WriteString(f.Process(c))
			}
			out.WriteString(f.Flush())
			if out.String() != tt.want {
				t.Errorf("got %q, want %q", out.String(), tt.want)
			}
		})
	}
}

type usageAdapter struct{}

func (usageAdapter) ProcessChunk(chunk any, state StreamStateInterface) error {
	if n, ok := chunk.(int); ok {
		state.SetTokenUsage(state.GetInputTokens()+1, n)
	}
	return nil
}

func drain(ch <-chan messages.ChatMessage) []messages.ChatMessage {
	var out []messages.ChatMessage
	for m := range ch {
		out = append(out, m)
	}
	return out
}

func TestStreamingCoreEmitsAndCompletes(t *testing.T) {
	ch := make(chan messages.ChatMessage, 10)
	core := NewStreamingCore(context.Background(), ch, usageAdapter{}, WithThinkFilter())

	core.EmitContent("<think>hmm</think>Hel")
	core.EmitContent("")
	core.EmitContent("lo")
	if err := core.ProcessChunk(7); err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	core.SetStopReason(messages.StopReasonMaxTokens)
	core.Complete()
	close(ch)

	want := []messages.ChatMessage{
		{Role: messages.MessageRoleAssistant, Content: "Hel"},
		{Role: messages.MessageRoleAssistant, Content: "lo"},
		{Role: messages.MessageRoleAssistant, StopReason: messages.StopReasonMaxTokens},
	}
	if diff := cmp.Diff(want, drain(ch)); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	content, _, input, output := core.GetState().Snapshot()
	if content != "Hello" || input != 1 || output != 7 {
		t.Errorf("state = %q %d %d", content, input, output)
	}
}

func TestStreamingCoreError(t *testing.T) {
	ch := make(chan messages.ChatMessage, 10)
	core := NewStreamingCore(context.Background(), ch, nil)
	core.EmitError(errors.New("401 unauthorized"))
	close(ch)

	got := drain(ch)
	if len(got) != 1 || !got[0].IsError() || got[0].Content != "401 unauthorized" {
		t.Errorf("unexpected messages %+v", got)
	}
	if err := core.ProcessChunk(1); err == nil {
		t.Error("expected error without adapter")
	}
}

func TestStreamingCoreCancelledSendsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan messages.ChatMessage) // unbuffered: a send would block forever
	core := NewStreamingCore(ctx, ch, nil)
	core.EmitContent("late")
	core.EmitError(context.Canceled)
	core.Complete()
	close(ch)

	if got := drain(ch); len(got) != 0 {
		t.Errorf("expected no messages after cancellation, got %+v", got)
	}
}

func TestPreviewKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{strings.Repeat("é", 5), 4, "éééé..."},
		{"日本語テキスト", 3, "日本語..."},
	}
	for _, tt := range tests {
		if got := preview(tt.in, tt.n); got != tt.want {
			t.Errorf("preview(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
