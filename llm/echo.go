package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alexschlessinger/deskchat/llm/streaming"
	"github.com/alexschlessinger/deskchat/messages"
	"go.uber.org/zap"
)

// Echo model names with special behavior
const (
	EchoModelSlow = "slow" // pauses between words
	EchoModelFail = "fail" // fails after the first word
)

// ErrEchoFailure is the upstream failure reported by the echo/fail model
var ErrEchoFailure = errors.New("simulated upstream failure")

var _ LLM = (*EchoClient)(nil)

// EchoClient is an offline provider that streams the last user message back
// word by word. It needs no API key.
type EchoClient struct {
	Delay time.Duration
}

func NewEchoClient(delay time.Duration) *EchoClient {
	return &EchoClient{Delay: delay}
}

// ChatCompletionStream implements the event-based streaming interface
func (e *EchoClient) ChatCompletionStream(ctx context.Context, req *CompletionRequest, processor EventStreamProcessor) <-chan *messages.StreamEvent {
	messageChannel := make(chan messages.ChatMessage, 10)

	go func() {
		defer close(messageChannel)

		streamCore := streaming.NewStreamingCore(ctx, messageChannel, nil, req.coreOptions()...)
		zap.S().Debugw("echo_streaming_started", "model", req.Model)

		delay := e.Delay
		if req.Model == EchoModelSlow && delay == 0 {
			delay = 200 * time.Millisecond
		}

		for i, word := range echoWords(lastUserMessage(req.Messages)) {
			if i > 0 && delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
			streamCore.EmitContent(word)

			if req.Model == EchoModelFail {
				streamCore.EmitError(ErrEchoFailure)
				return
			}
		}
		streamCore.Complete()
	}()

	return processor.ProcessMessagesToEvents(messageChannel)
}

func lastUserMessage(msgs []messages.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == messages.MessageRoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// echoWords splits text into words, each keeping its trailing space
func echoWords(text string) []string {
	return strings.SplitAfter(text, " ")
}
