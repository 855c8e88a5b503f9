package messages

import (
	"fmt"

	"go.uber.org/zap"
)

// StreamProcessor converts provider message chunks into a unified event stream
type StreamProcessor struct{}

// NewStreamProcessor creates a new stream processor
func NewStreamProcessor() *StreamProcessor {
	return &StreamProcessor{}
}

// ProcessMessagesToEvents converts a stream of ChatMessages into StreamEvents.
// Content chunks become token events, error chunks become error events, and
// the stream always ends with one complete event carrying the assembled reply.
func (p *StreamProcessor) ProcessMessagesToEvents(msgChan <-chan ChatMessage) <-chan *StreamEvent {
	eventChan := make(chan *StreamEvent, 10)

	processorID := fmt.Sprintf("%p", p)

	go func() {
		defer close(eventChan)

		var accumulated string
		var stopReason StopReason

		for msg := range msgChan {
			if msg.IsError() {
				zap.S().Debugw("processor_error_chunk_received",
					"processor_id", processorID,
					"message", msg.Content,
				)
				stopReason = StopReasonError
				eventChan <- &StreamEvent{
					Type:  EventTypeError,
					Error: &UpstreamError{Message: msg.Content},
				}
				continue
			}

			if msg.StopReason != "" {
				stopReason = msg.StopReason
			}

			if msg.Content != "" {
				zap.S().Debugw("processor_content_chunk_received",
					"processor_id", processorID,
					"chunk_len", len(msg.Content),
					"accumulated_len", len(accumulated)+len(msg.Content),
				)
				accumulated += msg.Content
				eventChan <- &StreamEvent{
					Type:    EventTypeToken,
					Content: msg.Content,
				}
			}
		}

		if stopReason == "" {
			stopReason = StopReasonEndTurn
		}

		eventChan <- &StreamEvent{
			Type: EventTypeComplete,
			Message: &ChatMessage{
				Role:       MessageRoleAssistant,
				Content:    accumulated,
				StopReason: stopReason,
			},
		}
	}()

	return eventChan
}
