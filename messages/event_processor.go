package messages

import (
	"github.com/alexschlessinger/deskchat/stream"
	"go.uber.org/zap"
)

// EventProcessor defines an interface for rendering a decoded chat stream.
// Each surface (terminal transcript, tool page, comparison column) supplies
// its own implementation and shares the same decoder.
type EventProcessor interface {
	// OnProgress is called with the full accumulated text after each token or error
	OnProgress(text string)

	// OnTitle is called when the backend assigns a conversation title
	OnTitle(update TitleUpdate)

	// OnError is called once per error event reported by the backend
	OnError(err error)

	// OnEvent is called for every other named event, including done
	OnEvent(ev stream.Event)

	// GetResponse returns the latest accumulated text
	GetResponse() string
}

// BaseEventProcessor provides no-op defaults. Embedders that override
// OnProgress should call through so GetResponse stays current.
type BaseEventProcessor struct {
	response string
}

// OnProgress records the accumulated text
func (p *BaseEventProcessor) OnProgress(text string) {
	p.response = text
}

func (p *BaseEventProcessor) OnTitle(TitleUpdate) {}

func (p *BaseEventProcessor) OnError(error) {}

func (p *BaseEventProcessor) OnEvent(stream.Event) {}

// GetResponse returns the accumulated response text
func (p *BaseEventProcessor) GetResponse() string {
	return p.response
}

// Handlers adapts an EventProcessor to decoder callbacks
func Handlers(p EventProcessor) stream.Handlers {
	return stream.Handlers{
		OnProgress: p.OnProgress,
		OnEvent: func(ev stream.Event) {
			switch ev.Name {
			case stream.EventError:
				p.OnError(&UpstreamError{Message: ev.Message()})

			case stream.EventTitle:
				var update TitleUpdate
				if err := ev.Decode(&update); err != nil {
					zap.S().Debugw("title_event_invalid", "error", err, "raw", string(ev.Raw))
					return
				}
				p.OnTitle(update)

			default:
				p.OnEvent(ev)
			}
		},
	}
}
