package stream

import "encoding/json"

// Line prefixes of the record framing
const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// Recognized event names
const (
	// EventMessage is the implied name of a data line with no preceding event header.
	// It is decoded as plain token data.
	EventMessage = "message"
	// EventToken carries one JSON string fragment of generated text
	EventToken = "token"
	// EventError carries a JSON string describing an upstream failure
	EventError = "error"
	// EventTitle carries a JSON object with a conversation id and its new title
	EventTitle = "title"
	// EventDone is sent by the backend as the last record of a stream
	EventDone = "done"
)

// DefaultErrorMarker is prepended to upstream error messages in the accumulated text
const DefaultErrorMarker = "\n\n⚠️ "

// Frame is one decoded record read off the wire: the event name in effect and
// the raw payload of a single data line.
type Frame struct {
	Event string
	Data  string
}

// Name returns the frame's event name, falling back to EventMessage.
func (f Frame) Name() string {
	if f.Event == "" {
		return EventMessage
	}
	return f.Event
}

// Event is a non-token record delivered to Handlers.OnEvent.
type Event struct {
	Name    string
	Payload any             // JSON-decoded payload (string for error events)
	Raw     json.RawMessage // payload as received
}

// Decode unmarshals the raw payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// Message returns the payload as a string, as carried by error events.
func (e Event) Message() string {
	s, _ := e.Payload.(string)
	return s
}
