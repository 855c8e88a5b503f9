package stream

import (
	"bytes"
	"strings"
)

// State is the mutable parsing state of one stream consumption. It is owned by
// a single Decoder and is never shared between requests.
type State struct {
	buffer       []byte          // unconsumed bytes not yet forming a complete line
	pendingEvent string          // last event header, reset once its data line is consumed
	text         strings.Builder // append-only accumulated token text
	malformed    int             // records dropped because their payload did not parse
}

// nextLine removes and returns the first complete line from the buffer.
// A trailing carriage return is stripped so CRLF framing decodes the same.
func (s *State) nextLine() (string, bool) {
	idx := bytes.IndexByte(s.buffer, '\n')
	if idx == -1 {
		return "", false
	}

	line := s.buffer[:idx]
	s.buffer = s.buffer[idx+1:]
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), true
}

// takeEvent returns the pending event name and resets it
func (s *State) takeEvent() string {
	name := s.pendingEvent
	s.pendingEvent = ""
	return name
}

// Text returns the accumulated text
func (s *State) Text() string {
	return s.text.String()
}

// Malformed returns the number of records dropped so far
func (s *State) Malformed() int {
	return s.malformed
}

// Pending returns the number of buffered bytes that do not yet form a line
func (s *State) Pending() int {
	return len(s.buffer)
}
