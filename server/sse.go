package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexschlessinger/deskchat/stream"
)

// SSEWriter writes named event-stream frames, flushing after each one
type SSEWriter struct {
	w  *bufio.Writer
	fl http.Flusher
}

// NewSSEWriter sets the event-stream headers on w and commits the response
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	fl, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &SSEWriter{
		w:  bufio.NewWriter(w),
		fl: fl,
	}, nil
}

// Send writes one frame whose data line is v encoded as JSON
func (s *SSEWriter) Send(event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}

	s.fl.Flush()
	return nil
}

// Token writes a text fragment
func (s *SSEWriter) Token(fragment string) error {
	return s.Send(stream.EventToken, fragment)
}

// Error writes an upstream failure message
func (s *SSEWriter) Error(message string) error {
	return s.Send(stream.EventError, message)
}

// Done writes the end-of-stream marker
func (s *SSEWriter) Done() error {
	return s.Send(stream.EventDone, struct{}{})
}
