package main

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Status shows progress in the terminal title so it never mixes with the
// streamed reply. A nil *Status is valid and does nothing.
type Status struct {
	w  io.Writer
	mu sync.Mutex

	text      string
	started   time.Time
	spinning  bool
	stop      chan struct{}
	frame     int
	tickEvery time.Duration
}

// NewStatus creates a title status line writing escape codes to w
func NewStatus(w io.Writer) *Status {
	return &Status{w: w, tickEvery: 100 * time.Millisecond}
}

// setTitle writes OSC 0, which sets both window and icon title
func (s *Status) setTitle(title string) {
	fmt.Fprintf(s.w, "\033]0;%s\007", title)
}

// Start saves the current title and begins the elapsed clock
func (s *Status) Start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	// Push the title on the xterm title stack; unsupported terminals ignore it
	fmt.Fprint(s.w, "\033[22;0t")
}

// Stop halts the spinner and restores the saved title
func (s *Status) Stop() {
	if s == nil {
		return
	}
	s.stopSpinner()
	fmt.Fprint(s.w, "\033[23;0t")
	s.setTitle("")
}

// SetStatus replaces the title with static text and the elapsed time
func (s *Status) SetStatus(format string, args ...any) {
	if s == nil {
		return
	}
	s.stopSpinner()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTitle(fmt.Sprintf("%s [%.1fs]", fmt.Sprintf(format, args...), time.Since(s.started).Seconds()))
}

// ShowSpinner animates text in the title until the next SetStatus, Clear or Stop
func (s *Status) ShowSpinner(text string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.text = text
	if s.spinning {
		s.mu.Unlock()
		return
	}
	s.spinning = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	go s.spin(stop)
}

// UpdateStreamingProgress changes the spinner text to a character count
func (s *Status) UpdateStreamingProgress(chars int) {
	s.ShowSpinner(fmt.Sprintf("streaming (%d chars)", chars))
}

// Clear stops the spinner and blanks the title
func (s *Status) Clear() {
	if s == nil {
		return
	}
	s.stopSpinner()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTitle("")
}

func (s *Status) stopSpinner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spinning {
		close(s.stop)
		s.spinning = false
	}
}

func (s *Status) spin(stop <-chan struct{}) {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			select {
			case <-stop:
				// Stopped while waiting for the lock
			default:
				s.setTitle(fmt.Sprintf("%s %s [%.1fs]",
					spinnerFrames[s.frame%len(spinnerFrames)], s.text, time.Since(s.started).Seconds()))
				s.frame++
			}
			s.mu.Unlock()
		}
	}
}
