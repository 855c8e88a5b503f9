package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/stream"
)

// terminalProcessor writes a reply to the terminal as it streams. Each new
// piece of text is held until the next callback so that an error, whose text
// arrives just before OnError, can be printed in the error style.
type terminalProcessor struct {
	messages.BaseEventProcessor

	out    io.Writer
	status *Status

	seen    int
	pending string
	wrote   bool
	endsNL  bool
	title   messages.TitleUpdate
	errs    []error
}

func newTerminalProcessor(out io.Writer, status *Status) *terminalProcessor {
	return &terminalProcessor{out: out, status: status}
}

func (p *terminalProcessor) OnProgress(text string) {
	p.BaseEventProcessor.OnProgress(text)
	p.flush()
	if len(text) > p.seen {
		p.pending = text[p.seen:]
		p.seen = len(text)
	}
	p.status.UpdateStreamingProgress(utf8.RuneCountInString(text))
}

func (p *terminalProcessor) OnError(err error) {
	p.errs = append(p.errs, err)
	if p.pending == "" {
		p.write(errorStyle.Styled(stream.DefaultErrorMarker + err.Error()))
		return
	}
	p.write(errorStyle.Styled(p.pending))
	p.pending = ""
}

func (p *terminalProcessor) OnTitle(update messages.TitleUpdate) {
	p.title = update
	p.status.ShowSpinner(update.Title)
}

func (p *terminalProcessor) OnEvent(ev stream.Event) {
	p.flush()
}

// Finish writes anything still held and ends the reply on a fresh line
func (p *terminalProcessor) Finish() {
	p.flush()
	if p.wrote && !p.endsNL {
		fmt.Fprintln(p.out)
	}
}

// Failed reports whether the backend sent an error event
func (p *terminalProcessor) Failed() bool {
	return len(p.errs) > 0
}

func (p *terminalProcessor) flush() {
	if p.pending != "" {
		p.write(p.pending)
		p.pending = ""
	}
}

func (p *terminalProcessor) write(s string) {
	fmt.Fprint(p.out, s)
	p.wrote = true
	p.endsNL = strings.HasSuffix(s, "\n")
}

// collectProcessor keeps the result of a stream that is printed later
type collectProcessor struct {
	messages.BaseEventProcessor
	failed bool
}

func (p *collectProcessor) OnError(error) {
	p.failed = true
}
