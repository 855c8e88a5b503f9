package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"
)

const defaultReadSize = 4096

// Handlers are the caller-supplied callbacks of a decode. Both are optional and
// are invoked synchronously, in the order records were decoded.
type Handlers struct {
	// OnProgress receives the accumulated text after every token or error record
	OnProgress func(text string)
	// OnEvent receives every non-token record (error, title, done, ...)
	OnEvent func(ev Event)
}

// Option configures a Decoder
type Option func(*Decoder)

// WithErrorMarker sets the text placed before upstream error messages
func WithErrorMarker(marker string) Option {
	return func(d *Decoder) {
		d.marker = marker
	}
}

// WithMaxMalformed aborts decoding once more than n malformed records have been
// dropped. Zero, the default, tolerates any number.
func WithMaxMalformed(n int) Option {
	return func(d *Decoder) {
		d.maxMalformed = n
	}
}

// WithLogger sets the logger used for dropped records and discarded tails
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithReadSize sets the size of the reads Decode issues against its reader
func WithReadSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.readSize = n
		}
	}
}

// Decoder turns a chunked event stream into ordered events, folding token
// records into a single growing text. A Decoder serves exactly one stream.
type Decoder struct {
	handlers     Handlers
	state        State
	marker       string
	maxMalformed int
	readSize     int
	logger       *zap.SugaredLogger
	cancelled    bool
	err          error
}

// NewDecoder creates a decoder delivering events to h
func NewDecoder(h Handlers, opts ...Option) *Decoder {
	d := &Decoder{
		handlers: h,
		marker:   DefaultErrorMarker,
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.S()
	}
	return d
}

// Decode is a shorthand for NewDecoder(h, opts...).Decode(ctx, r)
func Decode(ctx context.Context, r io.Reader, h Handlers, opts ...Option) (string, error) {
	return NewDecoder(h, opts...).Decode(ctx, r)
}

// Decode reads r until end of stream and returns the accumulated text.
//
// If ctx is cancelled the decode stops without invoking further callbacks and
// returns the partial text with a nil error; Cancelled reports true afterwards.
// A read failure returns a *StreamInterruptedError carrying the partial text.
// When r is an io.Closer it is closed on cancellation to unblock a pending read.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (string, error) {
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() {
			c.Close()
		})
		defer stop()
	}

	buf := make([]byte, d.readSize)
	for {
		if ctx.Err() != nil {
			return d.cancel(), nil
		}

		n, err := r.Read(buf)
		if ctx.Err() != nil {
			return d.cancel(), nil
		}

		if n > 0 {
			if ferr := d.feed(ctx, buf[:n]); ferr != nil {
				return d.Text(), &StreamInterruptedError{Partial: d.Text(), Err: ferr}
			}
			if d.cancelled {
				return d.Text(), nil
			}
		}

		if err == io.EOF {
			d.flush()
			return d.Text(), nil
		}
		if err != nil {
			d.logger.Debugw("decoder_read_failed", "error", err, "partial_length", d.state.text.Len())
			return d.Text(), &StreamInterruptedError{Partial: d.Text(), Err: err}
		}
	}
}

// Feed processes one chunk of the stream, dispatching every record it
// completes. It returns ErrCorruptStream once the malformed-record limit is
// exceeded; the decoder then ignores further input.
func (d *Decoder) Feed(chunk []byte) error {
	return d.feed(context.Background(), chunk)
}

// Text returns the text accumulated so far
func (d *Decoder) Text() string {
	return d.state.Text()
}

// State exposes the decoder's parsing state
func (d *Decoder) State() *State {
	return &d.state
}

// Cancelled reports whether Decode ended because its context was cancelled
func (d *Decoder) Cancelled() bool {
	return d.cancelled
}

func (d *Decoder) feed(ctx context.Context, chunk []byte) error {
	if d.err != nil {
		return d.err
	}

	d.state.buffer = append(d.state.buffer, chunk...)
	for {
		// Cancellation is observed between records so no callback fires after it
		if ctx.Err() != nil {
			d.cancelled = true
			return nil
		}

		line, ok := d.state.nextLine()
		if !ok {
			return nil
		}

		if err := d.processLine(line); err != nil {
			d.err = err
			return err
		}
	}
}

func (d *Decoder) processLine(line string) error {
	switch {
	case strings.HasPrefix(line, eventPrefix):
		d.state.pendingEvent = strings.TrimSpace(line[len(eventPrefix):])
	case strings.HasPrefix(line, dataPrefix):
		return d.dispatch(Frame{
			Event: d.state.takeEvent(),
			Data:  line[len(dataPrefix):],
		})
	}
	// Blank separators and unknown fields carry no meaning here
	return nil
}

func (d *Decoder) dispatch(f Frame) error {
	name := f.Name()

	switch name {
	case EventToken, EventMessage:
		var fragment string
		if err := json.Unmarshal([]byte(f.Data), &fragment); err != nil {
			return d.drop(f, err)
		}
		if fragment == "" {
			return nil
		}
		d.state.text.WriteString(fragment)
		d.progress()

	case EventError:
		var message string
		if err := json.Unmarshal([]byte(f.Data), &message); err != nil {
			return d.drop(f, err)
		}
		d.state.text.WriteString(d.marker)
		d.state.text.WriteString(message)
		d.progress()
		d.emit(Event{Name: name, Payload: message, Raw: json.RawMessage(f.Data)})

	default:
		var payload any
		if err := json.Unmarshal([]byte(f.Data), &payload); err != nil {
			return d.drop(f, err)
		}
		d.emit(Event{Name: name, Payload: payload, Raw: json.RawMessage(f.Data)})
	}

	return nil
}

// drop discards a record whose payload failed to parse
func (d *Decoder) drop(f Frame, err error) error {
	d.state.malformed++
	d.logger.Debugw("decoder_record_dropped",
		"event", f.Name(),
		"error", err,
		"malformed_count", d.state.malformed,
	)

	if d.maxMalformed > 0 && d.state.malformed > d.maxMalformed {
		return ErrCorruptStream
	}
	return nil
}

func (d *Decoder) progress() {
	if d.handlers.OnProgress != nil {
		d.handlers.OnProgress(d.state.Text())
	}
}

func (d *Decoder) emit(ev Event) {
	if d.handlers.OnEvent != nil {
		d.handlers.OnEvent(ev)
	}
}

// flush discards an unterminated trailing line at end of stream
func (d *Decoder) flush() {
	if len(d.state.buffer) > 0 {
		d.logger.Debugw("decoder_tail_discarded", "bytes", len(d.state.buffer))
	}
	d.state.buffer = nil
	d.state.pendingEvent = ""
}

func (d *Decoder) cancel() string {
	d.cancelled = true
	d.logger.Debugw("decoder_cancelled", "partial_length", d.state.text.Len())
	return d.Text()
}
