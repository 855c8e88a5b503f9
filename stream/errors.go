package stream

import (
	"errors"
	"fmt"
)

// ErrCorruptStream is returned when more malformed records arrive than the
// decoder was configured to tolerate.
var ErrCorruptStream = errors.New("too many malformed records")

// TransportError reports that the request initiating a stream failed before any
// body was decoded: a non-success status or a network failure.
type TransportError struct {
	StatusCode int    // 0 when no response was received
	Status     string // status line text, if any
	Body       string // leading part of the error response body
	Err        error  // underlying network error, if any
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("transport error: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Status, e.Body)
	default:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StreamInterruptedError reports a stream that began successfully but ended
// abnormally. Partial holds the text assembled before the failure.
type StreamInterruptedError struct {
	Partial string
	Err     error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *StreamInterruptedError) Unwrap() error {
	return e.Err
}

// PartialText extracts the partial result carried by a StreamInterruptedError
// anywhere in err's chain.
func PartialText(err error) (string, bool) {
	var interrupted *StreamInterruptedError
	if errors.As(err, &interrupted) {
		return interrupted.Partial, true
	}
	return "", false
}
