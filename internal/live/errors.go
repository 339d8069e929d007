package live

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Start once the manager has been stopped. A
// manager serves a single session.
var ErrStopped = errors.New("live: manager stopped")

// TransportError reports a failed dial, a read failure, or a close of the
// stream connection. Transport errors trigger a reconnect and are never
// surfaced to views.
type TransportError struct {
	Op  string // "dial" or "read"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a frame that could not be parsed or whose payload
// was rejected by its store. The frame is dropped.
type ProtocolError struct {
	Kind string // empty when the frame itself was unreadable
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("protocol: %v", e.Err)
	}
	return fmt.Sprintf("protocol: %s: %v", e.Kind, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
