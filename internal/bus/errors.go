package bus

import (
	"errors"
	"fmt"
)

// Domain errors for the bus package.
var (
	// ErrNilHandler is returned when subscribing without a handler.
	ErrNilHandler = errors.New("bus: handler cannot be nil")

	// ErrNilPayload is returned when publishing a nil payload.
	ErrNilPayload = errors.New("bus: payload cannot be nil")

	// ErrClosed is returned when publishing or subscribing after Close.
	ErrClosed = errors.New("bus: closed")

	// ErrHandlerFailed wraps every handler error or recovered panic.
	ErrHandlerFailed = errors.New("bus: handler failed")

	// ErrPayloadMismatch is returned by Handle when the payload is not of the
	// handler's Go type.
	ErrPayloadMismatch = errors.New("bus: payload type mismatch")
)

// HandlerError describes one failed handler invocation. It wraps
// ErrHandlerFailed and the handler's own error.
type HandlerError struct {
	Token Token
	Kind  string
	Err   error
}

// Error implements error.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("bus: handler %s for %q failed: %v", e.Token, e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *HandlerError) Unwrap() []error {
	return []error{ErrHandlerFailed, e.Err}
}
