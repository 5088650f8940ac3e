package eventstream

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEndpoint is returned when the endpoint cannot be turned into a request.
	ErrInvalidEndpoint = errors.New("eventstream: invalid endpoint")

	// ErrTransport indicates the transport failed to open or dropped.
	ErrTransport = errors.New("eventstream: transport failure")

	// ErrAttemptsExhausted indicates MaxReconnectAttempts was reached.
	ErrAttemptsExhausted = errors.New("eventstream: reconnect attempts exhausted")

	// ErrMalformedPayload indicates an inbound payload was not valid JSON.
	ErrMalformedPayload = errors.New("eventstream: malformed payload")

	// ErrIllegalTransition is returned by Transition for events the current state does not accept.
	ErrIllegalTransition = errors.New("eventstream: illegal state transition")

	// ErrInvalidPolicy indicates a backoff policy that cannot grow.
	ErrInvalidPolicy = errors.New("eventstream: invalid backoff policy")

	// ErrNoProvider is returned by ProviderFrom outside a provider scope.
	ErrNoProvider = errors.New("eventstream: no stream provider in context; wrap the caller with WithProvider")
)

// ErrorKind classifies a StreamError.
type ErrorKind string

const (
	KindConstruction ErrorKind = "construction"
	KindTransport    ErrorKind = "transport"
	KindExhausted    ErrorKind = "exhausted"
	KindParse        ErrorKind = "parse"
)

// Human-readable messages surfaced through OnError and the status facade.
const (
	msgConnectionLost = "Connection lost"
	msgExhausted      = "Max reconnection attempts reached"
	msgConstruction   = "Failed to create connection"
)

// StreamError is the structured failure recorded on a connection.
type StreamError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error kind so callers can use errors.Is
// without caring about the wrapped cause.
func (e *StreamError) Is(target error) bool {
	switch e.Kind {
	case KindConstruction:
		return target == ErrInvalidEndpoint
	case KindTransport:
		return target == ErrTransport
	case KindExhausted:
		return target == ErrAttemptsExhausted
	case KindParse:
		return target == ErrMalformedPayload
	}
	return false
}

func newStreamError(kind ErrorKind, msg string, cause error) *StreamError {
	return &StreamError{Kind: kind, Message: msg, Err: cause}
}

// ErrorMessage returns the human-readable part of err, or "" for nil.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StreamError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
