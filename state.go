package eventstream

import "fmt"

// ConnectionState represents the connection state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

func (s ConnectionState) String() string { return string(s) }

// EventKind enumerates the inputs of the connection state machine.
type EventKind int

const (
	// EventStart is raised when the stream becomes enabled with an endpoint.
	EventStart EventKind = iota
	// EventOpened is raised when the transport reports open.
	EventOpened
	// EventFailed is raised on a transport error or drop.
	EventFailed
	// EventDisconnect is an intentional close by the owner.
	EventDisconnect
	// EventReconnect is a manual reconnect request.
	EventReconnect
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventOpened:
		return "opened"
	case EventFailed:
		return "failed"
	case EventDisconnect:
		return "disconnect"
	case EventReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// Event is one input to Transition.
type Event struct {
	Kind EventKind
	// Retry is only meaningful for EventFailed: true when attempts remain.
	Retry bool
}

// Transition returns the state that follows from applying ev in state from.
// Events the state does not accept yield ErrIllegalTransition and leave the
// state unchanged.
func Transition(from ConnectionState, ev Event) (ConnectionState, error) {
	switch ev.Kind {
	case EventDisconnect:
		return StateDisconnected, nil
	case EventReconnect:
		return StateConnecting, nil
	}

	switch from {
	case StateDisconnected:
		if ev.Kind == EventStart {
			return StateConnecting, nil
		}
	case StateConnecting, StateReconnecting:
		switch ev.Kind {
		case EventOpened:
			return StateConnected, nil
		case EventFailed:
			return failedState(ev), nil
		}
	case StateConnected:
		if ev.Kind == EventFailed {
			return failedState(ev), nil
		}
	}
	return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev.Kind, from)
}

func failedState(ev Event) ConnectionState {
	if ev.Retry {
		return StateReconnecting
	}
	return StateDisconnected
}
