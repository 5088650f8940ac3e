package eventstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    ConnectionState
		ev      Event
		want    ConnectionState
		illegal bool
	}{
		{"start from disconnected", StateDisconnected, Event{Kind: EventStart}, StateConnecting, false},
		{"open while connecting", StateConnecting, Event{Kind: EventOpened}, StateConnected, false},
		{"open while reconnecting", StateReconnecting, Event{Kind: EventOpened}, StateConnected, false},
		{"first attempt fails with retries left", StateConnecting, Event{Kind: EventFailed, Retry: true}, StateReconnecting, false},
		{"first attempt fails without retries", StateConnecting, Event{Kind: EventFailed}, StateDisconnected, false},
		{"drop while connected", StateConnected, Event{Kind: EventFailed, Retry: true}, StateReconnecting, false},
		{"drop while connected, exhausted", StateConnected, Event{Kind: EventFailed}, StateDisconnected, false},
		{"retry fails again", StateReconnecting, Event{Kind: EventFailed, Retry: true}, StateReconnecting, false},
		{"retry exhausts", StateReconnecting, Event{Kind: EventFailed}, StateDisconnected, false},
		{"disconnect from connected", StateConnected, Event{Kind: EventDisconnect}, StateDisconnected, false},
		{"disconnect from reconnecting", StateReconnecting, Event{Kind: EventDisconnect}, StateDisconnected, false},
		{"disconnect from disconnected", StateDisconnected, Event{Kind: EventDisconnect}, StateDisconnected, false},
		{"reconnect from disconnected", StateDisconnected, Event{Kind: EventReconnect}, StateConnecting, false},
		{"reconnect from connected", StateConnected, Event{Kind: EventReconnect}, StateConnecting, false},

		{"open while disconnected", StateDisconnected, Event{Kind: EventOpened}, StateDisconnected, true},
		{"open while connected", StateConnected, Event{Kind: EventOpened}, StateConnected, true},
		{"fail while disconnected", StateDisconnected, Event{Kind: EventFailed, Retry: true}, StateDisconnected, true},
		{"start while connected", StateConnected, Event{Kind: EventStart}, StateConnected, true},
		{"start while reconnecting", StateReconnecting, Event{Kind: EventStart}, StateReconnecting, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.ev)
			assert.Equal(t, tt.want, got)
			if tt.illegal {
				assert.ErrorIs(t, err, ErrIllegalTransition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Never reaches connected from disconnected without passing through connecting.
func TestTransitionNoShortcutToConnected(t *testing.T) {
	kinds := []EventKind{EventStart, EventOpened, EventFailed, EventDisconnect, EventReconnect}
	for _, k := range kinds {
		for _, retry := range []bool{true, false} {
			got, _ := Transition(StateDisconnected, Event{Kind: k, Retry: retry})
			assert.NotEqual(t, StateConnected, got, "event %s", k)
		}
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "opened", EventOpened.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}
