package eventstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		state        ConnectionState
		label        string
		healthy      bool
		connecting   bool
		disconnected bool
	}{
		{StateConnected, "Connected", true, false, false},
		{StateConnecting, "Connecting...", false, true, false},
		{StateReconnecting, "Reconnecting...", false, true, false},
		{StateDisconnected, "Disconnected", false, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			st := DeriveStatus(Snapshot{State: tt.state})
			assert.Equal(t, tt.label, st.Label)
			assert.Equal(t, tt.healthy, st.IsHealthy)
			assert.Equal(t, tt.connecting, st.IsConnecting)
			assert.Equal(t, tt.disconnected, st.IsDisconnected)
			assert.Equal(t, tt.healthy, st.IsConnected())
		})
	}
	assert.Equal(t, "Unknown", Label("weird"))
}

func TestStatusErrorMessage(t *testing.T) {
	st := DeriveStatus(Snapshot{State: StateReconnecting, Err: newStreamError(KindTransport, msgConnectionLost, errBoom)})
	assert.Equal(t, msgConnectionLost, st.ErrorMessage())
	assert.Equal(t, "", DeriveStatus(Snapshot{State: StateConnected}).ErrorMessage())

	// Without a connection the actions are no-ops.
	st.Reconnect()
	st.Disconnect()
}

func TestStatusOfPassesThrough(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := newFakeTransport(func(_ int, ctx context.Context, _ Request) (EventStream, error) {
		return newFakeStream(), nil
	})
	c := Open("http://h/api/events", true, (&recorder{}).options(tr))
	defer c.Close()

	require.Eventually(t, func() bool { return StatusOf(c).IsHealthy }, waitFor, tick)

	st := StatusOf(c)
	assert.Equal(t, "Connected", st.Label)

	st.Disconnect()
	assert.True(t, StatusOf(c).IsDisconnected)

	st.Reconnect()
	require.Eventually(t, func() bool { return StatusOf(c).IsHealthy }, waitFor, tick)
	assert.Equal(t, 2, tr.Opens())
}
