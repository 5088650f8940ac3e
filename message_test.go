package eventstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	t.Run("json object", func(t *testing.T) {
		msg, err := parseMessage(RawEvent{ID: "42", Event: "log", Data: []byte(`{"x":1}`)})
		require.NoError(t, err)
		assert.Equal(t, "42", msg.ID)
		assert.Equal(t, "log", msg.Event)
		assert.Equal(t, map[string]any{"x": float64(1)}, msg.Data)
		assert.False(t, msg.IsRaw())

		var v struct{ X int }
		require.NoError(t, msg.Decode(&v))
		assert.Equal(t, 1, v.X)
	})

	t.Run("json string", func(t *testing.T) {
		msg, err := parseMessage(RawEvent{Data: []byte(`"done"`)})
		require.NoError(t, err)
		assert.Equal(t, "done", msg.Data)
		assert.False(t, msg.IsRaw())
	})

	t.Run("raw payload passes through", func(t *testing.T) {
		msg, err := parseMessage(RawEvent{ID: "7", Data: []byte("npm install finished")})
		assert.ErrorIs(t, err, ErrMalformedPayload)
		assert.Equal(t, "npm install finished", msg.Data)
		assert.Equal(t, "7", msg.ID)
		assert.True(t, msg.IsRaw())

		var v map[string]any
		assert.ErrorIs(t, msg.Decode(&v), ErrMalformedPayload)
	})

	t.Run("empty payload", func(t *testing.T) {
		msg, err := parseMessage(RawEvent{})
		require.NoError(t, err)
		assert.Equal(t, "", msg.Data)
	})
}

func TestStreamErrorIs(t *testing.T) {
	err := newStreamError(KindExhausted, msgExhausted, errBoom)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, "Max reconnection attempts reached: boom", err.Error())
	assert.Equal(t, msgExhausted, ErrorMessage(err))
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "boom", ErrorMessage(errBoom))
}
