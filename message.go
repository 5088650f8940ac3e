package eventstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawEvent is one discrete message as read off the wire.
type RawEvent struct {
	ID    string
	Event string
	Data  []byte
}

// Message is a parsed inbound message handed to OnMessage.
type Message struct {
	// ID is the server-assigned identifier, used for replay. May be empty.
	ID string `json:"id,omitempty"`
	// Event is the event name. May be empty.
	Event string `json:"event,omitempty"`
	// Data is the decoded JSON value, or the payload as a string when it is not JSON.
	Data any `json:"data"`
	// Raw is the payload exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Decode unmarshals the raw payload into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// IsRaw reports whether the payload could not be decoded as JSON.
func (m Message) IsRaw() bool {
	_, ok := m.Data.(string)
	return ok && !json.Valid(m.Raw)
}

// parseMessage decodes ev.Data as JSON. A payload that does not parse is
// passed through as a string and the parse error is returned alongside it.
func parseMessage(ev RawEvent) (Message, error) {
	msg := Message{
		ID:    ev.ID,
		Event: ev.Event,
		Raw:   json.RawMessage(ev.Data),
	}
	trimmed := bytes.TrimSpace(ev.Data)
	if len(trimmed) == 0 {
		msg.Data = string(ev.Data)
		return msg, nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		msg.Data = string(ev.Data)
		return msg, newStreamError(KindParse, "Failed to parse message", err)
	}
	msg.Data = v
	return msg, nil
}
