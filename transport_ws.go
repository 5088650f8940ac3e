package eventstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// wsReadLimit bounds a single inbound frame.
const wsReadLimit = 1 << 20

// WebSocketTransport subscribes over a WebSocket. Each text frame carries
// one message, either as an envelope {"id","event","data"} or as a bare payload.
type WebSocketTransport struct{}

// wsEnvelope is the wire format of an enveloped frame.
type wsEnvelope struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Open dials the endpoint and returns once the handshake completed.
func (WebSocketTransport) Open(ctx context.Context, req Request) (EventStream, error) {
	u := withScheme(withScheme(req.URL, "https", "wss"), "http", "ws")

	opts := &websocket.DialOptions{
		HTTPClient: req.HTTPClient,
		HTTPHeader: http.Header{},
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			opts.HTTPHeader.Add(k, v)
		}
	}

	conn, resp, err := websocket.Dial(ctx, u.String(), opts)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(wsReadLimit)
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
	once sync.Once
}

func (s *wsStream) Next(ctx context.Context) (RawEvent, error) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			return RawEvent{}, err
		}
		if typ != websocket.MessageText {
			continue
		}
		return decodeFrame(data), nil
	}
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.conn.Close(websocket.StatusNormalClosure, "client disconnect")
	})
	return err
}

// decodeFrame unwraps an envelope. The envelope's data stays JSON-encoded, so
// a string payload decodes back to a string. Frames that are not an envelope
// object with a data field are delivered whole.
func decodeFrame(data []byte) RawEvent {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env wsEnvelope
		if json.Unmarshal(trimmed, &env) == nil && env.Data != nil {
			return RawEvent{ID: env.ID, Event: env.Event, Data: env.Data}
		}
	}
	return RawEvent{Data: data}
}
