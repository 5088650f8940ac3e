package eventstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ContentTypeEventStream is the MIME type for SSE responses.
const ContentTypeEventStream = "text/event-stream"

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// SSETransport subscribes over Server-Sent Events.
type SSETransport struct{}

// Open issues the GET request and returns once the server answered 200.
func (SSETransport) Open(ctx context.Context, req Request) (EventStream, error) {
	u := withScheme(withScheme(req.URL, "ws", "http"), "wss", "https")

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: create request: %v", ErrInvalidEndpoint, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", ContentTypeEventStream)
	httpReq.Header.Set("Cache-Control", "no-cache")
	if req.LastEventID != "" {
		httpReq.Header.Set("Last-Event-ID", req.LastEventID)
	}

	client := req.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("SSE connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("SSE HTTP %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)
	return &sseStream{body: resp.Body, scanner: scanner, cancel: cancel}, nil
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	once    sync.Once
}

// Next accumulates fields until a blank line dispatches the event.
func (s *sseStream) Next(ctx context.Context) (RawEvent, error) {
	var (
		ev      RawEvent
		data    strings.Builder
		hasData bool
	)
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return RawEvent{}, err
		}
		line := s.scanner.Text()
		if line == "" {
			if !hasData {
				ev = RawEvent{}
				continue
			}
			ev.Data = []byte(data.String())
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue // heartbeat comment
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			if !strings.ContainsRune(value, 0) {
				ev.ID = value
			}
		case "event":
			ev.Event = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		}
	}
	if err := s.scanner.Err(); err != nil {
		return RawEvent{}, err
	}
	return RawEvent{}, io.EOF
}

func (s *sseStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}
