package eventstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// LastEventIDParam is the query parameter carrying the replay position.
const LastEventIDParam = "lastEventId"

// Request describes one subscription attempt.
type Request struct {
	// URL is the resolved endpoint, replay parameter included.
	URL *url.URL
	// LastEventID is the id of the last delivered message, empty on a fresh subscription.
	LastEventID string
	// Header is sent with the subscription request.
	Header http.Header
	// HTTPClient performs the request. Transports fall back to http.DefaultClient.
	HTTPClient *http.Client
}

// Transport opens server-push subscriptions.
type Transport interface {
	// Open performs the subscription request and returns once the server
	// accepted it. Errors wrapping ErrInvalidEndpoint are not retried.
	Open(ctx context.Context, req Request) (EventStream, error)
}

// EventStream is one live subscription.
type EventStream interface {
	// Next blocks until the next message arrives.
	// Returns io.EOF when the server ends the stream.
	Next(ctx context.Context) (RawEvent, error)

	// Close terminates the stream and releases resources.
	Close() error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req Request) (EventStream, error)

func (f TransportFunc) Open(ctx context.Context, req Request) (EventStream, error) {
	return f(ctx, req)
}

// ResolveEndpoint parses endpoint, resolves it against base when it is
// relative and attaches the replay parameter when lastEventID is set.
func ResolveEndpoint(base *url.URL, endpoint, lastEventID string) (*url.URL, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrInvalidEndpoint)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if !u.IsAbs() {
		if base == nil {
			return nil, fmt.Errorf("%w: relative endpoint %q without base URL", ErrInvalidEndpoint, endpoint)
		}
		u = base.ResolveReference(u)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, endpoint)
	}
	if lastEventID != "" {
		q := u.Query()
		q.Set(LastEventIDParam, lastEventID)
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// withScheme returns a copy of u with scheme from replaced by to.
func withScheme(u *url.URL, from, to string) *url.URL {
	c := *u
	if c.Scheme == from {
		c.Scheme = to
	}
	return &c
}
