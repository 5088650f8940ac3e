// Package eventstream keeps server-push streams (task logs, diffs, execution
// status) alive across network interruptions and aggregates their health.
//
// Example:
//
//	client, _ := eventstream.NewClient("https://tasks.example.com", eventstream.WithToken(token))
//
//	conn := client.Stream("/api/events/stream", true, &eventstream.Options{
//		OnMessage: func(m eventstream.Message) { ... },
//	})
//	defer conn.Close()
//
//	// Global indicator, independent of which streams are open.
//	client.Registry().OverallState()
package eventstream

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client shares base URL, credentials, HTTP client, registry and logger
// across the many streams an application keeps open.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	transport  Transport
	registry   *Registry
	logger     *zap.Logger
	backoff    BackoffPolicy
}

type ClientOption func(*Client)

// WithToken sends token as a bearer credential on every stream.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient sets the HTTP client. Streaming requests are long-lived, so
// the client should not carry a Timeout.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithTransport sets the transport used by streams that do not choose one.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) { c.transport = t }
}

// WithRegistry sets the registry streams report to. Defaults to DefaultRegistry.
func WithRegistry(r *Registry) ClientOption {
	return func(c *Client) { c.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithBackoff sets the default backoff policy.
func WithBackoff(p BackoffPolicy) ClientOption {
	return func(c *Client) { c.backoff = p }
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q must be absolute", ErrInvalidEndpoint, baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		transport:  SSETransport{},
		logger:     zap.NewNop(),
		backoff:    DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if err := c.backoff.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Registry returns the registry streams report to.
func (c *Client) Registry() *Registry { return c.registry }

// StreamURL resolves path against the base URL.
func (c *Client) StreamURL(path string) (string, error) {
	u, err := ResolveEndpoint(c.baseURL, path, "")
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// WSURL resolves path against the base URL with a ws/wss scheme.
func (c *Client) WSURL(path string) (string, error) {
	u, err := ResolveEndpoint(c.baseURL, path, "")
	if err != nil {
		return "", err
	}
	return withScheme(withScheme(u, "https", "wss"), "http", "ws").String(), nil
}

// Stream opens a connection for path. Fields left zero in opts are filled from
// the client; set MaxReconnectAttempts to UnlimitedAttempts to retry forever
// under a client that has a limit.
func (c *Client) Stream(path string, enabled bool, opts *Options) *Connection {
	return Open(path, enabled, c.options(opts))
}

// Provider opens a connection for path wrapped in a Provider.
func (c *Client) Provider(path string, enabled bool, opts *Options) *Provider {
	return NewProvider(path, enabled, c.options(opts))
}

func (c *Client) options(opts *Options) *Options {
	o := opts.clone()
	if o.BaseURL == nil {
		o.BaseURL = c.baseURL
	}
	if o.Token == "" && c.token != "" {
		o.Token = c.token
		o.WithCredentials = true
	}
	if o.HTTPClient == nil {
		o.HTTPClient = c.httpClient
	}
	if o.Transport == nil {
		o.Transport = c.transport
	}
	if o.Registry == nil {
		o.Registry = c.registry
	}
	if o.Logger == nil {
		o.Logger = c.logger
	}
	if o.InitialBackoff == 0 {
		o.InitialBackoff = c.backoff.Initial
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = c.backoff.Max
	}
	if o.BackoffMultiplier == 0 {
		o.BackoffMultiplier = c.backoff.Multiplier
	}
	if o.MaxReconnectAttempts == 0 {
		o.MaxReconnectAttempts = c.backoff.MaxAttempts
	}
	return o
}

// DurationMillis converts a millisecond count from configuration files.
func DurationMillis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
