package eventstream

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a Connection. The zero value is usable.
type Options struct {
	// OnMessage receives every inbound message in transport order.
	OnMessage func(Message)
	// OnStateChange fires once per state change with the new state.
	OnStateChange func(ConnectionState)
	// OnError fires once per failure episode with a human-readable message.
	OnError func(msg string)

	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	// MaxReconnectAttempts limits retries after the first attempt. 0 is
	// unlimited for Open and inherits the client policy for Client.Stream;
	// UnlimitedAttempts is unlimited in both.
	MaxReconnectAttempts int

	// WithCredentials attaches Token as a bearer credential.
	WithCredentials bool
	Token           string
	// Header is sent with every subscription request.
	Header http.Header

	// BaseURL resolves relative endpoints.
	BaseURL *url.URL
	// Transport defaults to SSETransport.
	Transport  Transport
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Jitter overrides the random source of the backoff calculator.
	Jitter JitterFunc

	// Registry, when set, receives a row for this stream.
	Registry *Registry
	// StreamID keys the registry row. Defaults to a random UUID.
	StreamID string
	// StreamName labels the registry row. Defaults to the endpoint.
	StreamName string
}

// UnlimitedAttempts disables the retry limit, overriding a client default.
const UnlimitedAttempts = -1

func (o *Options) defaults(endpoint string) {
	def := DefaultPolicy()
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = def.Initial
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = def.Max
	}
	if o.BackoffMultiplier <= 1 {
		o.BackoffMultiplier = def.Multiplier
	}
	if o.MaxReconnectAttempts < 0 {
		o.MaxReconnectAttempts = 0
	}
	if o.Transport == nil {
		o.Transport = SSETransport{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Registry != nil {
		if o.StreamID == "" {
			o.StreamID = uuid.NewString()
		}
		if o.StreamName == "" {
			o.StreamName = endpoint
		}
	}
}

// Policy returns the backoff policy described by the options.
func (o *Options) Policy() BackoffPolicy {
	return BackoffPolicy{
		Initial:     o.InitialBackoff,
		Max:         o.MaxBackoff,
		Multiplier:  o.BackoffMultiplier,
		MaxAttempts: o.MaxReconnectAttempts,
	}
}

func (o *Options) header() http.Header {
	h := o.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if o.WithCredentials && o.Token != "" {
		h.Set("Authorization", "Bearer "+o.Token)
	}
	return h
}

// clone copies o so callers may reuse their Options value.
func (o *Options) clone() *Options {
	if o == nil {
		return &Options{}
	}
	c := *o
	c.Header = o.Header.Clone()
	return &c
}
