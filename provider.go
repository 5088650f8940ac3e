package eventstream

import (
	"context"
	"net/http"
)

type providerKey struct{}

// Provider scopes one Connection to every consumer below it. Consumers read
// it from a context.Context instead of receiving the connection explicitly.
type Provider struct {
	conn *Connection
}

// NewProvider opens a Connection with the same arguments as Open.
func NewProvider(endpoint string, enabled bool, opts *Options) *Provider {
	return &Provider{conn: Open(endpoint, enabled, opts)}
}

// Connection returns the provided connection.
func (p *Provider) Connection() *Connection { return p.conn }

// Status returns the current status of the provided connection.
func (p *Provider) Status() Status { return StatusOf(p.conn) }

// Close closes the provided connection.
func (p *Provider) Close() { p.conn.Close() }

// WithProvider returns a copy of ctx carrying p.
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// ProviderFrom returns the provider carried by ctx, or ErrNoProvider when
// the caller runs outside any provider.
func ProviderFrom(ctx context.Context) (*Provider, error) {
	p, ok := LookupProvider(ctx)
	if !ok {
		return nil, ErrNoProvider
	}
	return p, nil
}

// LookupProvider returns the provider carried by ctx, if any.
func LookupProvider(ctx context.Context) (*Provider, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(providerKey{}).(*Provider)
	return p, ok && p != nil
}

// Middleware makes p available to every handler below it through the
// request context.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithProvider(r.Context(), p)))
	})
}
