// Package proxy runs a local forward proxy whose upstream transport is an
// auto-refreshing authrelay round tripper: local callers speak plain HTTP,
// the proxy attaches the current token and absorbs refresh cycles.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
)

// Proxy represents the forward proxy server.
type Proxy struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// Option configures a Proxy.
type Option func(*proxyConfig)

type proxyConfig struct {
	baseURL string
}

// WithBaseURL sets the upstream base URL requests are forwarded to.
func WithBaseURL(baseURL string) Option {
	return func(c *proxyConfig) {
		c.baseURL = baseURL
	}
}

// New creates a forward proxy that relays every request to the upstream base
// URL through the given transport. The transport is expected to handle token
// injection and refresh; the proxy itself stays credential-agnostic.
func New(transport http.RoundTripper, opts ...Option) (*Proxy, error) {
	cfg := &proxyConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	upstream, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream URL must be absolute: %s", cfg.baseURL)
	}

	reverseProxyHandler := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = upstream.Scheme
			pr.Out.URL.Host = upstream.Host
			pr.Out.URL.Path = singleJoiningSlash(upstream.Path, pr.In.URL.Path)
			pr.Out.Host = upstream.Host
			// Local callers must not smuggle their own credentials upstream;
			// the transport owns the auth header.
			pr.Out.Header.Del("Authorization")
		},
		// FlushInterval: -1 disables periodic flushing, flushing only when
		// the backend flushes. Keeps streaming responses (SSE) flowing as
		// soon as the upstream sends data.
		FlushInterval: -1,
		Transport:     transport,
		// Refresh failures and transport errors surface here.
		ErrorHandler: writeProxyError,
	}

	logger := slog.Default()

	mux := http.NewServeMux()
	mux.Handle("/", applyMiddlewares(reverseProxyHandler,
		RequestID,
		Logging(logger),
		Recovery,
	))

	return &Proxy{mux: mux}, nil
}

// singleJoiningSlash joins URL paths without doubling or dropping the
// separator.
func singleJoiningSlash(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	aSlash := a[len(a)-1] == '/'
	bSlash := b[0] == '/'
	switch {
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	}
	return a + b
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error
// channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create the listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second, // Read entire client request (slow-client protection)
		WriteTimeout: 15 * time.Minute, // Allows long streaming responses, still bounded
		IdleTimeout:  90 * time.Second, // Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
