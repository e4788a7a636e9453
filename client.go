package authrelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arkadyne/authrelay/tokenstore"
)

// Default header configuration for token injection.
const (
	DefaultHeaderName   = "Authorization"
	DefaultHeaderScheme = "Bearer "
)

// defaultRefreshTimeout bounds the refresh call when no custom refresh client
// is configured.
const defaultRefreshTimeout = 30 * time.Second

// RefreshFunc performs the external call that exchanges credentials for a new
// token. It is invoked with the refresh-capable client, which never carries
// the injecting or refreshing transport, so refresh traffic cannot recurse
// into the orchestrator.
type RefreshFunc func(ctx context.Context, client *http.Client) (string, error)

// ShouldRefreshFunc classifies a failed response: true means the failure is a
// refresh trigger.
type ShouldRefreshFunc func(resp *http.Response) bool

// FailureHook is invoked once per failed refresh attempt, before the stored
// token is cleared.
type FailureHook func(ctx context.Context, err error)

// Option configures a Client.
type Option func(*clientConfig)

// clientConfig holds configuration for New.
type clientConfig struct {
	baseTransport http.RoundTripper
	refreshClient *http.Client
	shouldRefresh ShouldRefreshFunc
	failureHook   FailureHook
	headerName    string
	headerScheme  string
	inject        bool
	logger        *slog.Logger
}

// WithTransport sets the base transport used for protected requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithRefreshClient sets the client used to dispatch the refresh call, for
// example to target a separate endpoint with its own timeout. If not
// provided, a dedicated client with a 30 second timeout is used.
func WithRefreshClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.refreshClient = client
	}
}

// WithShouldRefresh sets the predicate that classifies which failed responses
// trigger a token refresh. The default treats exactly
// http.StatusUnauthorized as refreshable.
func WithShouldRefresh(fn ShouldRefreshFunc) Option {
	return func(c *clientConfig) {
		c.shouldRefresh = fn
	}
}

// WithRefreshFailureHook sets a hook invoked once per failed refresh attempt,
// before the stored token is cleared. Useful for triggering re-authentication
// flows.
func WithRefreshFailureHook(hook FailureHook) Option {
	return func(c *clientConfig) {
		c.failureHook = hook
	}
}

// WithHeader sets the request header carrying the token and the scheme prefix
// rendered before the token value. An empty scheme is allowed.
func WithHeader(name, scheme string) Option {
	return func(c *clientConfig) {
		c.headerName = name
		c.headerScheme = scheme
	}
}

// WithoutInjection disables automatic token injection on outgoing requests.
// Callers then set the auth header themselves; the orchestrator still
// rewrites it on retries.
func WithoutInjection() Option {
	return func(c *clientConfig) {
		c.inject = false
	}
}

// WithLogger sets the logger used for non-fatal internal failures (store
// write errors, refresh outcomes). Defaults to slog.Default(). Token values
// are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// Client couples a token store and a refresh callback with an HTTP client
// whose transport injects the stored token and transparently renews it on
// authorization failures. Refresh attempts are single-flight: any number of
// concurrently failing requests share one refresh call and one settlement.
type Client struct {
	store   tokenstore.Store
	refresh RefreshFunc

	shouldRefresh ShouldRefreshFunc
	failureHook   FailureHook
	headerName    string
	headerScheme  string
	logger        *slog.Logger

	httpClient    *http.Client
	refreshClient *http.Client
	transport     http.RoundTripper

	// pending is the shared in-progress refresh. Owned per Client so
	// independently configured clients never share refresh state. mu guards
	// the check-then-create sequence in resolveToken; no blocking work other
	// than a store read happens while it is held.
	mu      sync.Mutex
	pending *pendingRefresh
}

// New creates a Client bound to the given token store and refresh callback.
// No I/O is performed until the first request is dispatched.
func New(store tokenstore.Store, refresh RefreshFunc, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("missing token store")
	}
	if refresh == nil {
		return nil, errors.New("missing refresh func")
	}

	cfg := &clientConfig{
		baseTransport: http.DefaultTransport,
		shouldRefresh: func(resp *http.Response) bool {
			return resp.StatusCode == http.StatusUnauthorized
		},
		headerName:   DefaultHeaderName,
		headerScheme: DefaultHeaderScheme,
		inject:       true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.headerName == "" {
		return nil, errors.New("header name cannot be empty")
	}

	c := &Client{
		store:         store,
		refresh:       refresh,
		shouldRefresh: cfg.shouldRefresh,
		failureHook:   cfg.failureHook,
		headerName:    cfg.headerName,
		headerScheme:  cfg.headerScheme,
		logger:        cfg.logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	var rt http.RoundTripper = &refreshTransport{client: c, base: cfg.baseTransport}
	if cfg.inject {
		rt = &injectTransport{client: c, next: rt}
	}
	c.transport = rt
	c.httpClient = &http.Client{Transport: rt}

	c.refreshClient = cfg.refreshClient
	if c.refreshClient == nil {
		c.refreshClient = &http.Client{Timeout: defaultRefreshTimeout}
	}

	return c, nil
}

// HTTPClient returns the request-capable client. Requests issued through it
// carry the stored token and are transparently retried once after a shared
// refresh on authorization failures.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// RefreshClient returns the client used to dispatch the refresh call. It
// never carries the injecting or refreshing transport.
func (c *Client) RefreshClient() *http.Client {
	return c.refreshClient
}

// Transport returns the injecting and refreshing round tripper, for embedding
// in a custom http.Client or httputil.ReverseProxy.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// Token returns the currently stored token. Returns an error wrapping
// tokenstore.ErrNoToken when no token is stored.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.store.Read(ctx)
}

// SetToken stores a token, replacing any existing value.
func (c *Client) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	return c.store.Write(ctx, token)
}

// ClearToken removes the stored token.
func (c *Client) ClearToken(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// currentToken reads the stored token, mapping "no token" and read failures
// to absence. The injector and the stale-token comparison both treat an
// unreadable store the same as an empty one.
func (c *Client) currentToken(ctx context.Context) (string, bool) {
	token, err := c.store.Read(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNoToken) {
			c.logger.DebugContext(ctx, "token store read failed", "error", err)
		}
		return "", false
	}
	return token, token != ""
}

// headerValue renders the header value for a raw token.
func (c *Client) headerValue(token string) string {
	return c.headerScheme + token
}

// tokenFromHeader recovers the raw token from a rendered header value. The
// stale-token comparison works on raw tokens rather than rendered strings so
// two distinct tokens can never alias through header formatting.
func (c *Client) tokenFromHeader(value string) string {
	if value == "" {
		return ""
	}
	after, ok := strings.CutPrefix(value, c.headerScheme)
	if !ok {
		return value
	}
	return after
}

// ErrRefreshFailed marks every error caused by a failed token refresh.
// Callers distinguish refresh failures from ordinary transport errors with
// errors.Is; the underlying refresh error stays reachable through the chain.
var ErrRefreshFailed = errors.New("token refresh failed")

// errRefreshFailed wraps refresh failures so joiners and the initiator reject
// with the same settled error value.
func errRefreshFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
}
