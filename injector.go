package authrelay

import "net/http"

// injectTransport attaches the currently stored token to every outgoing
// request. It runs before every dispatch, so a retried request always carries
// whatever token is current at the moment of retry, not the token captured
// when the request was first built. No-op when no token is stored; the
// request then goes out unauthenticated and the orchestrator decides what to
// do with the failure.
type injectTransport struct {
	client *Client
	next   http.RoundTripper
}

// Compile-time check that injectTransport implements http.RoundTripper.
var _ http.RoundTripper = (*injectTransport)(nil)

func (t *injectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	if token, ok := c.currentToken(req.Context()); ok {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set(c.headerName, c.headerValue(token))
	}
	return t.next.RoundTrip(req)
}
