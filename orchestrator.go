package authrelay

import (
	"errors"
	"io"
	"net/http"
)

// requestContext is the per-request state carried across one dispatch and at
// most one retry: the raw token the request was sent with and the retry
// marker bounding recursion to a single retry.
type requestContext struct {
	sentToken string
	retried   bool
}

// refreshTransport intercepts failed responses and applies the refresh
// decision procedure: reject non-refreshable failures, reject already-retried
// requests, join an in-progress refresh, short-circuit requests that failed
// with an already-replaced token, or initiate exactly one refresh.
type refreshTransport struct {
	client *Client
	base   http.RoundTripper
}

// Compile-time check that refreshTransport implements http.RoundTripper.
var _ http.RoundTripper = (*refreshTransport)(nil)

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	rc := &requestContext{
		// Snapshot of the token this request is dispatched with, recovered
		// from whatever header the injector or the caller set.
		sentToken: c.tokenFromHeader(req.Header.Get(c.headerName)),
	}

	resp, err := t.base.RoundTrip(req)
	for {
		if err != nil || !c.shouldRefresh(resp) {
			// Transport errors and non-refreshable failures propagate
			// unchanged.
			return resp, err
		}
		if rc.retried {
			// Bounded to one retry per request. A request that fails again
			// after its retry settles with that failure.
			return resp, nil
		}

		retryReq, retryErr := replayableRequest(req)
		if retryErr != nil {
			// A consumed body with no GetBody cannot be resent. Surface the
			// original failure rather than a synthetic error.
			return resp, nil
		}

		// The marker is set before any retry is attempted, regardless of
		// which path below settles the token.
		rc.retried = true

		token, resolveErr := c.resolveToken(req.Context(), rc.sentToken)
		if resolveErr != nil {
			drainBody(resp)
			// The regenerated body will never be dispatched.
			if retryReq.Body != nil {
				_ = retryReq.Body.Close()
			}
			return nil, resolveErr
		}

		// Rewrite the auth header with the token that is current at the
		// moment of retry and resend.
		drainBody(resp)
		retryReq.Header.Set(c.headerName, c.headerValue(token))
		rc.sentToken = token
		req = retryReq
		resp, err = t.base.RoundTrip(req)
	}
}

// replayableRequest clones req with a fresh body for resending. The original
// body has already been consumed by the first dispatch.
func replayableRequest(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

// drainBody discards and closes a response body that will not be returned to
// the caller, letting the underlying connection be reused.
func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
