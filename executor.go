package authrelay

import (
	"context"
	"errors"
)

// pendingRefresh is the shared settlement of one in-progress refresh. At most
// one exists per Client at any instant. Every request that observes it before
// it settles receives the same token or the same error.
type pendingRefresh struct {
	done  chan struct{}
	token string
	err   error
}

// wait blocks until the refresh settles or the waiting request's own context
// is done. The shared refresh itself is not cancelled by a waiter giving up.
func (p *pendingRefresh) wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.token, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// resolveToken settles the token a marked-for-retry request should resend
// with. Evaluated strictly in this order:
//
//  1. Join: if a refresh is in progress, await its settlement. No further
//     logic runs for this request, so a request behind an in-flight refresh
//     can never trigger a second one.
//  2. Stale-token short-circuit: if the stored token already differs from the
//     one this request was dispatched with, some other flow refreshed it in
//     the meantime; resend with the current token, no refresh.
//  3. Initiate: this request becomes the one responsible for refreshing.
//
// The mutex is held from the pending check through slot assignment so no two
// requests can race into initiation.
func (c *Client) resolveToken(ctx context.Context, sentToken string) (string, error) {
	c.mu.Lock()
	if p := c.pending; p != nil {
		c.mu.Unlock()
		return p.wait(ctx)
	}

	if current, ok := c.currentToken(ctx); ok && current != sentToken {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "token already replaced, retrying without refresh")
		return current, nil
	}

	p := &pendingRefresh{done: make(chan struct{})}
	c.pending = p
	c.mu.Unlock()

	c.runRefresh(ctx, p)
	return p.wait(ctx)
}

// runRefresh performs exactly one refresh call and broadcasts its settlement.
// On success the new token is written to the store before anyone observes the
// settlement. On failure the hook runs once, then the store is cleared; the
// clear is deferred so a panicking hook cannot skip it. Clearing the pending
// slot and waking joiners is the final action on every path, including
// panics, so the next refreshable failure starts a fresh attempt.
func (c *Client) runRefresh(ctx context.Context, p *pendingRefresh) {
	defer func() {
		// A panic in the refresh callback must still settle the joiners
		// before it propagates through the initiating request.
		if p.err == nil && p.token == "" {
			p.err = errRefreshFailed(errors.New("refresh did not settle"))
		}
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		close(p.done)
	}()

	// Detach from the initiating request's cancellation: joiners should not
	// lose a shared refresh because the initiator's caller gave up. The
	// refresh client's timeout bounds the call instead.
	ctx = context.WithoutCancel(ctx)

	token, err := c.refresh(ctx, c.refreshClient)
	if err == nil && token == "" {
		err = errors.New("refresh returned empty token")
	}
	if err != nil {
		p.err = errRefreshFailed(err)
		c.logger.ErrorContext(ctx, "token refresh failed", "error", err)

		defer func() {
			if cerr := c.store.Clear(ctx); cerr != nil {
				c.logger.ErrorContext(ctx, "failed to clear token after refresh failure", "error", cerr)
			}
		}()
		if c.failureHook != nil {
			c.failureHook(ctx, err)
		}
		return
	}

	if werr := c.store.Write(ctx, token); werr != nil {
		// The renewed token still settles this round of requests; only
		// persistence failed. Subsequent stale-token comparisons may misfire
		// until a later write succeeds.
		c.logger.ErrorContext(ctx, "failed to persist refreshed token", "error", werr)
	}
	p.token = token
	c.logger.DebugContext(ctx, "token refreshed")
}
