// Package authrelay provides transparent renewal of a short-lived
// authentication token for HTTP clients issuing many concurrent requests
// against a protected API.
//
// When the stored token expires, every in-flight request starts failing with
// an authorization error. Refreshing on each failure stampedes the token
// endpoint; retrying blindly loses late-arriving failures. authrelay collapses
// concurrent refresh attempts into exactly one, retries each failed request
// once with the renewed token, and resolves requests that failed with an
// already-replaced token without any refresh at all.
//
// # Usage
//
// Bind a token store and a refresh callback, then use the returned client for
// all protected requests:
//
//	store := tokenstore.NewMemoryStore("")
//	client, err := authrelay.New(store, refreshfunc.Endpoint(tokenURL, "access_token", payload))
//	if err != nil {
//		// ...
//	}
//	resp, err := client.HTTPClient().Get("https://api.example.com/v1/things")
//
// On a 401 the request is transparently retried after a single shared token
// refresh. The refresh call itself is dispatched through a separate client
// that never carries the injecting or refreshing transport.
//
// # What this package does not do
//
// Token format and validation, transport security, and retry or backoff for
// non-authorization failures are out of scope. A refresh call that never
// settles keeps its joiners waiting until their own request contexts are
// cancelled; bound the refresh client's timeout to avoid that.
package authrelay
