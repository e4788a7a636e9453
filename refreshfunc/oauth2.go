package refreshfunc

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/arkadyne/authrelay"
)

// OAuth2 returns a RefreshFunc that performs a standard OAuth2 refresh-token
// grant against cfg's token endpoint. Providers that rotate refresh tokens
// are handled: a new refresh token returned by the grant replaces the one
// used for subsequent attempts.
//
// A fresh oauth2.TokenSource is built per attempt so every invocation
// performs a real exchange; caching and expiry tracking belong to the
// orchestrator's token store, not here.
func OAuth2(cfg *oauth2.Config, initialRefreshToken string) authrelay.RefreshFunc {
	var mu sync.Mutex
	refreshToken := initialRefreshToken

	return func(ctx context.Context, client *http.Client) (string, error) {
		mu.Lock()
		current := refreshToken
		mu.Unlock()

		if current == "" {
			return "", fmt.Errorf("no refresh token available")
		}

		// The oauth2 package takes its HTTP client from the context.
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
		tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: current}).Token()
		if err != nil {
			return "", fmt.Errorf("oauth2 refresh grant: %w", err)
		}

		if tok.RefreshToken != "" && tok.RefreshToken != current {
			mu.Lock()
			refreshToken = tok.RefreshToken
			mu.Unlock()
		}

		return tok.AccessToken, nil
	}
}
