package refreshfunc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

// tokenEndpoint serves a form-encoded OAuth2 refresh grant, rotating the
// refresh token on each exchange.
func tokenEndpoint(t *testing.T, grants *[]url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		*grants = append(*grants, r.PostForm)

		w.Header().Set("Content-Type", "application/json")
		switch len(*grants) {
		case 1:
			_, _ = w.Write([]byte(`{"access_token": "A1", "refresh_token": "R2", "token_type": "Bearer", "expires_in": 3600}`))
		default:
			_, _ = w.Write([]byte(`{"access_token": "A2", "token_type": "Bearer", "expires_in": 3600}`))
		}
	}))
}

func TestOAuth2RefreshGrant(t *testing.T) {
	var grants []url.Values
	server := tokenEndpoint(t, &grants)
	defer server.Close()

	cfg := &oauth2.Config{
		ClientID: "relay",
		Endpoint: oauth2.Endpoint{TokenURL: server.URL},
	}

	refresh := OAuth2(cfg, "R1")

	token, err := refresh(context.Background(), server.Client())
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if token != "A1" {
		t.Errorf("token = %q, want %q", token, "A1")
	}
	if got := grants[0].Get("refresh_token"); got != "R1" {
		t.Errorf("first grant used refresh token %q, want %q", got, "R1")
	}

	// The rotated refresh token from the first grant is used on the next
	// attempt.
	token, err = refresh(context.Background(), server.Client())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if token != "A2" {
		t.Errorf("token = %q, want %q", token, "A2")
	}
	if got := grants[1].Get("refresh_token"); got != "R2" {
		t.Errorf("second grant used refresh token %q, want %q", got, "R2")
	}
}

func TestOAuth2MissingRefreshToken(t *testing.T) {
	cfg := &oauth2.Config{ClientID: "relay"}
	refresh := OAuth2(cfg, "")

	if _, err := refresh(context.Background(), http.DefaultClient); err == nil {
		t.Error("refresh without a refresh token should fail")
	}
}
