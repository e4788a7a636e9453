package authrelay

import (
	"context"
	"net/http"
	"testing"

	"github.com/arkadyne/authrelay/tokenstore"
)

func TestInjectTransport(t *testing.T) {
	tests := []struct {
		name           string
		storedToken    string
		opts           []Option
		callerHeader   string
		expectedHeader string
	}{
		{
			name:           "token present - default header and scheme",
			storedToken:    "tok-123",
			expectedHeader: "Bearer tok-123",
		},
		{
			name:           "no token stored - header untouched",
			storedToken:    "",
			expectedHeader: "",
		},
		{
			name:           "custom header name and scheme",
			storedToken:    "tok-123",
			opts:           []Option{WithHeader("X-Api-Token", "Token ")},
			expectedHeader: "Token tok-123",
		},
		{
			name:           "empty scheme renders bare token",
			storedToken:    "tok-123",
			opts:           []Option{WithHeader("Authorization", "")},
			expectedHeader: "tok-123",
		},
		{
			name:           "stored token overrides caller header",
			storedToken:    "tok-123",
			callerHeader:   "Bearer stale",
			expectedHeader: "Bearer tok-123",
		},
		{
			name:           "no token keeps caller header",
			storedToken:    "",
			callerHeader:   "Bearer manual",
			expectedHeader: "Bearer manual",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headerName := DefaultHeaderName
			for _, opt := range tt.opts {
				cfg := &clientConfig{}
				opt(cfg)
				if cfg.headerName != "" {
					headerName = cfg.headerName
				}
			}

			var seen string
			base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
				seen = req.Header.Get(headerName)
				return response(http.StatusOK), nil
			})

			store := tokenstore.NewMemoryStore(tt.storedToken)
			refresh := func(ctx context.Context, client *http.Client) (string, error) {
				t.Fatal("refresh must not run")
				return "", nil
			}

			opts := append([]Option{WithTransport(base)}, tt.opts...)
			c := newTestClient(t, store, refresh, opts...)

			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://api.internal/things", nil)
			if err != nil {
				t.Fatalf("building request: %v", err)
			}
			if tt.callerHeader != "" {
				req.Header.Set(headerName, tt.callerHeader)
			}

			resp, err := c.HTTPClient().Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if seen != tt.expectedHeader {
				t.Errorf("header = %q, want %q", seen, tt.expectedHeader)
			}

			// The caller's request object must not be mutated.
			if got := req.Header.Get(headerName); got != tt.callerHeader {
				t.Errorf("caller request header mutated: %q, want %q", got, tt.callerHeader)
			}
		})
	}
}

func TestInjectionDisabled(t *testing.T) {
	var seen string
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req.Header.Get(DefaultHeaderName)
		return response(http.StatusOK), nil
	})

	refresh := func(ctx context.Context, client *http.Client) (string, error) {
		t.Fatal("refresh must not run")
		return "", nil
	}

	c := newTestClient(t, tokenstore.NewMemoryStore("tok-123"), refresh,
		WithTransport(base), WithoutInjection())

	resp, err := c.HTTPClient().Get("http://api.internal/things")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if seen != "" {
		t.Errorf("header = %q, want empty with injection disabled", seen)
	}
}
