package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arkadyne/authrelay"
	"github.com/arkadyne/authrelay/tokenstore"
)

func TestSingleJoiningSlash(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"", "/v1/users", "/v1/users"},
		{"/v1", "", "/v1"},
		{"/v1", "/users", "/v1/users"},
		{"/v1/", "/users", "/v1/users"},
		{"/v1", "users", "/v1/users"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := singleJoiningSlash(tt.a, tt.b); got != tt.want {
			t.Errorf("singleJoiningSlash(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNewRejectsRelativeUpstream(t *testing.T) {
	if _, err := New(http.DefaultTransport, WithBaseURL("/just/a/path")); err == nil {
		t.Error("relative upstream URL should be rejected")
	}
}

func TestProxyForwardsWithInjectedToken(t *testing.T) {
	var gotAuth, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	store := tokenstore.NewMemoryStore("T1")
	client, err := authrelay.New(store, func(ctx context.Context, hc *http.Client) (string, error) {
		t.Error("refresh should not run for a 200 response")
		return "", nil
	})
	if err != nil {
		t.Fatalf("New client: %v", err)
	}

	p, err := New(client.Transport(), WithBaseURL(upstream.URL+"/v1"))
	if err != nil {
		t.Fatalf("New proxy: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	// Caller-supplied credentials must not leak upstream.
	req.Header.Set("Authorization", "Bearer caller-secret")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotAuth != "Bearer T1" {
		t.Errorf("upstream Authorization = %q, want %q", gotAuth, "Bearer T1")
	}
	if gotPath != "/v1/users" {
		t.Errorf("upstream path = %q, want /v1/users", gotPath)
	}
}

func TestProxyRefreshesOnRejection(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer T2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	store := tokenstore.NewMemoryStore("T1")
	client, err := authrelay.New(store, func(ctx context.Context, hc *http.Client) (string, error) {
		return "T2", nil
	})
	if err != nil {
		t.Fatalf("New client: %v", err)
	}

	p, err := New(client.Transport(), WithBaseURL(upstream.URL))
	if err != nil {
		t.Fatalf("New proxy: %v", err)
	}

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after refresh", rec.Code)
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2 (rejected then retried)", calls)
	}
	token, err := store.Read(context.Background())
	if err != nil || token != "T2" {
		t.Errorf("stored token = %q, %v; want T2 persisted", token, err)
	}
}

func TestProxyReportsUpstreamFailure(t *testing.T) {
	store := tokenstore.NewMemoryStore("T1")
	client, err := authrelay.New(store, func(ctx context.Context, hc *http.Client) (string, error) {
		return "T1", nil
	})
	if err != nil {
		t.Fatalf("New client: %v", err)
	}

	// Nothing listens on this address.
	p, err := New(client.Transport(), WithBaseURL("http://127.0.0.1:0"))
	if err != nil {
		t.Fatalf("New proxy: %v", err)
	}

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Reason != reasonUpstream {
		t.Errorf("reason = %q, want %q", body.Reason, reasonUpstream)
	}
	if body.RequestID == "" {
		t.Error("error body must carry the request id")
	}
}

func TestProxyReportsRefreshFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	store := tokenstore.NewMemoryStore("T1")
	client, err := authrelay.New(store, func(ctx context.Context, hc *http.Client) (string, error) {
		return "", errors.New("grant rejected")
	})
	if err != nil {
		t.Fatalf("New client: %v", err)
	}

	p, err := New(client.Transport(), WithBaseURL(upstream.URL))
	if err != nil {
		t.Fatalf("New proxy: %v", err)
	}

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Reason != reasonRefreshFailed {
		t.Errorf("reason = %q, want %q", body.Reason, reasonRefreshFailed)
	}
}
