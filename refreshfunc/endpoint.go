package refreshfunc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/arkadyne/authrelay"
)

// DefaultTokenPath is the JSON path the new token is extracted from when none
// is configured.
const DefaultTokenPath = "access_token"

// maxResponseBytes bounds how much of a token endpoint response is read.
const maxResponseBytes = 1 << 20

// PayloadFunc produces the JSON payload sent to the token endpoint. It is
// called once per refresh attempt, so rotating credentials (a stored refresh
// token, a signed assertion) are picked up fresh each time.
type PayloadFunc func(ctx context.Context) (map[string]any, error)

// StaticPayload returns a PayloadFunc that always sends the same payload.
func StaticPayload(payload map[string]any) PayloadFunc {
	return func(ctx context.Context) (map[string]any, error) {
		return payload, nil
	}
}

// Endpoint returns a RefreshFunc that POSTs a JSON payload to url and
// extracts the new token from the JSON response at tokenPath (gjson syntax,
// e.g. "access_token" or "data.token"). An empty tokenPath uses
// DefaultTokenPath.
//
// A non-2xx response or a missing token field is a refresh failure; the
// response status is included in the error so failure hooks can tell a
// rejected credential from an unavailable endpoint.
func Endpoint(url, tokenPath string, payload PayloadFunc) authrelay.RefreshFunc {
	if tokenPath == "" {
		tokenPath = DefaultTokenPath
	}
	if payload == nil {
		payload = StaticPayload(nil)
	}

	return func(ctx context.Context, client *http.Client) (string, error) {
		p, err := payload(ctx)
		if err != nil {
			return "", fmt.Errorf("building refresh payload: %w", err)
		}

		body, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("marshaling refresh payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("building refresh request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("calling token endpoint: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return "", fmt.Errorf("reading token endpoint response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", fmt.Errorf("token endpoint returned %s", resp.Status)
		}

		token := gjson.GetBytes(data, tokenPath)
		if !token.Exists() || token.String() == "" {
			return "", fmt.Errorf("token endpoint response missing %q", tokenPath)
		}

		return token.String(), nil
	}
}
