package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arkadyne/authrelay"
)

// errorBody is the JSON envelope returned when the proxy cannot complete a
// request. Reason tells local callers a failed token refresh apart from an
// unreachable upstream, so they can re-authenticate instead of retrying.
type errorBody struct {
	Error     string `json:"error"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id,omitempty"`
}

const (
	reasonRefreshFailed = "token_refresh_failed"
	reasonUpstream      = "upstream_unreachable"
	reasonInternal      = "internal"
)

// writeProxyError classifies a transport-level failure and answers 502 with
// the error envelope.
func writeProxyError(w http.ResponseWriter, r *http.Request, err error) {
	reason := reasonUpstream
	if errors.Is(err, authrelay.ErrRefreshFailed) {
		reason = reasonRefreshFailed
	}
	slog.ErrorContext(r.Context(), "upstream request failed", "reason", reason, "error", err)
	writeError(w, r, http.StatusBadGateway, "upstream request failed", reason)
}

// writeError writes the JSON error envelope, echoing the request id assigned
// by the middleware.
func writeError(w http.ResponseWriter, r *http.Request, status int, message, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := errorBody{
		Error:     message,
		Reason:    reason,
		RequestID: r.Header.Get(requestIDHeader),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode error response", "error", err)
	}
}
