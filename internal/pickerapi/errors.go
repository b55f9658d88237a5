package pickerapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrTransport wraps failures where no HTTP response was received.
var ErrTransport = errors.New("shop api unreachable")

// maxMessageRunes caps messages lifted from opaque response bodies.
const maxMessageRunes = 300

// proxyHint replaces HTML error pages, which mean the request never reached
// the shop API.
const proxyHint = "the API route does not exist or no proxy forwards to the shop server; " +
	"check that API_BASE_URL points at the API server (port 3000) and that the route is exposed"

// APIError is a non-2xx response from the shop API.
type APIError struct {
	Status  int
	URL     string
	Message string
	// Details is the raw response body, for technical detail panels.
	Details string
	// Misconfigured is set when the body was an HTML page.
	Misconfigured bool
}

func (e *APIError) Error() string {
	return e.Message
}

// IsMisconfigured reports whether err is an APIError caused by a proxy or
// base URL problem.
func IsMisconfigured(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Misconfigured
}

func newAPIError(status int, url, contentType string, body []byte) *APIError {
	raw := string(body)
	e := &APIError{Status: status, URL: url, Details: raw}

	if isJSON(contentType) && len(strings.TrimSpace(raw)) > 0 {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(body, &payload); err == nil {
			e.Message = firstMessage(payload, "message", "error", "msg")
		}
	}
	if e.Message != "" {
		return e
	}

	if looksLikeHTML(raw) {
		e.Message = proxyHint
		e.Misconfigured = true
		return e
	}
	if raw == "" {
		raw = fmt.Sprintf("HTTP %d", status)
	}
	e.Message = truncateRunes(raw, maxMessageRunes)
	return e
}

func firstMessage(payload map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func looksLikeHTML(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<!DOCTYPE") || strings.Contains(body, "<html")
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
