// Package testutil provides test doubles for services that relay OAuth2 tokens:
// an in-memory token endpoint that records refresh grants and canned replies.
package testutil

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RecordedRequest is a token endpoint call captured by MockOAuth2Server.
type RecordedRequest struct {
	Method       string
	Path         string
	ContentType  string
	Accept       string
	Form         url.Values
	BasicUser    string
	BasicPass    string
	HasBasicAuth bool
}

// MockOAuth2Server simulates an OAuth2 token endpoint without real sockets.
// It records requests and serves responses through a custom RoundTripper.
type MockOAuth2Server struct {
	// URL is the base URL of the endpoint; TokenURL is URL + "/token".
	URL      string
	TokenURL string

	handler RoundTripFunc

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewMockOAuth2Server builds a mock OAuth2 endpoint backed by an in-memory RoundTripper.
// If handler is nil, it returns a default successful token response.
func NewMockOAuth2Server(tb testing.TB, handler RoundTripFunc) *MockOAuth2Server {
	tb.Helper()

	if handler == nil {
		handler = StaticJSONResponse(`{
			"access_token": "mock-access-token",
			"token_type": "Bearer",
			"expires_in": 3600
		}`)
	}

	return &MockOAuth2Server{
		URL:      "https://mock-oauth.example.com",
		TokenURL: "https://mock-oauth.example.com/token",
		handler:  handler,
	}
}

// Client returns an HTTP client whose requests are served by the mock.
func (m *MockOAuth2Server) Client() *http.Client {
	return &http.Client{Transport: RoundTripFunc(m.roundTrip)}
}

func (m *MockOAuth2Server) roundTrip(req *http.Request) (*http.Response, error) {
	recorded := RecordedRequest{
		Method:      req.Method,
		Path:        req.URL.Path,
		ContentType: req.Header.Get("Content-Type"),
		Accept:      req.Header.Get("Accept"),
	}
	recorded.BasicUser, recorded.BasicPass, recorded.HasBasicAuth = req.BasicAuth()

	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		recorded.Form, _ = url.ParseQuery(string(body))
		req.Body = io.NopCloser(strings.NewReader(string(body)))
	}

	m.mu.Lock()
	m.requests = append(m.requests, recorded)
	m.mu.Unlock()

	return m.handler(req)
}

// Requests returns a copy of the recorded requests in arrival order.
func (m *MockOAuth2Server) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests served so far.
func (m *MockOAuth2Server) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Close is a no-op to mirror httptest.Server usage in tests.
func (m *MockOAuth2Server) Close() {}

// StaticJSONResponse returns a RoundTripper that always responds with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return StatusJSONResponse(http.StatusOK, body)
}

// StatusJSONResponse returns a RoundTripper that always responds with status and body.
func StatusJSONResponse(status int, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Content-Type", "application/json;charset=UTF-8")
		return &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}
