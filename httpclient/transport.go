package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dashdevs/sme-finance-core/tokenrelay"
)

// RelayTransport is an http.RoundTripper that relays the caller's credentials
// on outgoing HTTP requests.
//
// It wraps an existing transport (typically http.DefaultTransport) and sets the
// Authorization header produced by the Supplier for the security context of the
// request's context. Requests made without an authenticated principal are sent
// untouched.
type RelayTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Supplier produces the Authorization header values.
	Supplier *tokenrelay.Supplier
}

// RoundTrip implements http.RoundTripper interface.
// Supplier failures abort the request with the wrapped *tokenrelay.AuthorizationError.
func (t *RelayTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Supplier == nil {
		return nil, errors.New("httpclient: Supplier is nil")
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	header, ok, err := t.Supplier.AuthorizationHeaderFromContext(req.Context())
	if err != nil {
		closeBody(req)
		return nil, fmt.Errorf("httpclient: failed to get authorization header: %w", err)
	}
	if !ok {
		return base.RoundTrip(req)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", header)

	return base.RoundTrip(reqClone)
}

// A RoundTripper must always close the body, including on errors.
func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

// NewRelayTransport creates a new RelayTransport with the given supplier.
// The base transport defaults to http.DefaultTransport if not specified.
func NewRelayTransport(supplier *tokenrelay.Supplier, base http.RoundTripper) *RelayTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &RelayTransport{
		Base:     base,
		Supplier: supplier,
	}
}
