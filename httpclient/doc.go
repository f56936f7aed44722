// Package httpclient offers HTTP client construction helpers that relay the
// caller's OAuth2 credentials, with TLS/mTLS options.
//
// New creates an http.Client from a Config whose requests carry
// the Authorization header produced by a tokenrelay.Supplier for the security
// context of the request's context. RelayTransport can wrap any RoundTripper.
//
// # Features
//
//   - Token relay for delegated (OAuth2 login) and bearer principals
//   - Expired tokens refreshed transparently by the Supplier
//   - TLS 1.2+ by default, with custom CA/mTLS loaded through clienttls
//   - Timeouts and redirect policy taken from the http_client configuration
//
// # Quick Start
//
//	client, err := httpclient.New(httpclient.Config{
//	    Timeout: 60 * time.Second,
//	    TLS:     clienttls.Config{CAFile: "/path/to/ca.crt"},
//	}, supplier)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	req, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, "https://accounts.internal/api/accounts", nil)
//	resp, err := client.Do(req)
//
// Requests must be created with the inbound request's context (or any context
// carrying its security.Context) for credentials to be relayed. Without one the
// request is sent unauthenticated.
package httpclient
