// Package testutil provides JWT fixtures for the module's own tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start an httptest server bound to 127.0.0.1, closed on cleanup
//   - NewJWTTestSetup: RSA key pair plus a JWKS server publishing it
//   - JWTClaims: builder for signed test tokens (roles, preferred_username, expiry)
//   - CreateFailingJWKSServer: JWKS endpoint answering with a fixed error
package testutil
