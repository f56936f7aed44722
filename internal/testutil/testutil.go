package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestKeyID is the kid published by the JWKS servers and stamped on signed tokens.
const TestKeyID = "sme-finance-test-key"

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	tb.Cleanup(server.Close)

	return server
}

// CreateJWKSServer serves publicKey as a single-key RS256 JWK set.
func CreateJWKSServer(tb testing.TB, publicKey *rsa.PublicKey) *httptest.Server {
	tb.Helper()

	jwks := map[string]any{
		"keys": []map[string]any{rsaJWK(publicKey)},
	}

	return NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jwks); err != nil {
			tb.Errorf("failed to encode JWKS: %v", err)
		}
	}))
}

// CreateFailingJWKSServer creates a JWKS server that returns errors.
func CreateFailingJWKSServer(tb testing.TB, statusCode int, body string) *httptest.Server {
	tb.Helper()

	return NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body))
	}))
}

func rsaJWK(publicKey *rsa.PublicKey) map[string]any {
	return map[string]any{
		"kty": "RSA",
		"kid": TestKeyID,
		"use": "sig",
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
	}
}

// JWTTestSetup contains a signing key and the JWKS server publishing it.
type JWTTestSetup struct {
	PrivateKey *rsa.PrivateKey
	JWKSServer *httptest.Server
	Issuer     string
	Audience   string
}

// NewJWTTestSetup creates a key pair and a JWKS server for it.
func NewJWTTestSetup(tb testing.TB) *JWTTestSetup {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate RSA key pair: %v", err)
	}

	return &JWTTestSetup{
		PrivateKey: privateKey,
		JWKSServer: CreateJWKSServer(tb, &privateKey.PublicKey),
		Issuer:     "https://keycloak.finance.test/realms/sme",
		Audience:   "sme-finance-core",
	}
}

// JWKSURL returns the URL of the setup's JWK set.
func (s *JWTTestSetup) JWKSURL() string {
	return s.JWKSServer.URL
}

// Claims starts a claims builder bound to the setup's issuer and audience.
func (s *JWTTestSetup) Claims(subject string) *JWTClaims {
	return NewJWTClaims(s.Issuer, s.Audience, subject)
}

// ValidToken signs a token for subject with default claims.
func (s *JWTTestSetup) ValidToken(tb testing.TB, subject string) string {
	tb.Helper()
	return s.Claims(subject).SignToken(tb, s.PrivateKey)
}

// ExpiredToken signs a token for subject that expired an hour ago.
func (s *JWTTestSetup) ExpiredToken(tb testing.TB, subject string) string {
	tb.Helper()
	return s.Claims(subject).
		WithExpiry(time.Now().Add(-time.Hour)).
		SignToken(tb, s.PrivateKey)
}

// JWTClaims provides a builder pattern for creating test JWT claims.
type JWTClaims struct {
	claims jwt.MapClaims
}

// NewJWTClaims creates a new JWTClaims builder with default valid claims.
func NewJWTClaims(issuer, audience, subject string) *JWTClaims {
	return &JWTClaims{
		claims: jwt.MapClaims{
			"iss": issuer,
			"aud": []string{audience},
			"sub": subject,
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Add(-time.Minute).Unix(),
		},
	}
}

// WithExpiry sets a custom expiry time.
func (c *JWTClaims) WithExpiry(exp time.Time) *JWTClaims {
	c.claims["exp"] = exp.Unix()
	return c
}

// WithIssuer overrides the issuer.
func (c *JWTClaims) WithIssuer(issuer string) *JWTClaims {
	c.claims["iss"] = issuer
	return c
}

// WithAudience overrides the audience.
func (c *JWTClaims) WithAudience(audience ...string) *JWTClaims {
	c.claims["aud"] = audience
	return c
}

// WithPreferredUsername sets the preferred_username claim.
func (c *JWTClaims) WithPreferredUsername(username string) *JWTClaims {
	c.claims["preferred_username"] = username
	return c
}

// WithRoles sets the roles claim.
func (c *JWTClaims) WithRoles(roles ...string) *JWTClaims {
	values := make([]any, len(roles))
	for i, r := range roles {
		values[i] = r
	}
	c.claims["roles"] = values
	return c
}

// WithoutClaim removes a specific claim.
func (c *JWTClaims) WithoutClaim(key string) *JWTClaims {
	delete(c.claims, key)
	return c
}

// WithCustomClaim adds a custom claim.
func (c *JWTClaims) WithCustomClaim(key string, value any) *JWTClaims {
	c.claims[key] = value
	return c
}

// SignToken signs the claims with RS256 and returns the compact token.
func (c *JWTClaims) SignToken(tb testing.TB, privateKey *rsa.PrivateKey) string {
	tb.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c.claims)
	token.Header["kid"] = TestKeyID

	tokenString, err := token.SignedString(privateKey)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}

	return tokenString
}
