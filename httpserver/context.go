package httpserver

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// tokenClaimsKey is the context key for storing TokenClaims.
	tokenClaimsKey contextKey = "httpserver.token_claims"
)

// WithTokenClaims returns a new context with the provided TokenClaims.
func WithTokenClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, tokenClaimsKey, claims)
}

// TokenClaimsFromContext extracts TokenClaims from the context.
// Returns the claims and true if found, or nil and false if not present.
//
// Handlers that only need the caller should prefer security.PrincipalFromContext,
// which also covers principals installed by other middleware.
func TokenClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(tokenClaimsKey).(*TokenClaims)
	return claims, ok
}

// MustTokenClaimsFromContext extracts TokenClaims from the context and panics if not found.
// This should only be used in handlers where authentication is guaranteed by the middleware.
func MustTokenClaimsFromContext(ctx context.Context) *TokenClaims {
	claims, ok := TokenClaimsFromContext(ctx)
	if !ok {
		panic("httpserver: token claims not found in context")
	}
	return claims
}
