package grpcserver

import "github.com/dashdevs/sme-finance-core/httpserver"

// TokenValidator validates bearer tokens. The JWT validator built by
// httpserver.NewValidator serves both transports.
type TokenValidator = httpserver.TokenValidator

// TokenClaims are the claims of a validated token.
type TokenClaims = httpserver.TokenClaims
