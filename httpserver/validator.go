package httpserver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/dashdevs/sme-finance-core/security"
)

// TokenValidator validates OAuth2/OIDC JWT tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// TokenClaims represents the claims extracted from a validated JWT token.
type TokenClaims struct {
	Subject           string    // Subject (sub) - user identifier
	Issuer            string    // Issuer (iss) - token issuer
	Audience          []string  // Audience (aud) - intended recipients
	Expiry            time.Time // Expiry time (exp)
	IssuedAt          time.Time // Issued at (iat)
	Scopes            []string  // Scopes - extracted from "scope" or "scp" claim
	Email             string    // Email - optional user email
	PreferredUsername string    // preferred_username - optional login

	// Authorities are set when the validator has role claim paths configured.
	// Nil means the principal derives them from Raw with the default claims.
	Authorities []string

	// Raw holds every claim of the token, including the ones above.
	Raw map[string]any

	// Token is the compact serialized JWT the claims were read from.
	Token string
}

// Principal returns the bearer principal for the validated token.
func (c *TokenClaims) Principal() security.Bearer {
	return security.Bearer{
		Token:       c.Token,
		Claims:      maps.Clone(c.Raw),
		Authorities: slices.Clone(c.Authorities),
	}
}

var validMethods = []string{
	jwt.SigningMethodRS256.Name,
	jwt.SigningMethodRS384.Name,
	jwt.SigningMethodRS512.Name,
	jwt.SigningMethodES256.Name,
	jwt.SigningMethodES384.Name,
	jwt.SigningMethodES512.Name,
}

// JWTTokenValidator validates JWT tokens against the key set of an OAuth2/OIDC
// provider. Keys are cached and refreshed in the background; unknown key ids
// trigger a rate limited refresh.
type JWTTokenValidator struct {
	jwks       *keyfunc.JWKS
	issuer     string
	audience   string
	roleClaims []string
	logger     *zap.Logger
}

func newJWTTokenValidator(jwksURL string, cfg ValidatorConfig, refresh time.Duration, client *http.Client, logger *zap.Logger) (*JWTTokenValidator, error) {
	options := keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("JWKS refresh failed", zap.String("jwks_url", jwksURL), zap.Error(err))
		},
		RefreshInterval:   refresh,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		Client:            client,
	}

	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWKS from %s: %w", jwksURL, err)
	}

	return &JWTTokenValidator{
		jwks:       jwks,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		roleClaims: slices.Clone(cfg.RoleClaims),
		logger:     logger,
	}, nil
}

// ValidateToken verifies the signature, expiry, issuer and audience of
// tokenString and extracts its claims.
func (v *JWTTokenValidator) ValidateToken(_ context.Context, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc,
		jwt.WithValidMethods(validMethods),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("httpserver: token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("httpserver: token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("httpserver: failed to extract token claims")
	}

	tokenClaims, err := claimsFromMap(claims)
	if err != nil {
		return nil, err
	}
	tokenClaims.Token = tokenString
	if len(v.roleClaims) > 0 {
		tokenClaims.Authorities = security.ExtractAuthorities(tokenClaims.Raw, v.roleClaims...)
		if tokenClaims.Authorities == nil {
			tokenClaims.Authorities = []string{}
		}
	}

	v.logger.Debug("validated token",
		zap.String("subject", tokenClaims.Subject),
		zap.Strings("scopes", tokenClaims.Scopes),
		zap.Strings("authorities", tokenClaims.Authorities),
	)

	return tokenClaims, nil
}

// Close releases resources used by the validator.
func (v *JWTTokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func claimsFromMap(claims jwt.MapClaims) (*TokenClaims, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("httpserver: invalid subject claim: %w", err)
	}
	if sub == "" {
		return nil, errors.New("httpserver: invalid subject claim: empty")
	}

	iss, err := claims.GetIssuer()
	if err != nil {
		return nil, fmt.Errorf("httpserver: invalid issuer claim: %w", err)
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("httpserver: invalid audience claim: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("httpserver: invalid expiry claim: %w", err)
	}
	if exp == nil {
		return nil, errors.New("httpserver: invalid expiry claim: missing")
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("httpserver: invalid issued at claim: %w", err)
	}
	if iat == nil {
		return nil, errors.New("httpserver: invalid issued at claim: missing")
	}

	email, _ := security.StringClaim(claims, "email")
	username, _ := security.StringClaim(claims, security.PreferredUsernameClaim)

	return &TokenClaims{
		Subject:           sub,
		Issuer:            iss,
		Audience:          []string(aud),
		Expiry:            exp.Time,
		IssuedAt:          iat.Time,
		Scopes:            extractScopes(claims),
		Email:             email,
		PreferredUsername: username,
		Raw:               maps.Clone(map[string]any(claims)),
	}, nil
}

// extractScopes reads "scope", falling back to "scp". Both may be a
// space-separated string or an array.
func extractScopes(claims map[string]any) []string {
	for _, name := range []string{"scope", "scp"} {
		if scopes := security.ClaimValues(claims, name); scopes != nil {
			return scopes
		}
	}
	return nil
}
