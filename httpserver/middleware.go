package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dashdevs/sme-finance-core/logging"
	"github.com/dashdevs/sme-finance-core/problem"
	"github.com/dashdevs/sme-finance-core/security"
)

var (
	// ErrMissingToken is reported when the request carries no bearer token.
	ErrMissingToken = errors.New("httpserver: missing bearer token")

	// ErrForbidden is reported when the principal lacks a required authority.
	ErrForbidden = errors.New("httpserver: insufficient authority")
)

// MiddlewareConfig holds configuration for authentication middleware.
type MiddlewareConfig struct {
	validator           TokenValidator
	exemptPaths         map[string]bool // Exact path matches
	exemptPathPrefixes  []string        // Prefix matches
	logger              *zap.Logger
	tokenExtractor      TokenExtractor
	unauthorizedHandler UnauthorizedHandler
	anonymous           bool
	translator          *problem.Translator
}

// MiddlewareOption is a functional option for configuring middleware.
type MiddlewareOption func(*MiddlewareConfig)

// TokenExtractor is a function that extracts a token from an HTTP request.
// It returns the token string and a boolean indicating whether extraction succeeded.
type TokenExtractor func(r *http.Request) (string, bool)

// UnauthorizedHandler is a function that handles authentication failures.
// It allows custom error responses for unauthenticated requests.
type UnauthorizedHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithExemptPaths specifies HTTP paths that don't require authentication.
// These paths must match exactly.
//
// Example:
//
//	WithExemptPaths("/health", "/metrics", "/favicon.ico")
func WithExemptPaths(paths ...string) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		for _, path := range paths {
			c.exemptPaths[path] = true
		}
	}
}

// WithExemptPathPrefixes specifies HTTP path prefixes that don't require authentication.
//
// Example:
//
//	WithExemptPathPrefixes("/public/", "/.well-known/")
func WithExemptPathPrefixes(prefixes ...string) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.exemptPathPrefixes = append(c.exemptPathPrefixes, prefixes...)
	}
}

// WithMiddlewareLogger sets a logger for the middleware.
func WithMiddlewareLogger(logger *zap.Logger) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.logger = logging.OrNop(logger)
	}
}

// WithTokenExtractor sets a custom token extraction function.
// By default, tokens are extracted from the "Authorization" header as "Bearer <token>".
func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.tokenExtractor = extractor
	}
}

// WithUnauthorizedHandler sets a custom handler for authentication failures.
// By default, a 401 problem is written.
func WithUnauthorizedHandler(handler UnauthorizedHandler) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		if handler != nil {
			c.unauthorizedHandler = handler
		}
	}
}

// WithTranslator sets the translator used by the default unauthorized handler.
func WithTranslator(translator *problem.Translator) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		if translator != nil {
			c.translator = translator
		}
	}
}

// WithAnonymous installs an empty security context on exempt paths, so
// handlers behind them can always call security.FromContext.
func WithAnonymous() MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.anonymous = true
	}
}

// Middleware returns an HTTP middleware that validates OAuth2/OIDC Bearer tokens.
//
// The middleware:
//   - Extracts the Bearer token from the "Authorization" header
//   - Validates the token using the provided TokenValidator
//   - Stores the TokenClaims in the request context (TokenClaimsFromContext)
//   - Installs a security context holding a security.Bearer principal
//   - Responds with a 401 problem if authentication fails
//
// Usage:
//
//	validator, _ := httpserver.NewValidator(httpserver.ValidatorConfig{Issuer: issuerURL, Audience: audience})
//	handler := httpserver.Middleware(validator, httpserver.WithExemptPaths("/health"))(mux)
func Middleware(validator TokenValidator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	config := &MiddlewareConfig{
		validator:   validator,
		exemptPaths: make(map[string]bool),
		logger:      zap.NewNop(),
		translator:  problem.NewTranslator(),
	}

	for _, opt := range opts {
		opt(config)
	}
	if config.unauthorizedHandler == nil {
		config.unauthorizedHandler = func(w http.ResponseWriter, r *http.Request, _ error) {
			config.translator.Write(w, r, problem.New(http.StatusUnauthorized, "Full authentication is required to access this resource"))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, config) {
				if config.anonymous {
					r = r.WithContext(security.WithSecurityContext(r.Context(), security.NewSecurityContext(nil)))
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := extractAndValidateToken(r, config)
			if err != nil {
				config.logger.Debug("authentication failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				config.unauthorizedHandler(w, r, err)
				return
			}

			ctx := WithTokenClaims(r.Context(), claims)
			ctx = security.NewContext(ctx, claims.Principal())
			r = r.WithContext(ctx)

			config.logger.Debug("authenticated request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("subject", claims.Subject),
			)

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyAuthority rejects requests whose principal holds none of
// authorities with a 403 problem. It must run after Middleware.
func RequireAnyAuthority(translator *problem.Translator, authorities ...string) func(http.Handler) http.Handler {
	if translator == nil {
		translator = problem.NewTranslator()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := security.PrincipalFromContext(r.Context())
			if !ok {
				translator.Write(w, r, problem.New(http.StatusUnauthorized, "Full authentication is required to access this resource").WithCause(ErrMissingToken))
				return
			}
			if !security.HasAnyAuthority(p, authorities...) {
				translator.Write(w, r, problem.New(http.StatusForbidden, "Access is denied").WithCause(ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isExempt(path string, config *MiddlewareConfig) bool {
	if config.exemptPaths[path] {
		return true
	}

	for _, prefix := range config.exemptPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// extractAndValidateToken extracts the Bearer token from the request and validates it.
func extractAndValidateToken(r *http.Request, config *MiddlewareConfig) (*TokenClaims, error) {
	var token string
	if config.tokenExtractor != nil {
		var extracted bool
		token, extracted = config.tokenExtractor(r)
		if !extracted {
			return nil, ErrMissingToken
		}
	} else {
		authHeader := r.Header.Get("Authorization")
		scheme, value, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return nil, ErrMissingToken
		}
		token = strings.TrimSpace(value)
		if token == "" {
			return nil, ErrMissingToken
		}
	}

	claims, err := config.validator.ValidateToken(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if claims.Token == "" {
		claims.Token = token
	}

	return claims, nil
}
