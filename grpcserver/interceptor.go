package grpcserver

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dashdevs/sme-finance-core/httpserver"
	"github.com/dashdevs/sme-finance-core/logging"
	"github.com/dashdevs/sme-finance-core/security"
)

var (
	// ErrMissingMetadata is reported when the call carries no incoming metadata.
	ErrMissingMetadata = errors.New("grpcserver: missing metadata")

	// ErrMissingToken is reported when the authorization metadata holds no bearer token.
	ErrMissingToken = errors.New("grpcserver: missing bearer token")
)

// InterceptorConfig holds configuration for authentication interceptors.
type InterceptorConfig struct {
	validator        TokenValidator
	exemptMethods    map[string]bool // Full method names, "/package.Service/Method"
	logger           *zap.Logger
	tokenExtractor   TokenExtractor
	unauthorizedCode codes.Code
}

// InterceptorOption is a functional option for configuring interceptors.
type InterceptorOption func(*InterceptorConfig)

// TokenExtractor is a function that extracts a token from gRPC metadata.
// It returns the token string and a boolean indicating whether extraction succeeded.
type TokenExtractor func(md metadata.MD) (string, bool)

// WithExemptMethods specifies gRPC methods that don't require authentication.
// Method names should be in the format "/package.Service/Method".
//
// Example:
//
//	WithExemptMethods("/grpc.health.v1.Health/Check", "/grpc.health.v1.Health/Watch")
func WithExemptMethods(methods ...string) InterceptorOption {
	return func(c *InterceptorConfig) {
		for _, method := range methods {
			c.exemptMethods[method] = true
		}
	}
}

// WithInterceptorLogger sets a logger for the interceptor.
func WithInterceptorLogger(logger *zap.Logger) InterceptorOption {
	return func(c *InterceptorConfig) {
		c.logger = logging.OrNop(logger)
	}
}

// WithTokenExtractor sets a custom token extraction function.
// By default, tokens are read from the "authorization" metadata as "Bearer <token>".
func WithTokenExtractor(extractor TokenExtractor) InterceptorOption {
	return func(c *InterceptorConfig) {
		c.tokenExtractor = extractor
	}
}

// WithUnauthorizedCode sets the gRPC status code returned on authentication failures.
// Default is codes.Unauthenticated.
func WithUnauthorizedCode(code codes.Code) InterceptorOption {
	return func(c *InterceptorConfig) {
		c.unauthorizedCode = code
	}
}

func newInterceptorConfig(validator TokenValidator, opts []InterceptorOption) *InterceptorConfig {
	config := &InterceptorConfig{
		validator:        validator,
		exemptMethods:    make(map[string]bool),
		logger:           zap.NewNop(),
		unauthorizedCode: codes.Unauthenticated,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// UnaryServerInterceptor returns a gRPC unary server interceptor that validates
// bearer tokens on incoming calls.
//
// The interceptor:
//   - Extracts the Bearer token from the "authorization" metadata
//   - Validates the token using the provided TokenValidator
//   - Stores the TokenClaims in the call context (httpserver.TokenClaimsFromContext)
//   - Installs a security context holding a security.Bearer principal
//   - Returns codes.Unauthenticated if authentication fails
//
// A tokenrelay.Supplier used with the handler's context therefore forwards
// the caller's token on outbound calls.
//
// Usage:
//
//	server := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpcserver.UnaryServerInterceptor(validator)),
//	)
func UnaryServerInterceptor(validator TokenValidator, opts ...InterceptorOption) grpc.UnaryServerInterceptor {
	config := newInterceptorConfig(validator, opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if config.exemptMethods[info.FullMethod] {
			config.logger.Debug("method exempt from authentication", zap.String("method", info.FullMethod))
			return handler(ctx, req)
		}

		ctx, err := authenticate(ctx, info.FullMethod, config)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// validates bearer tokens on incoming streams. Handlers see the claims and
// the security context through the stream's Context.
//
// Usage:
//
//	server := grpc.NewServer(
//	    grpc.StreamInterceptor(grpcserver.StreamServerInterceptor(validator)),
//	)
func StreamServerInterceptor(validator TokenValidator, opts ...InterceptorOption) grpc.StreamServerInterceptor {
	config := newInterceptorConfig(validator, opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if config.exemptMethods[info.FullMethod] {
			config.logger.Debug("stream method exempt from authentication", zap.String("method", info.FullMethod))
			return handler(srv, ss)
		}

		ctx, err := authenticate(ss.Context(), info.FullMethod, config)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// RequireAnyAuthority returns a unary interceptor rejecting calls whose
// principal holds none of authorities with codes.PermissionDenied. It must be
// chained after UnaryServerInterceptor.
func RequireAnyAuthority(authorities ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		p, ok := security.PrincipalFromContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, ErrMissingToken.Error())
		}
		if !security.HasAnyAuthority(p, authorities...) {
			return nil, status.Error(codes.PermissionDenied, "grpcserver: insufficient authority")
		}
		return handler(ctx, req)
	}
}

func authenticate(ctx context.Context, method string, config *InterceptorConfig) (context.Context, error) {
	claims, err := extractAndValidateToken(ctx, config)
	if err != nil {
		config.logger.Debug("authentication failed", zap.String("method", method), zap.Error(err))
		return nil, status.Error(config.unauthorizedCode, err.Error())
	}

	ctx = httpserver.WithTokenClaims(ctx, claims)
	ctx = security.NewContext(ctx, claims.Principal())

	config.logger.Debug("authenticated call",
		zap.String("method", method),
		zap.String("subject", claims.Subject),
	)
	return ctx, nil
}

// extractAndValidateToken extracts the Bearer token from metadata and validates it.
func extractAndValidateToken(ctx context.Context, config *InterceptorConfig) (*TokenClaims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, ErrMissingMetadata
	}

	var token string
	if config.tokenExtractor != nil {
		var extracted bool
		token, extracted = config.tokenExtractor(md)
		if !extracted {
			return nil, ErrMissingToken
		}
	} else {
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, ErrMissingToken
		}
		scheme, value, found := strings.Cut(values[0], " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return nil, ErrMissingToken
		}
		token = strings.TrimSpace(value)
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	return config.validator.ValidateToken(ctx, token)
}

// wrappedServerStream overrides the context of a grpc.ServerStream.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
