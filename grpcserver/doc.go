// Package grpcserver authenticates inbound gRPC calls carrying JWT bearer
// tokens and populates the per-call security context.
//
// The interceptors share the validator of the httpserver package, so one
// service exposing both transports validates tokens once per configuration:
//
//	validator, err := httpserver.NewValidator(httpserver.ValidatorConfig{
//	    Issuer:     "https://keycloak.example.com/realms/sme",
//	    Audience:   "sme-finance-core",
//	    RoleClaims: []string{"realm_access.roles"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(
//	        grpcserver.UnaryServerInterceptor(validator,
//	            grpcserver.WithExemptMethods("/grpc.health.v1.Health/Check"),
//	            grpcserver.WithInterceptorLogger(logger),
//	        ),
//	        grpcserver.RequireAnyAuthority(security.User),
//	    ),
//	    grpc.StreamInterceptor(grpcserver.StreamServerInterceptor(validator)),
//	)
//
// Handlers read the caller with security.PrincipalFromContext or the full
// claims with httpserver.TokenClaimsFromContext. Outbound calls made with the
// handler's context through a grpcclient or httpclient relay the caller's
// token.
package grpcserver
