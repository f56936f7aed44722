// Package httpserver authenticates inbound HTTP requests carrying JWT bearer
// tokens and populates the per-request security context.
//
// # Features
//
//   - JWT validation against a JWKS endpoint with automatic key refresh
//   - Authorities read from configurable, possibly nested, role claims
//   - HTTP middleware installing a security.Bearer principal for each request
//   - RFC 7807 problem responses for 401 and 403
//   - Path exemption (e.g., for health checks, metrics)
//   - Authority checks with RequireAnyAuthority
//
// # Quick Start
//
//	validator, err := httpserver.NewValidator(httpserver.ValidatorConfig{
//	    Issuer:     "https://keycloak.example.com/realms/sme", // OIDC issuer URL
//	    Audience:   "sme-finance-core",                         // Expected audience
//	    RoleClaims: []string{"realm_access.roles"},             // Keycloak realm roles
//	}, httpserver.WithValidatorLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handler := httpserver.Middleware(validator,
//	    httpserver.WithExemptPaths("/health"),
//	    httpserver.WithTranslator(translator),
//	)(mux)
//
// # Relaying the Caller's Token
//
// The middleware stores a security.Bearer principal holding the raw token, so a
// tokenrelay.Supplier (and the httpclient and grpcclient packages built on it)
// forwards the caller's token on outbound calls made with the request context:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    req, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, ledgerURL, nil)
//	    resp, err := relayClient.Do(req) // Authorization: Bearer <inbound token>
//	    ...
//	}
//
// Handlers read the caller with security.PrincipalFromContext, or the parsed
// claims with TokenClaimsFromContext.
package httpserver
