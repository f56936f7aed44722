// Package tokenrelay supplies the Authorization header for outbound calls made on
// behalf of the principal of an inbound request.
//
// A Supplier looks at the request's security.Context. Bearer principals have
// their own token relayed unchanged. Delegated principals (users who logged in
// through an external identity provider) have their stored access token relayed,
// and an expired token is first renewed with the refresh_token grant and written
// back to the Store.
//
// # Features
//
//   - Expiry check with a one minute leeway (WithExpiryLeeway)
//   - Refresh exchange with form-encoded grant and HTTP Basic client authentication
//   - Concurrent refreshes for the same user collapsed into a single token endpoint call
//   - Failed refreshes clear the request's authentication and return an AuthorizationError
//   - gRPC unary and stream client interceptors
//   - Optional zap logging and Prometheus counters (WithLogger, WithMetrics)
//
// # Quick Start
//
//	registrations := tokenrelay.NewStaticRegistrations(tokenrelay.Registration{
//	    ID:           "keycloak",
//	    ClientID:     "sme-finance",
//	    ClientSecret: secret,
//	    TokenURI:     "https://idp.example.com/realms/sme/protocol/openid-connect/token",
//	})
//
//	supplier, err := tokenrelay.NewSupplier(clientstore.NewMemory(), registrations,
//	    tokenrelay.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	header, ok, err := supplier.AuthorizationHeaderFromContext(ctx)
//
// # Errors
//
// Every failure is an *AuthorizationError with code "access_denied" and matches
// ErrAccessDenied under errors.Is. The wrapped cause (ErrClientNotFound,
// ErrNoAccessToken, *oauth2.RetrieveError, ...) is for diagnostics only.
package tokenrelay
