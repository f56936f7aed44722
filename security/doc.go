// Package security models the authenticated caller of an inbound request and
// provides helpers for reading logins and authorities from it.
//
// A request carries at most one Principal, held by a Context that middleware
// installs into the request's context.Context. The Principal is one of two
// variants:
//
//   - Delegated: an OAuth2 login linked to a provider registration and user name.
//     Outbound calls relay the access token stored for that pair.
//   - Bearer: a verified token carried by the inbound request itself.
//
// # Quick Start
//
//	ctx = security.NewContext(ctx, security.Bearer{Token: raw, Claims: claims})
//
//	sc, _ := security.FromContext(ctx)
//	p, ok := sc.Principal()
//	if ok && security.HasAuthority(p, security.Admin) {
//	    // ...
//	}
//
// Authority extraction from claims is a pure function (ExtractAuthorities), so it
// can be used without a Context.
package security
