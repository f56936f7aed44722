package security

import (
	"context"
	"slices"
)

// Authority names shared by all services.
const (
	Admin     = "ROLE_ADMIN"
	User      = "ROLE_USER"
	Anonymous = "ROLE_ANONYMOUS"
)

// SystemAuditor is recorded as the auditor when no user is logged in.
const SystemAuditor = "system"

// Authorities returns the authorities of p. Bearer principals use the ones
// resolved at authentication, else derive them from their claims with
// DefaultRoleClaims; delegated principals carry them from login.
func Authorities(p Principal) []string {
	switch typed := p.(type) {
	case Bearer:
		return bearerAuthorities(typed)
	case *Bearer:
		if typed == nil {
			return nil
		}
		return bearerAuthorities(*typed)
	case Delegated:
		return typed.Authorities
	case *Delegated:
		if typed == nil {
			return nil
		}
		return typed.Authorities
	default:
		return nil
	}
}

// CurrentUserLogin returns the login of p.
//
// Both variants read preferred_username, from the token claims for Bearer and
// from the OIDC user attributes for Delegated. The principal name of a
// Delegated login is an opaque provider id and is never reported as a login.
func CurrentUserLogin(p Principal) (string, bool) {
	switch typed := p.(type) {
	case Bearer:
		return nonEmpty(StringClaim(typed.Claims, PreferredUsernameClaim))
	case *Bearer:
		if typed == nil {
			return "", false
		}
		return nonEmpty(StringClaim(typed.Claims, PreferredUsernameClaim))
	case Delegated:
		return delegatedLogin(typed)
	case *Delegated:
		if typed == nil {
			return "", false
		}
		return delegatedLogin(*typed)
	default:
		return "", false
	}
}

// IsAuthenticated reports whether p is a real, non-anonymous principal.
func IsAuthenticated(p Principal) bool {
	if p == nil {
		return false
	}
	return !slices.Contains(Authorities(p), Anonymous)
}

// HasAnyAuthority reports whether p holds at least one of authorities.
func HasAnyAuthority(p Principal, authorities ...string) bool {
	if p == nil {
		return false
	}
	for _, granted := range Authorities(p) {
		if slices.Contains(authorities, granted) {
			return true
		}
	}
	return false
}

// HasNoneOfAuthorities reports whether p holds none of authorities.
func HasNoneOfAuthorities(p Principal, authorities ...string) bool {
	return !HasAnyAuthority(p, authorities...)
}

// HasAuthority reports whether p holds authority.
func HasAuthority(p Principal, authority string) bool {
	return HasAnyAuthority(p, authority)
}

// CurrentAuditor returns the login of the principal in ctx, or SystemAuditor
// when the request is unauthenticated.
func CurrentAuditor(ctx context.Context) string {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return SystemAuditor
	}
	if login, ok := CurrentUserLogin(p); ok {
		return login
	}
	return SystemAuditor
}

func bearerAuthorities(b Bearer) []string {
	if b.Authorities != nil {
		return b.Authorities
	}
	return ExtractAuthorities(b.Claims)
}

func delegatedLogin(d Delegated) (string, bool) {
	return nonEmpty(StringClaim(d.Attributes, PreferredUsernameClaim))
}

func nonEmpty(value string, ok bool) (string, bool) {
	return value, ok && value != ""
}
