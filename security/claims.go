package security

import (
	"reflect"
	"sort"
	"strings"
)

const (
	// ClaimsNamespace prefixes custom claims issued for this platform.
	ClaimsNamespace = "https://www.finance.sme.com/"

	// PreferredUsernameClaim carries the login of the user.
	PreferredUsernameClaim = "preferred_username"

	// RolePrefix marks values that are authorities rather than plain groups.
	RolePrefix = "ROLE_"
)

// DefaultRoleClaims lists the claims that may carry roles, in lookup order.
func DefaultRoleClaims() []string {
	return []string{"groups", "roles", ClaimsNamespace + "roles"}
}

// ExtractAuthorities returns the authorities granted by claims.
//
// Roles are read from the first present claim among paths, which defaults to
// DefaultRoleClaims. A path may be dotted to reach nested claims, e.g.
// "realm_access.roles" for Keycloak realm roles. Values without the ROLE_
// prefix are dropped.
func ExtractAuthorities(claims map[string]any, paths ...string) []string {
	if len(claims) == 0 {
		return nil
	}
	if len(paths) == 0 {
		paths = DefaultRoleClaims()
	}

	for _, path := range paths {
		value, ok := lookupClaim(claims, path)
		if !ok {
			continue
		}
		return filterAuthorities(extractClaimValues(value))
	}

	return nil
}

// ClaimValues resolves a dotted claim path (e.g. "realm_access.roles") and
// returns its values normalized to a de-duplicated string slice. A key that
// itself contains dots is matched before the path is split.
func ClaimValues(claims map[string]any, path string) []string {
	value, ok := lookupClaim(claims, path)
	if !ok {
		return nil
	}
	return normalizeValues(extractClaimValues(value))
}

// StringClaim returns the claim as a string when it is one.
func StringClaim(claims map[string]any, name string) (string, bool) {
	value, ok := claims[name].(string)
	return value, ok
}

func lookupClaim(claims map[string]any, path string) (any, bool) {
	if value, ok := claims[path]; ok {
		return value, true
	}
	return resolveClaimPath(claims, path)
}

func filterAuthorities(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range normalizeValues(values) {
		if strings.HasPrefix(value, RolePrefix) {
			result = append(result, value)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

func resolveClaimPath(claims map[string]any, path string) (any, bool) {
	segments := strings.Split(strings.TrimSpace(path), ".")
	if len(segments) == 0 {
		return nil, false
	}

	var current any = claims
	for _, segment := range segments {
		normalizedSegment := strings.TrimSpace(segment)
		if normalizedSegment == "" {
			return nil, false
		}

		next, ok := mapLookup(current, normalizedSegment)
		if !ok {
			return nil, false
		}
		current = next
	}

	return current, true
}

func mapLookup(value any, key string) (any, bool) {
	if typed, ok := value.(map[string]any); ok {
		found, exists := typed[key]
		return found, exists
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return nil, false
	}

	if rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	mapValue := rv.MapIndex(reflect.ValueOf(key))
	if !mapValue.IsValid() {
		return nil, false
	}

	return mapValue.Interface(), true
}

func extractClaimValues(value any) []string {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(typed)
	case []string:
		result := make([]string, 0, len(typed))
		for _, item := range typed {
			result = append(result, strings.Fields(item)...)
		}
		return result
	case []any:
		result := make([]string, 0, len(typed))
		for _, item := range typed {
			result = append(result, extractClaimValues(item)...)
		}
		return result
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, strings.TrimSpace(key))
		}
		sort.Strings(keys)
		return keys
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		result := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			result = append(result, extractClaimValues(rv.Index(i).Interface())...)
		}
		return result
	default:
		return nil
	}
}
