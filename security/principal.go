package security

// Principal is the authenticated caller of a request.
//
// The set of implementations is closed: Delegated and Bearer are the only
// variants, and callers are expected to switch on them.
type Principal interface {
	// Name returns the principal name used to key stored credentials.
	Name() string

	principal()
}

// Delegated is a principal authenticated through an OAuth2 login with an
// external identity provider. Its access token lives in an authorized-client
// store keyed by (RegistrationID, PrincipalName).
type Delegated struct {
	// RegistrationID identifies the provider registration the login went through.
	RegistrationID string

	// PrincipalName is the user name the identity provider reported.
	PrincipalName string

	// Attributes are the OIDC user attributes (e.g. "preferred_username").
	Attributes map[string]any

	// Authorities are the granted authorities mapped at login time.
	Authorities []string
}

// Name returns the delegated principal's user name.
func (d Delegated) Name() string {
	return d.PrincipalName
}

func (Delegated) principal() {}

// Bearer is a principal authenticated by a verified bearer token carried on the
// inbound request.
type Bearer struct {
	// Token is the raw token value. It is relayed as-is on outbound calls.
	Token string

	// Claims are the verified token claims.
	Claims map[string]any

	// Authorities, when non-nil, were extracted at authentication time with
	// the service's role claim paths and take precedence over Claims.
	Authorities []string
}

// Name returns the token subject, or an empty string when absent.
func (b Bearer) Name() string {
	sub, _ := b.Claims["sub"].(string)
	return sub
}

// String redacts the token so it cannot leak through logs.
func (b Bearer) String() string {
	return "Bearer{subject:" + b.Name() + "}"
}

func (Bearer) principal() {}
