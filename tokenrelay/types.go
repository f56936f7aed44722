package tokenrelay

import (
	"context"
	"errors"
	"time"

	"github.com/dashdevs/sme-finance-core/security"
)

// DefaultTokenType is used when a stored access token carries no type.
const DefaultTokenType = "Bearer"

// Registration describes an OAuth2 client registered with an identity provider.
type Registration struct {
	// ID is the registration id referenced by delegated principals (e.g. "keycloak").
	ID string

	// ClientID and ClientSecret authenticate this service at the token endpoint.
	ClientID     string
	ClientSecret string

	// TokenURI is the provider's token endpoint.
	TokenURI string

	// Scopes requested at login. Informational for the refresh exchange.
	Scopes []string
}

// Validate reports whether the registration can be used for a refresh exchange.
func (r Registration) Validate() error {
	switch {
	case r.ID == "":
		return errors.New("tokenrelay: registration id is required")
	case r.ClientID == "":
		return errors.New("tokenrelay: registration " + r.ID + ": client id is required")
	case r.TokenURI == "":
		return errors.New("tokenrelay: registration " + r.ID + ": token uri is required")
	}
	return nil
}

// Registrations resolves provider registrations by id.
type Registrations interface {
	Registration(id string) (Registration, bool)
}

// StaticRegistrations is a fixed, map-backed Registrations.
type StaticRegistrations map[string]Registration

// NewStaticRegistrations indexes regs by id.
func NewStaticRegistrations(regs ...Registration) StaticRegistrations {
	m := make(StaticRegistrations, len(regs))
	for _, reg := range regs {
		m[reg.ID] = reg
	}
	return m
}

// Registration returns the registration with the given id.
func (r StaticRegistrations) Registration(id string) (Registration, bool) {
	reg, ok := r[id]
	return reg, ok
}

// AccessToken is a cached OAuth2 access token.
type AccessToken struct {
	Value     string    `json:"value"`
	Type      string    `json:"type"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Scopes    []string  `json:"scopes,omitempty"`
}

// HeaderValue formats the token as an Authorization header value.
func (t AccessToken) HeaderValue() string {
	tokenType := t.Type
	if tokenType == "" {
		tokenType = DefaultTokenType
	}
	return tokenType + " " + t.Value
}

// RefreshToken is an OAuth2 refresh token.
type RefreshToken struct {
	Value string `json:"value"`
}

// AuthorizedClient binds the tokens issued for a principal through a registration.
// It is keyed by (RegistrationID, PrincipalName).
type AuthorizedClient struct {
	RegistrationID string       `json:"registration_id"`
	PrincipalName  string       `json:"principal_name"`
	AccessToken    AccessToken  `json:"access_token"`
	RefreshToken   RefreshToken `json:"refresh_token"`
}

// Clone returns a deep copy of c.
func (c *AuthorizedClient) Clone() *AuthorizedClient {
	if c == nil {
		return nil
	}
	clone := *c
	if c.AccessToken.Scopes != nil {
		clone.AccessToken.Scopes = append([]string(nil), c.AccessToken.Scopes...)
	}
	return &clone
}

// Store persists authorized clients.
//
// Load returns (nil, nil) when no record exists for the key. Save replaces any
// record with the same key. Remove is called by Supplier.Logout and succeeds
// when no record exists.
type Store interface {
	Load(ctx context.Context, registrationID, principalName string) (*AuthorizedClient, error)
	Save(ctx context.Context, client *AuthorizedClient, principal security.Principal) error
	Remove(ctx context.Context, registrationID, principalName string) error
}
