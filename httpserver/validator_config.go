package httpserver

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dashdevs/sme-finance-core/logging"
)

// DefaultJWKSRefreshInterval is how often signing keys are re-fetched when
// ValidatorConfig.RefreshInterval is zero.
const DefaultJWKSRefreshInterval = time.Hour

// ValidatorConfig describes the identity provider whose tokens the service
// accepts. It mirrors the jwt section of the service configuration.
type ValidatorConfig struct {
	// Issuer is the expected iss claim, e.g. "https://keycloak.example.com/realms/sme".
	Issuer string

	// Audience is the expected aud claim.
	Audience string

	// JWKSURL overrides the key set location derived from Issuer.
	JWKSURL string

	// RefreshInterval bounds how long fetched keys are trusted.
	RefreshInterval time.Duration

	// RoleClaims are the claim paths authorities are read from, in lookup
	// order. Empty uses security.DefaultRoleClaims.
	RoleClaims []string
}

// Validate reports missing or inconsistent settings.
func (c ValidatorConfig) Validate() error {
	var errs []error
	if c.Issuer == "" {
		errs = append(errs, errors.New("httpserver: issuer is required"))
	}
	if c.Audience == "" {
		errs = append(errs, errors.New("httpserver: audience is required"))
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, errors.New("httpserver: refresh interval must not be negative"))
	}
	for _, path := range c.RoleClaims {
		if strings.TrimSpace(path) == "" {
			errs = append(errs, errors.New("httpserver: role claim paths must not be blank"))
			break
		}
	}
	return errors.Join(errs...)
}

// KeySetURL returns JWKSURL, or the location Issuer publishes its keys at.
// Keycloak realms serve them under /protocol/openid-connect/certs, other
// providers under /.well-known/jwks.json.
func (c ValidatorConfig) KeySetURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return deriveJWKSURL(c.Issuer)
}

type validatorOptions struct {
	client *http.Client
	logger *zap.Logger
}

// ValidatorOption configures NewValidator.
type ValidatorOption func(*validatorOptions)

// WithJWKSClient sets the HTTP client used to fetch signing keys.
func WithJWKSClient(client *http.Client) ValidatorOption {
	return func(o *validatorOptions) {
		if client != nil {
			o.client = client
		}
	}
}

// WithValidatorLogger logs key refresh failures and validated subjects.
func WithValidatorLogger(logger *zap.Logger) ValidatorOption {
	return func(o *validatorOptions) {
		o.logger = logging.OrNop(logger)
	}
}

// NewValidator fetches the signing keys of the configured provider and
// returns a validator for its tokens. Close the validator to stop the
// background key refresh.
//
// Example:
//
//	validator, err := httpserver.NewValidator(httpserver.ValidatorConfig{
//	    Issuer:     "https://keycloak.example.com/realms/sme",
//	    Audience:   "sme-finance-core",
//	    RoleClaims: []string{"realm_access.roles"},
//	}, httpserver.WithValidatorLogger(logger))
func NewValidator(cfg ValidatorConfig, opts ...ValidatorOption) (*JWTTokenValidator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &validatorOptions{
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	refresh := cfg.RefreshInterval
	if refresh == 0 {
		refresh = DefaultJWKSRefreshInterval
	}

	jwksURL := cfg.KeySetURL()
	if cfg.JWKSURL == "" {
		o.logger.Info("using derived JWKS URL", zap.String("jwks_url", jwksURL))
	}

	validator, err := newJWTTokenValidator(jwksURL, cfg, refresh, o.client, o.logger)
	if err != nil {
		return nil, fmt.Errorf("httpserver: failed to build validator: %w", err)
	}
	return validator, nil
}

func deriveJWKSURL(issuer string) string {
	issuer = strings.TrimSuffix(issuer, "/")
	if strings.Contains(issuer, "/realms/") {
		return issuer + "/protocol/openid-connect/certs"
	}
	return issuer + "/.well-known/jwks.json"
}
