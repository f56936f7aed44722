// Package config loads sme-finance service configuration from a YAML file
// and SMEFIN_ prefixed environment variables.
//
// Example file:
//
//	env: prod
//	log:
//	  level: info
//	oauth2:
//	  expiry_leeway: 60s
//	  registrations:
//	    keycloak:
//	      client_id: accounts-service
//	      client_secret: s3cret
//	      token_uri: https://keycloak.example.com/realms/sme/protocol/openid-connect/token
//	      scopes: [openid, profile]
//	store:
//	  driver: redis
//	  redis:
//	    url: redis://localhost:6379/0
//	    ttl: 24h
//	jwt:
//	  issuer: https://keycloak.example.com/realms/sme
//	  audience: sme-finance-core
//	  role_claims: [realm_access.roles]
//	http_client:
//	  timeout: 20s
//	  tls:
//	    ca_file: /etc/sme/ca.crt
//	grpc_clients:
//	  accounts:
//	    address: accounts.internal:9090
//	    tls:
//	      server_name: accounts.internal
//
// Any scalar key can be overridden from the environment by upper-casing it
// and replacing dots with underscores, e.g. SMEFIN_STORE_DRIVER=postgres.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dashdevs/sme-finance-core/grpcclient"
	"github.com/dashdevs/sme-finance-core/httpclient"
	"github.com/dashdevs/sme-finance-core/httpserver"
	"github.com/dashdevs/sme-finance-core/tokenrelay"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "SMEFIN"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the root configuration.
type Config struct {
	Env     string        `mapstructure:"env"`
	Log     LogConfig     `mapstructure:"log"`
	OAuth2  OAuth2Config  `mapstructure:"oauth2"`
	Store   StoreConfig   `mapstructure:"store"`
	Problem ProblemConfig `mapstructure:"problem"`
	JWT     JWTConfig     `mapstructure:"jwt"`

	// HTTPClient configures the relaying HTTP client used for downstream calls.
	HTTPClient httpclient.Config `mapstructure:"http_client"`

	// GRPCClients lists downstream gRPC services by name.
	GRPCClients map[string]grpcclient.Config `mapstructure:"grpc_clients"`
}

// LogConfig configures logging.New.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// OAuth2Config lists provider registrations used for token refresh.
type OAuth2Config struct {
	ExpiryLeeway  time.Duration                 `mapstructure:"expiry_leeway"`
	Registrations map[string]RegistrationConfig `mapstructure:"registrations"`
}

// RegistrationConfig is one OAuth2 client registration.
type RegistrationConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	TokenURI     string   `mapstructure:"token_uri"`
	Scopes       []string `mapstructure:"scopes"`
}

// StoreConfig selects the authorized client store.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig configures clientstore.Redis.
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// PostgresConfig configures clientstore.Postgres.
type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// ProblemConfig configures problem.Translator.
type ProblemConfig struct {
	// Production hides internal error details. It is implied by env "prod".
	Production bool `mapstructure:"production"`
}

// JWTConfig configures inbound bearer token validation. It is optional:
// services that accept no bearer tokens leave issuer and audience empty.
type JWTConfig struct {
	JWKSURL         string        `mapstructure:"jwks_url"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// RoleClaims are dotted claim paths authorities are read from, e.g.
	// realm_access.roles for Keycloak. Empty uses security.DefaultRoleClaims.
	RoleClaims []string `mapstructure:"role_claims"`
}

// Enabled reports whether inbound token validation is configured.
func (j JWTConfig) Enabled() bool {
	return j.Issuer != "" || j.Audience != ""
}

// ValidatorConfig converts the section for httpserver.NewValidator.
func (j JWTConfig) ValidatorConfig() httpserver.ValidatorConfig {
	return httpserver.ValidatorConfig{
		Issuer:          j.Issuer,
		Audience:        j.Audience,
		JWKSURL:         j.JWKSURL,
		RefreshInterval: j.RefreshInterval,
		RoleClaims:      slices.Clone(j.RoleClaims),
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log.level", "")
	v.SetDefault("oauth2.expiry_leeway", tokenrelay.DefaultExpiryLeeway)
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.redis.url", "")
	v.SetDefault("store.redis.key_prefix", "")
	v.SetDefault("store.redis.ttl", time.Duration(0))
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.migrate", false)
	v.SetDefault("problem.production", false)
	v.SetDefault("jwt.jwks_url", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.refresh_interval", httpserver.DefaultJWKSRefreshInterval)
	v.SetDefault("jwt.role_claims", []string{})
	v.SetDefault("http_client.timeout", httpclient.DefaultTimeout)
	v.SetDefault("http_client.disable_redirects", false)
	v.SetDefault("http_client.tls.ca_file", "")
	v.SetDefault("http_client.tls.cert_file", "")
	v.SetDefault("http_client.tls.key_file", "")
	v.SetDefault("http_client.tls.server_name", "")
	v.SetDefault("http_client.tls.insecure_skip_verify", false)
}

// Validate checks the store selection, every registration and the inbound
// and outbound transport sections.
func (c *Config) Validate() error {
	var errs []error

	if c.OAuth2.ExpiryLeeway < 0 {
		errs = append(errs, errors.New("config: oauth2.expiry_leeway must not be negative"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.Redis.URL == "" {
			errs = append(errs, errors.New("config: store.redis.url is required for the redis driver"))
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("config: store.postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store.driver %q", c.Store.Driver))
	}

	if _, err := c.Registrations(); err != nil {
		errs = append(errs, err)
	}

	if c.JWT.Enabled() {
		if err := c.JWT.ValidatorConfig().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: jwt: %w", err))
		}
	}

	if err := c.HTTPClient.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: http_client: %w", err))
	}

	names := make([]string, 0, len(c.GRPCClients))
	for name := range c.GRPCClients {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := c.GRPCClients[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: grpc_clients.%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// Registrations converts the configured registrations, keyed by registration id.
func (c *Config) Registrations() (tokenrelay.StaticRegistrations, error) {
	ids := make([]string, 0, len(c.OAuth2.Registrations))
	for id := range c.OAuth2.Registrations {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	regs := make([]tokenrelay.Registration, 0, len(ids))
	var errs []error
	for _, id := range ids {
		rc := c.OAuth2.Registrations[id]
		reg := tokenrelay.Registration{
			ID:           id,
			ClientID:     rc.ClientID,
			ClientSecret: rc.ClientSecret,
			TokenURI:     rc.TokenURI,
			Scopes:       slices.Clone(rc.Scopes),
		}
		if err := reg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: %w", err))
			continue
		}
		regs = append(regs, reg)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return tokenrelay.NewStaticRegistrations(regs...), nil
}

// Production reports whether the service runs with env "prod".
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "prod")
}
