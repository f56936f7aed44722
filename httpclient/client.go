package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dashdevs/sme-finance-core/clienttls"
	"github.com/dashdevs/sme-finance-core/tokenrelay"
)

// DefaultTimeout bounds a request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config describes an outbound HTTP client. It mirrors the http_client
// section of the service configuration.
type Config struct {
	// Timeout bounds each request including redirects and body reads.
	Timeout time.Duration `mapstructure:"timeout"`

	// DisableRedirects returns redirect responses to the caller.
	DisableRedirects bool `mapstructure:"disable_redirects"`

	// TLS configures server verification and the client certificate.
	TLS clienttls.Config `mapstructure:"tls"`
}

// Validate reports settings New would reject before loading any file.
func (c Config) Validate() error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, errors.New("httpclient: timeout must not be negative"))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type options struct {
	base http.RoundTripper
}

// Option configures New.
type Option func(*options)

// WithBaseTransport sends requests through transport instead of a clone of
// http.DefaultTransport. A *http.Transport is cloned and receives the
// configured TLS settings; any other RoundTripper is used unchanged.
func WithBaseTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.base = transport
	}
}

// New returns a client configured by cfg. When supplier is non-nil every
// request relays the credentials of the security.Context found in its context.
//
// Example:
//
//	client, err := httpclient.New(cfg.HTTPClient, supplier)
//	req, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, "https://accounts.internal/api/accounts", nil)
//	resp, err := client.Do(req)
func New(cfg Config, supplier *tokenrelay.Supplier, opts ...Option) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{base: http.DefaultTransport}
	for _, opt := range opts {
		opt(o)
	}

	transport := o.base
	if base, ok := transport.(*http.Transport); ok {
		tlsConfig, err := cfg.TLS.Load()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		cloned := base.Clone()
		cloned.TLSClientConfig = tlsConfig
		transport = cloned
	}

	if supplier != nil {
		transport = NewRelayTransport(supplier, transport)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	if cfg.DisableRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// NewHTTPClient is a convenience function that creates a client with the
// default Config relaying the caller's credentials.
//
// Example:
//
//	client := httpclient.NewHTTPClient(supplier)
//	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://accounts.internal/api/accounts", nil)
//	resp, err := client.Do(req)
func NewHTTPClient(supplier *tokenrelay.Supplier) *http.Client {
	return &http.Client{
		Transport: NewRelayTransport(supplier, nil),
		Timeout:   DefaultTimeout,
	}
}
