package httpserver

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	itestutil "github.com/dashdevs/sme-finance-core/internal/testutil"
	"github.com/dashdevs/sme-finance-core/testutil"
)

const (
	testIssuer   = "https://keycloak.finance.test/realms/sme"
	testAudience = "sme-finance-core"
)

func jwksClient(body string) *http.Client {
	return &http.Client{Transport: testutil.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})}
}

func TestValidatorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ValidatorConfig
		wantErr []string
	}{
		{name: "valid", cfg: ValidatorConfig{Issuer: testIssuer, Audience: testAudience, RoleClaims: []string{"realm_access.roles"}}},
		{name: "missing issuer", cfg: ValidatorConfig{Audience: testAudience}, wantErr: []string{"issuer is required"}},
		{name: "missing everything", cfg: ValidatorConfig{}, wantErr: []string{"issuer is required", "audience is required"}},
		{name: "negative refresh", cfg: ValidatorConfig{Issuer: testIssuer, Audience: testAudience, RefreshInterval: -time.Second}, wantErr: []string{"must not be negative"}},
		{name: "blank role claim", cfg: ValidatorConfig{Issuer: testIssuer, Audience: testAudience, RoleClaims: []string{"roles", " "}}, wantErr: []string{"role claim paths"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestValidatorConfig_KeySetURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  ValidatorConfig
		want string
	}{
		{name: "keycloak realm", cfg: ValidatorConfig{Issuer: testIssuer}, want: testIssuer + "/protocol/openid-connect/certs"},
		{name: "trailing slash", cfg: ValidatorConfig{Issuer: testIssuer + "/"}, want: testIssuer + "/protocol/openid-connect/certs"},
		{name: "generic issuer", cfg: ValidatorConfig{Issuer: "https://auth.finance.test/"}, want: "https://auth.finance.test/.well-known/jwks.json"},
		{name: "explicit url", cfg: ValidatorConfig{Issuer: testIssuer, JWKSURL: "https://keys.finance.test/jwks"}, want: "https://keys.finance.test/jwks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.KeySetURL(); got != tt.want {
				t.Errorf("KeySetURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewValidator_InvalidConfig(t *testing.T) {
	_, err := NewValidator(ValidatorConfig{Issuer: testIssuer})
	if err == nil || !strings.Contains(err.Error(), "audience is required") {
		t.Fatalf("expected audience error, got %v", err)
	}
}

func TestNewValidator_InvalidKeySet(t *testing.T) {
	_, err := NewValidator(ValidatorConfig{Issuer: testIssuer, Audience: testAudience}, WithJWKSClient(jwksClient("not json")))
	if err == nil {
		t.Fatal("expected error for malformed key set")
	}
	if !strings.Contains(err.Error(), "failed to build validator") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewValidator_LogsDerivedURL(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	v, err := NewValidator(ValidatorConfig{Issuer: testIssuer, Audience: testAudience},
		WithJWKSClient(jwksClient(`{"keys":[]}`)),
		WithValidatorLogger(zap.New(core)),
	)
	if err == nil {
		v.Close()
	} else if !strings.Contains(err.Error(), "failed to build validator") {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.FilterMessage("using derived JWKS URL").All()
	if len(entries) != 1 {
		t.Fatalf("expected one derived URL log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["jwks_url"]; got != testIssuer+"/protocol/openid-connect/certs" {
		t.Errorf("jwks_url = %v", got)
	}
}

func TestNewValidator_ExplicitURLNotLogged(t *testing.T) {
	setup := itestutil.NewJWTTestSetup(t)
	core, logs := observer.New(zap.InfoLevel)

	v, err := NewValidator(ValidatorConfig{Issuer: setup.Issuer, Audience: setup.Audience, JWKSURL: setup.JWKSURL()},
		WithJWKSClient(setup.JWKSServer.Client()),
		WithValidatorLogger(zap.New(core)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer v.Close()

	if logs.FilterMessage("using derived JWKS URL").Len() != 0 {
		t.Error("explicit JWKS URL should not be reported as derived")
	}
}

func TestWithJWKSClient_IgnoresNil(t *testing.T) {
	o := &validatorOptions{client: http.DefaultClient}
	WithJWKSClient(nil)(o)
	if o.client != http.DefaultClient {
		t.Error("nil client replaced the default")
	}
}
