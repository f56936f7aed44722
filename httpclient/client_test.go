package httpclient

import (
	"crypto/tls"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dashdevs/sme-finance-core/clienttls"
	"github.com/dashdevs/sme-finance-core/internal/testutil"
)

func TestNew_Defaults(t *testing.T) {
	client, err := New(Config{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if client.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, client.Timeout)
	}
	if client.CheckRedirect != nil {
		t.Error("redirects should be followed by default")
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport == http.DefaultTransport {
		t.Error("default transport should be cloned")
	}
	if transport.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestNew_Config(t *testing.T) {
	certs := testutil.WriteTestCertificates(t, t.TempDir())

	client, err := New(Config{
		Timeout:          45 * time.Second,
		DisableRedirects: true,
		TLS: clienttls.Config{
			CAFile:     certs.CAFile,
			CertFile:   certs.CertFile,
			KeyFile:    certs.KeyFile,
			ServerName: "accounts.internal",
		},
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if client.Timeout != 45*time.Second {
		t.Errorf("unexpected timeout %v", client.Timeout)
	}
	if err := client.CheckRedirect(nil, nil); err != http.ErrUseLastResponse {
		t.Errorf("expected ErrUseLastResponse, got %v", err)
	}

	tlsConfig := client.Transport.(*http.Transport).TLSClientConfig
	if tlsConfig.RootCAs == nil || len(tlsConfig.Certificates) != 1 {
		t.Error("expected custom roots and a client certificate")
	}
	if tlsConfig.ServerName != "accounts.internal" {
		t.Errorf("ServerName = %q", tlsConfig.ServerName)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "negative timeout", cfg: Config{Timeout: -time.Second}, wantErr: "timeout must not be negative"},
		{name: "unpaired certificate", cfg: Config{TLS: clienttls.Config{CertFile: "client.crt"}}, wantErr: "both TLS cert and key"},
		{name: "missing CA file", cfg: Config{TLS: clienttls.Config{CAFile: "/nonexistent/ca.crt"}}, wantErr: "TLS config failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNew_WithTokenSupplier(t *testing.T) {
	customTransport := &http.Transport{}

	client, err := New(Config{}, newTestSupplier(t), WithBaseTransport(customTransport))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	relay, ok := client.Transport.(*RelayTransport)
	if !ok {
		t.Fatalf("transport should be RelayTransport, got %T", client.Transport)
	}
	base, ok := relay.Base.(*http.Transport)
	if !ok || base == customTransport {
		t.Errorf("custom *http.Transport should be cloned, got %T", relay.Base)
	}
	if base.TLSClientConfig == nil || base.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Error("cloned transport should carry the TLS settings")
	}
}

func TestNew_RelaysCredentials(t *testing.T) {
	client, err := New(Config{Timeout: 10 * time.Second}, newTestSupplier(t), WithBaseTransport(echoAuthorization()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	req, _ := http.NewRequestWithContext(delegatedContext("alice"), http.MethodGet, "https://accounts.internal/api/accounts", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if got := readBody(t, resp); got != "Bearer alice-token" {
		t.Errorf("Authorization = %q", got)
	}
}

func BenchmarkNew(b *testing.B) {
	supplier := newTestSupplier(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := New(Config{}, supplier); err != nil {
			b.Fatalf("New failed: %v", err)
		}
	}
}
