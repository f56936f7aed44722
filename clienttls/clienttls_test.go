package clienttls

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashdevs/sme-finance-core/internal/testutil"
)

func TestConfig_Load(t *testing.T) {
	certs := testutil.WriteTestCertificates(t, t.TempDir())

	badCA := filepath.Join(t.TempDir(), "bad-ca.crt")
	require.NoError(t, os.WriteFile(badCA, []byte("garbage"), 0o600))

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "system roots", cfg: Config{}},
		{name: "server name only", cfg: Config{ServerName: "accounts.internal"}},
		{name: "custom CA", cfg: Config{CAFile: certs.CAFile}},
		{name: "mutual TLS", cfg: Config{CAFile: certs.CAFile, CertFile: certs.CertFile, KeyFile: certs.KeyFile, ServerName: "accounts.internal"}},
		{name: "skip verify", cfg: Config{InsecureSkipVerify: true}},
		{name: "missing CA file", cfg: Config{CAFile: "/nonexistent/ca.crt"}, wantErr: "read CA file"},
		{name: "invalid CA content", cfg: Config{CAFile: badCA}, wantErr: "failed to parse CA certificate"},
		{name: "cert without key", cfg: Config{CertFile: certs.CertFile}, wantErr: "both TLS cert and key"},
		{name: "key without cert", cfg: Config{KeyFile: certs.KeyFile}, wantErr: "both TLS cert and key"},
		{name: "invalid key pair", cfg: Config{CertFile: certs.CertFile, KeyFile: certs.CAFile}, wantErr: "load client certificate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, uint16(tls.VersionTLS12), got.MinVersion)
			assert.Equal(t, tt.cfg.ServerName, got.ServerName)
			assert.Equal(t, tt.cfg.InsecureSkipVerify, got.InsecureSkipVerify)
			assert.Equal(t, tt.cfg.CAFile != "", got.RootCAs != nil)
			assert.Equal(t, tt.cfg.CertFile != "", len(got.Certificates) == 1)
		})
	}
}

func TestConfig_IsZero(t *testing.T) {
	assert.True(t, Config{}.IsZero())
	assert.False(t, Config{ServerName: "accounts.internal"}.IsZero())
}
