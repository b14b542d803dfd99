package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
telnet:
  host: 127.0.0.1
  port: 4000
backend:
  url: http://127.0.0.1:8080
auth:
  jwt_secret: test-secret
logging:
  level: debug
  format: console
`

func TestLoad_ValidWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4000", cfg.Telnet.Addr())
	assert.Empty(t, cfg.Telnet.TLSAddr(), "tls disabled by default")
	assert.Equal(t, 2*time.Second, cfg.Telnet.NegotiationTimeout)
	assert.Equal(t, 30*time.Second, cfg.Telnet.KeepAliveInterval)
	assert.Equal(t, 2*1024*1024, cfg.Telnet.MaxMessageBuffer)
	assert.Equal(t, 64*1024, cfg.Telnet.MaxAppdataBuffer)
	assert.Equal(t, 8, cfg.Backend.MaxSessions)
	assert.Equal(t, 30*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.Auth.RefreshMargin)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	cfg := Config{
		Telnet: TelnetConfig{
			Port:              0,
			KeepAliveInterval: 0,
			MaxMessageBuffer:  0,
			MaxAppdataBuffer:  0,
		},
		Backend: BackendConfig{},
		Auth:    AuthConfig{},
		Logging: LoggingConfig{Level: "loud", Format: "xml"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telnet.port")
	assert.Contains(t, err.Error(), "backend.url")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_TLSRequiresMaterial(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("auth.jwt_secret", "s")
	v.Set("telnet.tls_port", 4443)

	_, err := LoadFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls.cert_file")
}

func TestLoadFromViper_Valid(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("auth.jwt_secret", "s")

	cfg, err := LoadFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:4000", cfg.Telnet.Addr())
}

func TestTLSAddr(t *testing.T) {
	cfg := TelnetConfig{Host: "0.0.0.0", Port: 4000, TLSPort: 4443}
	assert.Equal(t, "0.0.0.0:4443", cfg.TLSAddr())
}
