// Package config provides Viper-based configuration loading for the portal.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TelnetConfig holds the telnet acceptor settings.
type TelnetConfig struct {
	// Host is the bind address for the telnet listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the telnet listener.
	Port int `mapstructure:"port"`
	// TLSPort is the TLS listener port; 0 disables the TLS listener.
	TLSPort int `mapstructure:"tls_port"`
	// NegotiationTimeout bounds the option negotiation barrier.
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	// KeepAliveInterval is the IAC NOP keep-alive period.
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
	// MaxMessageBuffer caps the per-connection decode buffer, in bytes.
	MaxMessageBuffer int `mapstructure:"max_message_buffer"`
	// MaxAppdataBuffer caps the unterminated input line, in bytes.
	MaxAppdataBuffer int `mapstructure:"max_appdata_buffer"`
}

// Addr returns the "host:port" listen address.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// TLSAddr returns the TLS listen address, or empty when disabled.
func (t TelnetConfig) TLSAddr() string {
	if t.TLSPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", t.Host, t.TLSPort)
}

// BackendConfig holds the game backend HTTP settings.
type BackendConfig struct {
	// URL is the backend base URL, e.g. "http://127.0.0.1:8080".
	URL string `mapstructure:"url"`
	// MaxSessions bounds the HTTP session pool per target.
	MaxSessions int `mapstructure:"max_sessions"`
	// RequestTimeout guards connect, write, and read of each request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// TrustedProxies lists peers whose forwarding headers are honored.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	// JWTSecret is the shared HS256 secret for token verification.
	JWTSecret string `mapstructure:"jwt_secret"`
	// RefreshMargin is how long before expiry tokens are refreshed.
	RefreshMargin time.Duration `mapstructure:"refresh_margin"`
}

// TLSConfig points at the TLS material for the secure listener.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level portal configuration.
type Config struct {
	Telnet  TelnetConfig  `mapstructure:"telnet"`
	Backend BackendConfig `mapstructure:"backend"`
	Auth    AuthConfig    `mapstructure:"auth"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateTelnet(c.Telnet); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBackend(c.Backend); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAuth(c.Auth); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Telnet.TLSPort != 0 && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, "tls.cert_file and tls.key_file are required when telnet.tls_port is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTelnet(t TelnetConfig) error {
	var errs []string
	if t.Port < 1 || t.Port > 65535 {
		errs = append(errs, fmt.Sprintf("telnet.port must be 1-65535, got %d", t.Port))
	}
	if t.TLSPort < 0 || t.TLSPort > 65535 {
		errs = append(errs, fmt.Sprintf("telnet.tls_port must be 0-65535, got %d", t.TLSPort))
	}
	if t.NegotiationTimeout < 0 {
		errs = append(errs, "telnet.negotiation_timeout must not be negative")
	}
	if t.KeepAliveInterval <= 0 {
		errs = append(errs, "telnet.keepalive_interval must be positive")
	}
	if t.MaxMessageBuffer < 1 {
		errs = append(errs, fmt.Sprintf("telnet.max_message_buffer must be >= 1, got %d", t.MaxMessageBuffer))
	}
	if t.MaxAppdataBuffer < 1 {
		errs = append(errs, fmt.Sprintf("telnet.max_appdata_buffer must be >= 1, got %d", t.MaxAppdataBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBackend(b BackendConfig) error {
	var errs []string
	if b.URL == "" {
		errs = append(errs, "backend.url must not be empty")
	}
	if b.MaxSessions < 1 {
		errs = append(errs, fmt.Sprintf("backend.max_sessions must be >= 1, got %d", b.MaxSessions))
	}
	if b.RequestTimeout <= 0 {
		errs = append(errs, "backend.request_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAuth(a AuthConfig) error {
	var errs []string
	if a.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret must not be empty")
	}
	if a.RefreshMargin <= 0 {
		errs = append(errs, "auth.refresh_margin must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with PORTAL_ prefix
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telnet.host", "0.0.0.0")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.tls_port", 0)
	v.SetDefault("telnet.negotiation_timeout", "2s")
	v.SetDefault("telnet.keepalive_interval", "30s")
	v.SetDefault("telnet.max_message_buffer", 2*1024*1024)
	v.SetDefault("telnet.max_appdata_buffer", 64*1024)

	v.SetDefault("backend.url", "http://127.0.0.1:8080")
	v.SetDefault("backend.max_sessions", 8)
	v.SetDefault("backend.request_timeout", "30s")

	v.SetDefault("auth.refresh_margin", "1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
