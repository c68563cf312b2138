// Package config provides Viper-based configuration loading for the presence server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the websocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the websocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the websocket listener.
	Port int `mapstructure:"port"`
	// Path is the HTTP path clients connect to for the websocket upgrade.
	Path string `mapstructure:"path"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AdminConfig holds the HTTP admin surface settings.
type AdminConfig struct {
	// Enabled toggles the admin listener.
	Enabled bool `mapstructure:"enabled"`
	// Host is the bind address for the admin listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the admin listener.
	Port int `mapstructure:"port"`
}

// Addr returns the "host:port" admin listen address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// AuthConfig holds connection-gate credential settings.
type AuthConfig struct {
	// JWTSecret is the HMAC secret handshake tokens are signed with.
	JWTSecret string `mapstructure:"jwt_secret"`
	// Issuer is the expected token issuer. Empty disables issuer checking.
	Issuer string `mapstructure:"issuer"`
	// ResolveTimeout bounds the identity lookup performed at handshake time.
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
}

// PresenceConfig holds per-connection transport tuning.
type PresenceConfig struct {
	// SendBuffer is the per-client outbound message buffer size.
	SendBuffer int `mapstructure:"send_buffer"`
	// WriteTimeout is the deadline applied to each websocket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongTimeout is how long a client may stay silent before it is reaped.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// MaxMessageSize is the largest accepted inbound frame, in bytes.
	MaxMessageSize int64 `mapstructure:"max_message_size"`
}

// PingPeriod returns the interval between keepalive pings.
// It must stay below PongTimeout or healthy peers would be reaped between pings.
func (p PresenceConfig) PingPeriod() time.Duration {
	return p.PongTimeout * 9 / 10
}

// SpacesConfig selects where space definitions are read from.
type SpacesConfig struct {
	// Source is "postgres" or "file".
	Source string `mapstructure:"source"`
	// CatalogPath is the YAML catalog file used when Source is "file".
	CatalogPath string `mapstructure:"catalog_path"`
}

// FanoutConfig holds cross-instance relay settings.
type FanoutConfig struct {
	// Enabled toggles the NATS relay. Disabled means single-instance operation.
	Enabled bool `mapstructure:"enabled"`
	// URL is the NATS server URL.
	URL string `mapstructure:"url"`
	// SubjectPrefix namespaces the relay subjects, e.g. "presence".
	SubjectPrefix string `mapstructure:"subject_prefix"`
	// InstanceID identifies this process in relayed events.
	// Empty means a random ID is generated at startup.
	InstanceID string `mapstructure:"instance_id"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Presence PresenceConfig `mapstructure:"presence"`
	Spaces   SpacesConfig   `mapstructure:"spaces"`
	Fanout   FanoutConfig   `mapstructure:"fanout"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAdmin(c.Admin); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAuth(c.Auth); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validatePresence(c.Presence); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSpaces(c.Spaces); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateFanout(c.Fanout); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if !strings.HasPrefix(s.Path, "/") {
		errs = append(errs, fmt.Sprintf("server.path must start with '/', got %q", s.Path))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("admin.port must be 1-65535, got %d", a.Port)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
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
	if a.ResolveTimeout <= 0 {
		errs = append(errs, "auth.resolve_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePresence(p PresenceConfig) error {
	var errs []string
	if p.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("presence.send_buffer must be >= 1, got %d", p.SendBuffer))
	}
	if p.WriteTimeout <= 0 {
		errs = append(errs, "presence.write_timeout must be positive")
	}
	if p.PongTimeout <= 0 {
		errs = append(errs, "presence.pong_timeout must be positive")
	}
	if p.MaxMessageSize < 1 {
		errs = append(errs, fmt.Sprintf("presence.max_message_size must be >= 1, got %d", p.MaxMessageSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSpaces(s SpacesConfig) error {
	switch s.Source {
	case "postgres":
		return nil
	case "file":
		if s.CatalogPath == "" {
			return errors.New("spaces.catalog_path must not be empty when spaces.source is 'file'")
		}
		return nil
	default:
		return fmt.Errorf("spaces.source must be one of [postgres, file], got %q", s.Source)
	}
}

func validateFanout(f FanoutConfig) error {
	if !f.Enabled {
		return nil
	}
	var errs []string
	if f.URL == "" {
		errs = append(errs, "fanout.url must not be empty when fanout is enabled")
	}
	if f.SubjectPrefix == "" {
		errs = append(errs, "fanout.subject_prefix must not be empty when fanout is enabled")
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

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with PRESENCE_ prefix
	v.SetEnvPrefix("PRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.path", "/ws")

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 3002)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "presence")
	v.SetDefault("database.password", "presence")
	v.SetDefault("database.name", "presence")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.resolve_timeout", "5s")

	v.SetDefault("presence.send_buffer", 64)
	v.SetDefault("presence.write_timeout", "10s")
	v.SetDefault("presence.pong_timeout", "60s")
	v.SetDefault("presence.max_message_size", 4096)

	v.SetDefault("spaces.source", "postgres")

	v.SetDefault("fanout.enabled", false)
	v.SetDefault("fanout.url", "nats://localhost:4222")
	v.SetDefault("fanout.subject_prefix", "presence")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
