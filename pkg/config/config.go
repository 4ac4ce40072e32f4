// Package config loads the buildboard configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":8080"

	// DefaultSQLitePath is the default SQLite database location.
	DefaultSQLitePath = "builds.db"

	// DefaultSubmitRPM is the default per-IP submission rate limit.
	DefaultSubmitRPM = 60

	// envPrefix namespaces environment variable overrides,
	// e.g. BUILDBOARD_SERVER_LISTEN.
	envPrefix = "BUILDBOARD"
)

// Config is the root configuration for buildboard.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	ExternalURL string          `yaml:"external_url,omitempty" mapstructure:"external_url"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting for submissions.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Submit  RateLimitTier `yaml:"submit,omitempty" mapstructure:"submit"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AuthConfig contains authentication settings. Secret is the shared
// HMAC key for build submissions; when empty, submissions are rejected.
// When AnonymousRead is false, read endpoints require ReadToken as a
// bearer token.
type AuthConfig struct {
	Secret        string `yaml:"secret" mapstructure:"secret"`
	AnonymousRead bool   `yaml:"anonymous_read" mapstructure:"anonymous_read"`
	ReadToken     string `yaml:"read_token,omitempty" mapstructure:"read_token"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// Load reads and parses a configuration file from the given path.
// Environment variables prefixed with BUILDBOARD_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Register keys so AutomaticEnv can see overrides for values absent
	// from the file.
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("auth.anonymous_read", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", DefaultSQLitePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Server.RateLimit.Enabled &&
		c.Server.RateLimit.Submit.RequestsPerMinute == 0 {
		c.Server.RateLimit.Submit.RequestsPerMinute = DefaultSubmitRPM
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if !c.Auth.AnonymousRead && c.Auth.ReadToken == "" {
		return fmt.Errorf(
			"auth.read_token is required when anonymous_read is disabled",
		)
	}

	if c.Server.RateLimit.Enabled &&
		c.Server.RateLimit.Submit.RequestsPerMinute <= 0 {
		return fmt.Errorf(
			"server.rate_limit.submit.requests_per_minute must be positive",
		)
	}

	return nil
}

// ExternalURL returns the advertised base URL, falling back to the
// listen address when none is configured.
func (c *Config) ExternalURL() string {
	if c.Server.ExternalURL != "" {
		return c.Server.ExternalURL
	}

	listen := c.Server.Listen
	if strings.HasPrefix(listen, ":") {
		listen = "localhost" + listen
	}

	return "http://" + listen
}
