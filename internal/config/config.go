package config

import (
	"time"

	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Config represents the complete application configuration.
// Values come from defaults, the optional config file, FINAGG_-prefixed
// environment variables and the legacy credential variables, in that order
// of increasing precedence.
type Config struct {
	RootPath    string            `mapstructure:"root_path"`
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	HTTPCache   HTTPCacheConfig   `mapstructure:"http_cache"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Workers     int               `mapstructure:"workers"`

	// RateLimits replaces the built-in limits of an API family, keyed by
	// family name (bea, fred, sec, indices, yfinance).
	RateLimits map[string][]ratelimit.Spec `mapstructure:"rate_limits"`

	// RateLimitWarn logs a warning every time a guard throttles.
	RateLimitWarn bool `mapstructure:"rate_limit_warn"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// HTTPCacheConfig controls the response cache placed in front of every
// API getter.
type HTTPCacheConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Driver selects the backend: store (libsql) or redis.
	Driver string `mapstructure:"driver"`

	// Path puts the cache in its own libsql file instead of the main store.
	Path string `mapstructure:"path"`

	// TTL overrides every family's default expiry when positive.
	TTL time.Duration `mapstructure:"ttl"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

// CredentialsConfig holds API keys and user agents.
type CredentialsConfig struct {
	BEAAPIKey        string `mapstructure:"bea_api_key"`
	FREDAPIKey       string `mapstructure:"fred_api_key"`
	SECUserAgent     string `mapstructure:"sec_user_agent"`
	IndicesUserAgent string `mapstructure:"indices_user_agent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}
