// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Session  SessionConfig
	Identity IdentityConfig
	Locale   LocaleConfig
	Catalog  CatalogConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 15s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"15s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// SessionConfig holds vehicle session lifecycle settings.
type SessionConfig struct {
	// TTL is how long an idle vehicle session is kept before eviction (default: 30m)
	TTL time.Duration `env:"SESSION_TTL" default:"30m"`

	// MaxVehicles is the maximum number of tracked vehicles; least-recently
	// updated sessions beyond this count are evicted (default: 64)
	MaxVehicles int `env:"MAX_VEHICLES" default:"64"`

	// EvictInterval is how often the background eviction job runs (default: 1m)
	EvictInterval time.Duration `env:"SESSION_EVICT_INTERVAL" default:"1m"`

	// DefaultVehicleKey is used when an upload carries no identity fields.
	// Empty means unset: such uploads are rejected.
	DefaultVehicleKey string `env:"DEFAULT_VEHICLE_KEY"`
}

// IdentityConfig holds vehicle identity resolution settings.
type IdentityConfig struct {
	// MergeMode controls how vehicles from different uploads are merged:
	// "none", "name" (canonical-name map), or "vin" (default: none)
	MergeMode string `env:"MERGE_MODE" default:"none"`

	// NameMap is the canonical-name mapping used when MergeMode is "name".
	// Entries are separated by ';' or newlines, each "alias -> canonical".
	NameMap string `env:"MERGE_NAME_MAP"`

	// RejectPoorNames treats auto-generated placeholder profile names like
	// "Vehicle 123456" as absent during identity resolution (default: true)
	RejectPoorNames bool `env:"REJECT_POOR_NAMES" default:"true"`
}

// LocaleConfig holds display language and unit preference settings.
type LocaleConfig struct {
	// Language is the BCP-47 display language for measurement labels (default: en)
	Language string `env:"LANGUAGE" default:"en"`

	// Units selects the unit system for materialized values:
	// "metric" or "imperial" (default: metric)
	Units string `env:"UNITS" default:"metric"`
}

// CatalogConfig holds parameter-code catalog settings.
type CatalogConfig struct {
	// ExtensionsPath is an optional YAML file with additional vendor code
	// definitions merged into the built-in catalog at startup.
	ExtensionsPath string `env:"CATALOG_EXTENSIONS"`
}

// DatabaseConfig holds settings for the optional Postgres snapshot publisher.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables the Postgres
	// publisher; snapshot deltas are then only logged.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 8)
	MaxConns int `env:"DB_MAX_CONNS" default:"8"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 300).
	// The logging app uploads about once per second per vehicle.
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
