// Package config loads service configuration from environment variables.
// Every setting has a default except the backend URL, and the whole
// configuration is validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Database DatabaseConfig
	Codec    CodecConfig
	Cache    CacheConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the per-request middleware timeout (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// BackendConfig holds settings for the reporting REST API.
type BackendConfig struct {
	// URL is the API base URL (required)
	URL string `env:"BACKEND_URL" envAlt:"API_URL" required:"true"`

	// Token is sent as a bearer token when set
	Token string `env:"BACKEND_TOKEN"`

	// Timeout bounds each backend request (default: 30s)
	Timeout time.Duration `env:"BACKEND_TIMEOUT" default:"30s"`

	// ValidatorPageSize is the page size used to load validators (default: 100)
	ValidatorPageSize int `env:"VALIDATOR_PAGE_SIZE" default:"100"`

	// ValidatorMaxPages bounds validator paging (default: 200)
	ValidatorMaxPages int `env:"VALIDATOR_MAX_PAGES" default:"200"`
}

// DatabaseConfig holds the optional PostgreSQL source of validators and
// templates. When URL is empty they are read from the backend.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending migrations at startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// Enabled reports whether a database source is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// CodecConfig holds workbook export and import settings.
type CodecConfig struct {
	// MaxRows caps the records accepted from one workbook (default: 5000)
	MaxRows int `env:"CODEC_MAX_ROWS" default:"5000"`

	// MaxConcurrent is the number of workbooks built or parsed at once (default: 4)
	MaxConcurrent int `env:"CODEC_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a codec slot (default: 30s)
	MaxWaitTime time.Duration `env:"CODEC_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a whole export or import including backend calls (default: 2m)
	Timeout time.Duration `env:"CODEC_TIMEOUT" default:"2m"`

	// Author is shown on header notes (default: Plantilla)
	Author string `env:"CODEC_AUTHOR" default:"Plantilla"`
}

// CacheConfig holds in-memory cache settings.
type CacheConfig struct {
	// TemplateSize is the number of templates kept (default: 256)
	TemplateSize int `env:"CACHE_TEMPLATE_SIZE" default:"256"`

	// TemplateTTL is how long a template stays cached (default: 5m)
	TemplateTTL time.Duration `env:"CACHE_TEMPLATE_TTL" default:"5m"`

	// ErrorLogSize is the number of import error logs kept (default: 500)
	ErrorLogSize int `env:"CACHE_ERROR_LOG_SIZE" default:"500"`

	// ErrorLogTTL is how long an import error log can be viewed (default: 1h)
	ErrorLogTTL time.Duration `env:"CACHE_ERROR_LOG_TTL" default:"1h"`
}

// UploadConfig holds workbook upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload and export endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}
