// Package config loads service settings from environment variables, applies
// defaults and validates everything up front so misconfiguration fails at
// startup rather than on the first reload.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/regionmap/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Source   SourceConfig
	Boundary BoundaryConfig
	Database DatabaseConfig
	Reload   ReloadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// Source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// SourceConfig selects where billing rows come from and how to read them.
type SourceConfig struct {
	// Kind is "file" (CSV or XLSX by extension) or "postgres"
	Kind string `env:"SOURCE_KIND" default:"file"`

	// Path is the billing export, required for the file source
	Path string `env:"SOURCE_PATH" envAlt:"BILLING_FILE"`

	// Sheet selects the worksheet of an XLSX export; empty means the first
	Sheet string `env:"SOURCE_SHEET"`

	RegionColumn   string `env:"SOURCE_REGION_COLUMN" default:"state"`
	CategoryColumn string `env:"SOURCE_CATEGORY_COLUMN" default:"ProductType"`
	MRCColumn      string `env:"SOURCE_MRC_COLUMN" default:"MRC"`
	NRCColumn      string `env:"SOURCE_NRC_COLUMN" default:"NRC"`

	// RegionNormalizer rewrites region values before grouping: none or us-state-name
	RegionNormalizer string `env:"SOURCE_REGION_NORMALIZER" default:"none"`

	// Workers is the number of aggregation goroutines; 1 folds sequentially
	Workers int `env:"SOURCE_WORKERS" default:"4"`

	// WarningLimit caps warnings kept on a snapshot and logged per reload
	WarningLimit int `env:"SOURCE_WARNING_LIMIT" default:"200"`
}

// Columns returns the configured header names.
func (c *SourceConfig) Columns() core.Columns {
	return core.Columns{
		Region:   c.RegionColumn,
		Category: c.CategoryColumn,
		FieldA:   c.MRCColumn,
		FieldB:   c.NRCColumn,
	}
}

// BoundaryConfig locates the GeoJSON region shapes.
type BoundaryConfig struct {
	Path string `env:"BOUNDARY_PATH" required:"true"`

	// RegionPath is the gjson path to each feature's region id
	RegionPath string `env:"BOUNDARY_REGION_PATH" default:"properties.name"`

	// BillingProperty is the feature property that carries billing data.
	// Features that already use it get a numbered variant instead.
	BillingProperty string `env:"BOUNDARY_BILLING_PROPERTY" default:"billing"`
}

// DatabaseConfig holds settings for the postgres source.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required when SOURCE_KIND=postgres
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Query must return region, category, mrc, nrc in that order
	Query string `env:"DATABASE_QUERY"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// ReloadConfig bounds snapshot rebuilds.
type ReloadConfig struct {
	// MaxWait is how long a reload request waits for the running one (default: 5s)
	MaxWait time.Duration `env:"RELOAD_MAX_WAIT" default:"5s"`

	// Timeout bounds one rebuild (default: 2m)
	Timeout time.Duration `env:"RELOAD_TIMEOUT" default:"2m"`

	// Interval re-reads the sources periodically; 0 disables
	Interval time.Duration `env:"RELOAD_INTERVAL" default:"0s"`
}

// RateLimitConfig holds per-client rate limits.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the read limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// ReloadLimit is requests per minute for the reload endpoint (default: 6)
	ReloadLimit int `env:"RATE_LIMIT_RELOAD" default:"6"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// ReloadAPIKeys guard POST /api/reload; empty leaves it open
	ReloadAPIKeys []string `env:"RELOAD_API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
