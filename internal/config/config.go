package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable, e.g. TENANTDIR_DB_HOST.
// Leaf fields carry no envconfig tag so that an unprefixed variable such as
// USER or HOST is never picked up as a fallback.
const EnvPrefix = "TENANTDIR"

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	GRPC          GRPCConfig          `envconfig:"GRPC"`
	Store         StoreConfig         `envconfig:"STORE"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Auth          AuthConfig          `envconfig:"AUTH"`
	Tenancy       TenancyConfig       `envconfig:"TENANCY"`
	Observability ObservabilityConfig `envconfig:"OBS"`
	Security      SecurityConfig      `envconfig:"SECURITY"`
	RateLimit     RateLimitConfig     `envconfig:"RATELIMIT"`
	Bootstrap     BootstrapConfig     `envconfig:"BOOTSTRAP"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `split_words:"true" default:"0.0.0.0"`
	Port            string        `split_words:"true" default:"8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"15s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

// GRPCConfig holds gRPC server configuration
type GRPCConfig struct {
	Enabled bool   `split_words:"true" default:"true"`
	Port    string `split_words:"true" default:"9090"`
}

// StoreConfig selects the persistence driver
type StoreConfig struct {
	Driver string `split_words:"true" default:"postgres"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string `split_words:"true" default:"localhost"`
	Port           string `split_words:"true" default:"5432"`
	User           string `split_words:"true" default:"tenantdir"`
	Password       string `split_words:"true"`
	Name           string `split_words:"true" default:"tenantdir"`
	SSLMode        string `split_words:"true" default:"disable"`
	MaxOpenConns   int    `split_words:"true" default:"25"`
	MaxIdleConns   int    `split_words:"true" default:"5"`
	MigrateOnStart bool   `split_words:"true" default:"false"`
}

// RedisConfig holds the effective-permission cache configuration. An empty
// address disables the cache.
type RedisConfig struct {
	Addr     string        `split_words:"true"`
	Password string        `split_words:"true"`
	DB       int           `split_words:"true" default:"0"`
	TTL      time.Duration `split_words:"true" default:"5m"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	Disabled           bool   `split_words:"true" default:"false"`
	JWTSecret          string `split_words:"true"`
	JWTIssuer          string `split_words:"true"`
	AllowTenantHeader  bool   `split_words:"true" default:"true"`
	EnforcePermissions bool   `split_words:"true" default:"false"`
}

// TenancyConfig holds tenant policy switches
type TenancyConfig struct {
	BlockSuspendedWrites bool `split_words:"true" default:"false"`
}

// ObservabilityConfig holds logging, tracing and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string  `split_words:"true" default:"info"`
	LogFormat      string  `split_words:"true" default:"json"`
	OTELEnabled    bool    `split_words:"true" default:"false"`
	MetricsEnabled bool    `split_words:"true" default:"false"`
	ServiceName    string  `split_words:"true" default:"tenantdir"`
	ServiceVersion string  `split_words:"true" default:"0.1.0"`
	SamplingRate   float64 `split_words:"true" default:"1"`
}

// SecurityConfig holds password hashing parameters
type SecurityConfig struct {
	Argon2Memory      uint32 `split_words:"true" default:"65536"`
	Argon2Iterations  uint32 `split_words:"true" default:"3"`
	Argon2Parallelism uint8  `split_words:"true" default:"4"`
	Argon2SaltLength  uint32 `split_words:"true" default:"16"`
	Argon2KeyLength   uint32 `split_words:"true" default:"32"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `split_words:"true" default:"10"`
	Burst             int     `split_words:"true" default:"20"`
}

// BootstrapConfig describes the first tenant and its administrator, created
// by the bootstrap command when set.
type BootstrapConfig struct {
	TenantName    string `split_words:"true"`
	AdminUsername string `split_words:"true"`
	AdminEmail    string `split_words:"true"`
	AdminPassword string `split_words:"true"`
}

// Enabled reports whether a bootstrap tenant is configured.
func (b BootstrapConfig) Enabled() bool {
	return b.TenantName != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var problems []error

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			problems = append(problems, errors.New("TENANTDIR_DB_PASSWORD is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if !c.Auth.Disabled && len(c.Auth.JWTSecret) < 32 {
		problems = append(problems, errors.New("TENANTDIR_AUTH_JWT_SECRET must be at least 32 bytes"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		problems = append(problems, errors.New("rate limit must be positive"))
	}
	if b := c.Bootstrap; b.Enabled() && (b.AdminUsername == "" || b.AdminEmail == "" || b.AdminPassword == "") {
		problems = append(problems, errors.New("bootstrap tenant requires admin username, email and password"))
	}

	return errors.Join(problems...)
}

// HTTPAddr returns the HTTP listen address.
func (c *Config) HTTPAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// GRPCAddr returns the gRPC listen address.
func (c *Config) GRPCAddr() string {
	return c.Server.Host + ":" + c.GRPC.Port
}
