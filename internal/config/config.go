package config

import (
	"fmt"
	"os"
	"time"

	"github.com/MinhajJamraiz/natours/internal/email"
	"github.com/MinhajJamraiz/natours/internal/store"
	pkgconfig "github.com/MinhajJamraiz/natours/pkg/config"
	"github.com/MinhajJamraiz/natours/pkg/database"
	"github.com/MinhajJamraiz/natours/pkg/query"
	"github.com/MinhajJamraiz/natours/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the natours server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"natours"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort        int           `env:"PORT" envDefault:"3000"`
	BaseURL         string        `env:"BASE_URL" envDefault:"http://localhost:3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Document store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`

	// PostgreSQL
	PostgresURL      string        `env:"DATABASE_URL"`
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"natours"`
	PostgresPass     string        `env:"POSTGRES_PASSWORD" envDefault:"natours"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"natours"`
	PostgresSSL      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	PostgresMinConns int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	SlowQuery        time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis (optional; enables the distributed rating lock)
	RedisURL     string        `env:"REDIS_URL"`
	RedisLockTTL time.Duration `env:"REDIS_LOCK_TTL" envDefault:"10s"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpiry       time.Duration `env:"JWT_EXPIRES_IN" envDefault:"2160h"`
	JWTCookieExpiry time.Duration `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"2160h"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"12"`
	ResetTokenTTL   time.Duration `env:"PASSWORD_RESET_EXPIRES_IN" envDefault:"10m"`

	// Email
	SMTPHost     string `env:"EMAIL_HOST"`
	SMTPPort     int    `env:"EMAIL_PORT" envDefault:"587"`
	SMTPUsername string `env:"EMAIL_USERNAME"`
	SMTPPassword string `env:"EMAIL_PASSWORD"`
	EmailFrom    string `env:"EMAIL_FROM" envDefault:"hello@natours.io"`

	// Payments
	PaymentProvider string `env:"PAYMENT_PROVIDER" envDefault:"mock"`

	// Rate limiting of /api
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`

	// Browser origins allowed to call /api
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:","`
	CORSMaxAge  time.Duration `env:"CORS_MAX_AGE" envDefault:"1h"`

	// List queries
	QueryDefaultPage  int `env:"QUERY_DEFAULT_PAGE" envDefault:"1"`
	QueryDefaultLimit int `env:"QUERY_DEFAULT_LIMIT" envDefault:"100"`
	QueryMaxLimit     int `env:"QUERY_MAX_LIMIT" envDefault:"1000"`
}

// Load reads configuration from the environment, layered over the file
// named by CONFIG_FILE (default config.env) when it exists.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.env"
	}

	cfg := &Config{}
	if err := pkgconfig.LoadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("load natours config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StoreDriver {
	case store.DriverMemory, store.DriverPostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.OTELSampleRate)
	}
	if c.PaymentProvider != "mock" {
		return fmt.Errorf("unsupported PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	if c.RateLimit <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d per %s", c.RateLimit, c.RateLimitWindow)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool { return c.Environment == "development" }

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool { return c.Environment == "production" }

// Store returns the document store settings.
func (c *Config) Store() store.Config {
	pg := database.DefaultPostgresConfig()
	pg.URL = c.PostgresURL
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.PostgresMaxConns
	pg.MinConns = c.PostgresMinConns
	return store.Config{
		Driver:   c.StoreDriver,
		Postgres: pg,
		Retry:    database.DefaultRetry(),
		Service:  c.ServiceName,
	}
}

// Tracing returns the tracer settings.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:        c.OTELEnabled,
		ServiceName:    c.ServiceName,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		Endpoint:       c.OTELEndpoint,
		Insecure:       c.OTELInsecure,
		SampleRate:     c.OTELSampleRate,
	}
}

// SMTP returns the mail relay settings.
func (c *Config) SMTP() email.SMTPConfig {
	return email.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.EmailFrom,
	}
}

// Query returns the list query defaults.
func (c *Config) Query() query.Config {
	cfg := query.DefaultConfig()
	cfg.DefaultPage = c.QueryDefaultPage
	cfg.DefaultLimit = c.QueryDefaultLimit
	cfg.MaxLimit = c.QueryMaxLimit
	return cfg
}

// Redis returns the Redis settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{URL: c.RedisURL}
}
