package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Session    SessionConfig
	Redis      RedisConfig
	Nats       NatsConfig
	Catalog    CatalogConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	TimeoutRequest time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_REQUEST" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host            string        `envconfig:"POSTGRES_HOST" required:"true"`
	Port            string        `envconfig:"POSTGRES_PORT" default:"5432"`
	User            string        `envconfig:"POSTGRES_USER" required:"true"`
	Password        string        `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName          string        `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode         string        `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"30m"`
	RunMigrations   bool          `envconfig:"POSTGRES_RUN_MIGRATIONS" default:"true"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// SessionConfig holds the visitor session settings.
type SessionConfig struct {
	Secret         string        `envconfig:"SESSION_SECRET" required:"true"`
	TTL            time.Duration `envconfig:"SESSION_TTL" default:"336h"`
	UserCookieName string        `envconfig:"SESSION_USER_COOKIE" default:"store_session"`
	CartCookieName string        `envconfig:"SESSION_CART_COOKIE" default:"cart_session"`
	CookieSecure   bool          `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
	Issuer         string        `envconfig:"SESSION_ISSUER" default:"solar-store"`
	BcryptCost     int           `envconfig:"SESSION_BCRYPT_COST" default:"10"`
}

// RedisConfig enables the homepage cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR" default:""`
	Password string        `envconfig:"REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_CACHE_TTL" default:"5m"`
}

// NatsConfig enables order notifications over NATS. An empty URL selects the
// log notifier.
type NatsConfig struct {
	URL     string `envconfig:"NATS_URL" default:""`
	Subject string `envconfig:"NATS_ORDER_SUBJECT" default:"orders.confirmation"`
}

// CatalogConfig holds listing limits.
type CatalogConfig struct {
	PageSize     int `envconfig:"CATALOG_PAGE_SIZE" default:"12"`
	FilterAPICap int `envconfig:"CATALOG_FILTER_API_CAP" default:"50"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.AppEnv {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.AppEnv)
	}
	if len(c.Session.Secret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}
	if c.Catalog.PageSize <= 0 || c.Catalog.FilterAPICap <= 0 {
		return errors.New("catalog page size and filter cap must be positive")
	}
	if c.Postgres.MaxOpenConns > 0 && c.Postgres.MaxIdleConns > c.Postgres.MaxOpenConns {
		return errors.New("POSTGRES_MAX_IDLE_CONNS cannot exceed POSTGRES_MAX_OPEN_CONNS")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
