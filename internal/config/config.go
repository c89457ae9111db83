package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Log    LogConfig
	Auth   AuthConfig
	Ledger LedgerConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
type DBConfig struct {
	Host       string `envconfig:"DB_HOST" default:"localhost"`
	Port       int    `envconfig:"DB_PORT" default:"5432"`
	User       string `envconfig:"DB_USER" default:"postgres"`
	Password   string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name       string `envconfig:"DB_NAME" default:"coupon_ledger"`
	SSLMode    string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns   int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns   int    `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxRetries int    `envconfig:"DB_CONNECT_RETRIES" default:"5"`
	Migrate    bool   `envconfig:"DB_MIGRATE" default:"true"`
}

func (c DBConfig) baseURL() *url.URL {
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
}

// DSN returns the pgx pool connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s&pool_max_conns=%d&pool_min_conns=%d", c.baseURL(), c.MaxConns, c.MinConns)
}

// MigrateURL returns the connection string for schema migrations. It carries no
// pool parameters, which the migration driver would reject.
func (c DBConfig) MigrateURL() string {
	return c.baseURL().String()
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// AuthConfig holds caller identity configuration.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
	JWTIssuer string `envconfig:"AUTH_JWT_ISSUER"`
}

// LedgerConfig holds redemption transaction settings.
type LedgerConfig struct {
	MaxRetries     int    `envconfig:"LEDGER_MAX_RETRIES" default:"5"`
	Isolation      string `envconfig:"LEDGER_ISOLATION" default:"serializable"`
	ReferrerBonus  int64  `envconfig:"REFERRER_BONUS" default:"100"`
	TimeoutSeconds int    `envconfig:"REDEEM_TIMEOUT_SECONDS" default:"10"`
}

// Timeout returns the per-redemption deadline.
func (c LedgerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Auth.JWTSecret == "":
		return errors.New("AUTH_JWT_SECRET is required")
	case c.Ledger.MaxRetries < 0:
		return fmt.Errorf("LEDGER_MAX_RETRIES must not be negative, got %d", c.Ledger.MaxRetries)
	case c.Ledger.ReferrerBonus <= 0:
		return fmt.Errorf("REFERRER_BONUS must be positive, got %d", c.Ledger.ReferrerBonus)
	case c.Ledger.TimeoutSeconds < 0:
		return fmt.Errorf("REDEEM_TIMEOUT_SECONDS must not be negative, got %d", c.Ledger.TimeoutSeconds)
	}
	return nil
}
