package config

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no explicit path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for the person search index.
// Configuration comes from a YAML file with environment variable overrides.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Migrations controls schema migration behaviour at startup.
	Migrations MigrationsConfig `yaml:"migrations"`

	// Reindex tunes the administrative rebuild of the search index.
	Reindex ReindexConfig `yaml:"reindex"`

	// Retry configures whole-transaction retries for transient database errors.
	Retry RetryConfig `yaml:"retry"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"trs"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"trs"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	// LockTimeoutMs bounds waits on source-row locks; 0 disables the limit.
	LockTimeoutMs int `yaml:"lock_timeout_ms" env:"PGLOCK_TIMEOUT_MS" env-default:"5000"`
}

// MigrationsConfig holds schema migration settings.
type MigrationsConfig struct {
	RunOnStart bool `yaml:"run_on_start" env:"MIGRATIONS_RUN_ON_START" env-default:"false"`
}

// ReindexConfig holds settings for rebuilding the whole index.
type ReindexConfig struct {
	// Concurrency is the number of persons reindexed in parallel, each in its own transaction.
	Concurrency int `yaml:"concurrency" env:"REINDEX_CONCURRENCY" env-default:"4"`
	// BatchSize is the number of person ids fetched per page.
	BatchSize int `yaml:"batch_size" env:"REINDEX_BATCH_SIZE" env-default:"500"`
}

// RetryConfig holds transient-error retry settings.
type RetryConfig struct {
	MaxRetries     int `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"3"`
	InitialDelayMs int `yaml:"initial_delay_ms" env:"RETRY_INITIAL_DELAY_MS" env-default:"100"`
}

// Load reads configuration from the YAML file at path with environment variable overrides.
// An empty path means DefaultPath. The version parameter is injected at build time.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Reindex.Concurrency < 1 {
		return fmt.Errorf("reindex.concurrency must be at least 1, got %d", c.Reindex.Concurrency)
	}
	if c.Reindex.BatchSize < 1 {
		return fmt.Errorf("reindex.batch_size must be at least 1, got %d", c.Reindex.BatchSize)
	}
	if c.Database.LockTimeoutMs < 0 {
		return fmt.Errorf("database.lock_timeout_ms must not be negative, got %d", c.Database.LockTimeoutMs)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	return nil
}

// ConnectionString returns a PostgreSQL keyword/value connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns a postgres:// connection URL for pgxpool.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
