package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/doj-records/records/internal/platform/db"
	"github.com/doj-records/records/internal/storage/policy"
)

const envDevelopment = "development"

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DataDir string `envconfig:"DATA_DIR" default:"data"`

	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	PGHost           string        `envconfig:"PGHOST"`
	PGPort           string        `envconfig:"PGPORT"`
	PGDatabase       string        `envconfig:"PGDATABASE"`
	PGUser           string        `envconfig:"PGUSER"`
	PGPassword       string        `envconfig:"PGPASSWORD"`
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"5s"`

	MigrationPolicyFile string `envconfig:"MIGRATION_POLICY_FILE"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	LockTTL   time.Duration `envconfig:"LOCK_TTL" default:"10s"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`

	// MigrationSchedule is a cron spec re-running the idempotent legacy
	// migrations from the worker. Empty disables the schedule.
	MigrationSchedule string `envconfig:"MIGRATION_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("app: DATA_DIR must not be empty")
	}
	if cfg.LockTTL <= 0 {
		return nil, fmt.Errorf("app: LOCK_TTL must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// IsDevelopment reports the development override that keeps every
// collection on the file store.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == envDevelopment
}

// PostgresDSN returns DATABASE_URL, else a URL assembled from the five PG*
// parameters when all are set, else "" meaning relational mode is off.
func (c *Config) PostgresDSN() string {
	if c == nil {
		return ""
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	params := db.Params{Host: c.PGHost, Port: c.PGPort, Database: c.PGDatabase, User: c.PGUser, Password: c.PGPassword}
	if !params.Complete() {
		return ""
	}
	return params.DSN()
}

// PolicyConfig returns the migration flags with the deployment gate applied
// and MIGRATION_POLICY_FILE overlaid.
func (c *Config) PolicyConfig() (policy.Config, error) {
	cfg := policy.DefaultConfig()
	cfg.Development = c.IsDevelopment()
	if c == nil || c.MigrationPolicyFile == "" {
		return cfg, nil
	}
	return policy.LoadFile(c.MigrationPolicyFile, cfg)
}
