// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrNoNodes is returned when no database node is configured.
var ErrNoNodes = errors.New("config: at least one database node is required")

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Summary  SummaryConfig
	HTTP     HTTPConfig
}

type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// DatabaseConfig describes the replicated cluster. Every node is a
// writable peer; the driver fails over between them in order.
type DatabaseConfig struct {
	Nodes              []string      `envconfig:"DB_NODES"`
	Port               int           `envconfig:"DB_PORT" default:"5432"`
	User               string        `envconfig:"DB_USER" default:"stockwatcher"`
	Password           string        `envconfig:"DB_PASSWORD"`
	Name               string        `envconfig:"DB_NAME" default:"stockwatcher"`
	SSLMode            string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns       int           `envconfig:"DB_MAX_OPEN_CONNS" default:"50"`
	MaxIdleConns       int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime    time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	ConnectTimeout     time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"60s"`
	ShutdownTimeout    time.Duration `envconfig:"DB_SHUTDOWN_TIMEOUT" default:"10s"`
	SlowQueryThreshold time.Duration `envconfig:"DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
	Consistency        string        `envconfig:"DB_CONSISTENCY" default:"ONE"`
	RunMigrations      bool          `envconfig:"RUN_MIGRATIONS" default:"false"`
}

type RedisConfig struct {
	Host     string        `envconfig:"REDIS_HOST"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"5m"`
}

// Enabled reports whether a Redis host was configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type SummaryConfig struct {
	BatchSize    int    `envconfig:"SUMMARY_BATCH_SIZE" default:"250"`
	ScheduleHour int    `envconfig:"SUMMARY_SCHEDULE_HOUR" default:"18"`
	Timezone     string `envconfig:"SUMMARY_TIMEZONE" default:"America/New_York"`
	Scheduled    bool   `envconfig:"SUMMARY_SCHEDULED" default:"true"`
}

// Location resolves the configured time zone.
func (c SummaryConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

type HTTPConfig struct {
	Addr      string `envconfig:"HTTP_ADDR" default:":8080"`
	JWTSecret string `envconfig:"JWT_SECRET"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if len(c.Database.Nodes) == 0 {
		return ErrNoNodes
	}
	if c.Summary.BatchSize <= 0 {
		return fmt.Errorf("config: SUMMARY_BATCH_SIZE must be positive, got %d", c.Summary.BatchSize)
	}
	if c.Summary.ScheduleHour < 0 || c.Summary.ScheduleHour > 23 {
		return fmt.Errorf("config: SUMMARY_SCHEDULE_HOUR must be in 0..23, got %d", c.Summary.ScheduleHour)
	}
	if _, err := c.Summary.Location(); err != nil {
		return fmt.Errorf("config: invalid SUMMARY_TIMEZONE: %w", err)
	}
	return nil
}
