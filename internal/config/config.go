package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env     string  `mapstructure:"env"` // current application environment (local, dev, production etc)
	Log     Log     `mapstructure:"log"`
	HTTP    HTTP    `mapstructure:"http"`
	Storage Storage `mapstructure:"storage"`
	DB      DB      `mapstructure:"database"`
	Quota   Quota   `mapstructure:"quota"`
	Sweeper Sweeper `mapstructure:"sweeper"`
	Catalog Catalog `mapstructure:"catalog"`
}

// Log overrides logger defaults.
type Log struct {
	Level string `mapstructure:"level"` // debug, info, warn, error; empty keeps the env default
}

// HTTP contains listener settings.
type HTTP struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Storage selects the persistence driver.
type Storage struct {
	Driver string `mapstructure:"driver"` // postgres or memory
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"`                  // database connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`    // maximum number of open connections in the pool
	MinConnections  int           `mapstructure:"min_connections"`    // connections kept open while idle
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`  // maximum lifetime of a single connection
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"` // idle connections older than this are closed
	Migrate         bool          `mapstructure:"migrate"`            // create the schema on startup
}

// Quota contains tier limits.
type Quota struct {
	FreeLimits         FreeLimits    `mapstructure:"free_limits"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	EnterpriseCooldown bool          `mapstructure:"enterprise_cooldown"`
}

// FreeLimits is the number of finished attempts a free learner gets per module.
type FreeLimits struct {
	Listening int `mapstructure:"listening"`
	Reading   int `mapstructure:"reading"`
	Writing   int `mapstructure:"writing"`
}

// Sweeper configures the expired-session cleanup job.
type Sweeper struct {
	Schedule  string `mapstructure:"schedule"`   // cron spec, UTC
	BatchSize int    `mapstructure:"batch_size"` // sessions expired per transaction
}

// Catalog points at a JSON file with tests and learners to load on startup.
type Catalog struct {
	Path string `mapstructure:"path"` // empty disables seeding
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	// A .env file is optional; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("env", "local")
	v.SetDefault("log.level", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.max_conn_idle_time", "5m")
	v.SetDefault("database.migrate", true)
	v.SetDefault("quota.free_limits.listening", 5)
	v.SetDefault("quota.free_limits.reading", 1)
	v.SetDefault("quota.free_limits.writing", 1)
	v.SetDefault("quota.cooldown", "24h")
	v.SetDefault("quota.enterprise_cooldown", true)
	v.SetDefault("sweeper.schedule", "*/5 * * * *")
	v.SetDefault("sweeper.batch_size", 500)
	v.SetDefault("catalog.path", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("http.addr", "HTTP_ADDR")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	switch cfg.Storage.Driver {
	case DriverPostgres:
		cfg.DB.URL = v.GetString("database_url")
		if cfg.DB.URL == "" {
			return nil, ErrMissingEnvironmentVariables
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return &cfg, nil
}
