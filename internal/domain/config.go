package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Matching    MatchingConfig  `mapstructure:"matching"`
	Review      ReviewConfig    `mapstructure:"review"`
	Notify      NotifyConfig    `mapstructure:"notify"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// CacheConfig controls how long samples and results stay resolvable
type CacheConfig struct {
	MaxItems    int           `mapstructure:"max_items"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	RedisURL    string        `mapstructure:"redis_url"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MatchingConfig configures the matching engine
type MatchingConfig struct {
	Models               []ModelDescriptor `mapstructure:"models"`
	DefaultCount         int               `mapstructure:"default_count"`
	DefaultMoreCount     int               `mapstructure:"default_more_count"`
	MaxCount             int               `mapstructure:"max_count"`
	SynthesizeAttributes bool              `mapstructure:"synthesize_attributes"`
	Seed                 uint64            `mapstructure:"seed"`
	WorkerConcurrency    int               `mapstructure:"worker_concurrency"`
}

// ReviewConfig selects the doctor review store
type ReviewConfig struct {
	Driver         string `mapstructure:"driver"` // "sqlite", "postgres"
	SQLitePath     string `mapstructure:"sqlite_path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// NotifyConfig configures donor contact delivery
type NotifyConfig struct {
	Driver         string        `mapstructure:"driver"` // "log", "redis"
	RedisURL       string        `mapstructure:"redis_url"`
	Channel        string        `mapstructure:"channel"`
	MaxRequests    uint32        `mapstructure:"max_requests"`
	Interval       time.Duration `mapstructure:"interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	FailureTrigger uint32        `mapstructure:"failure_trigger"`
}

// RateLimitConfig configures the per-client token bucket
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}
