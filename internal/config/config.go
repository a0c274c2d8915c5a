package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/biomatch-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithPaths(".", "./config", "/etc/biomatch-server/")
}

// NewManagerWithPaths creates a manager searching the given directories for config.yaml
func NewManagerWithPaths(paths ...string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	for _, p := range paths {
		m.v.AddConfigPath(p)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")

	// Set environment variable prefix and enable automatic env binding
	m.v.SetEnvPrefix("BIOMATCH")
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.max_upload_bytes", 32<<20)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "biomatch")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "1m")

	// Cache defaults
	v.SetDefault("cache.max_items", 10000)
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "biomatch:")
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.max_retries", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Matching defaults
	v.SetDefault("matching.models", defaultModelSettings())
	v.SetDefault("matching.default_count", 5)
	v.SetDefault("matching.default_more_count", 3)
	v.SetDefault("matching.max_count", 50)
	v.SetDefault("matching.synthesize_attributes", false)
	v.SetDefault("matching.seed", 0)
	v.SetDefault("matching.worker_concurrency", 4)

	// Review queue defaults
	v.SetDefault("review.driver", "sqlite")
	v.SetDefault("review.sqlite_path", "./data/reviews.db")
	v.SetDefault("review.migrations_path", "")
	v.SetDefault("review.auto_migrate", true)

	// Notification defaults
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.redis_url", "redis://localhost:6379")
	v.SetDefault("notify.channel", "biomatch.donor_contact")
	v.SetDefault("notify.max_requests", 3)
	v.SetDefault("notify.interval", "60s")
	v.SetDefault("notify.timeout", "30s")
	v.SetDefault("notify.failure_trigger", 5)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
}

func defaultModelSettings() []map[string]interface{} {
	models := domain.DefaultModels()
	out := make([]map[string]interface{}, 0, len(models))
	for _, md := range models {
		out = append(out, map[string]interface{}{
			"name":     md.Name,
			"type":     md.Type,
			"accuracy": md.Accuracy,
		})
	}
	return out
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetMatchingConfig returns matching engine configuration
func (m *Manager) GetMatchingConfig() *domain.MatchingConfig {
	return &m.config.Matching
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	match := config.Matching
	if len(match.Models) == 0 {
		return fmt.Errorf("at least one model descriptor is required")
	}
	for _, md := range match.Models {
		if md.Name == "" {
			return fmt.Errorf("model descriptor name is required")
		}
		if md.Accuracy < 0 || md.Accuracy > 1 {
			return fmt.Errorf("model %s accuracy must be within [0,1]: %v", md.Name, md.Accuracy)
		}
	}
	if match.DefaultCount < 1 || match.DefaultMoreCount < 1 {
		return fmt.Errorf("default match counts must be positive")
	}
	if match.MaxCount < match.DefaultCount || match.MaxCount < match.DefaultMoreCount {
		return fmt.Errorf("max_count %d is below the default counts", match.MaxCount)
	}

	switch config.Review.Driver {
	case "sqlite":
		if config.Review.SQLitePath == "" {
			return fmt.Errorf("review sqlite_path is required")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("unknown review driver: %s", config.Review.Driver)
	}

	switch config.Notify.Driver {
	case "log":
	case "redis":
		if config.Notify.RedisURL == "" {
			return fmt.Errorf("notify redis_url is required")
		}
	default:
		return fmt.Errorf("unknown notify driver: %s", config.Notify.Driver)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit requires positive requests_per_second and burst")
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database connection as a URL, as golang-migrate expects
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Database,
		RawQuery: url.Values{"sslmode": []string{db.SSLMode}}.Encode(),
	}
	return u.String()
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
