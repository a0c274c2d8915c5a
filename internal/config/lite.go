// Package config provides configuration management for the matching server.
// This file holds the standalone configuration used by the stdio MCP binary.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/biomatch-server/internal/domain"
)

// LiteConfig is read from BIOMATCH_* environment variables only.
// It needs no database or Redis.
type LiteConfig struct {
	DataDir string

	CacheMaxItems int
	CacheTTL      time.Duration

	MaxCount   int
	Seed       uint64
	Synthesize bool // fill absent attributes with placeholder values

	LogLevel  string
	LogFormat string
}

// DefaultLiteConfig returns the standalone defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:       filepath.Join(homeDir, ".biomatch"),
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		MaxCount:      50,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig overlays environment variables on the defaults.
// Malformed values are ignored.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("BIOMATCH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("BIOMATCH_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("BIOMATCH_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("BIOMATCH_MAX_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxCount = n
		}
	}
	if v := os.Getenv("BIOMATCH_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v := os.Getenv("BIOMATCH_SYNTHESIZE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Synthesize = b
		}
	}

	if v := os.Getenv("BIOMATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("BIOMATCH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	return cfg
}

// MatchingConfig converts the lite settings into engine settings.
func (c *LiteConfig) MatchingConfig() domain.MatchingConfig {
	return domain.MatchingConfig{
		Models:               domain.DefaultModels(),
		DefaultCount:         5,
		DefaultMoreCount:     3,
		MaxCount:             c.MaxCount,
		SynthesizeAttributes: c.Synthesize,
		Seed:                 c.Seed,
		WorkerConcurrency:    4,
	}
}

// Logging returns the logger settings. Output is always stderr since stdout carries the protocol.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

// ReviewDBPath returns the path to the review queue SQLite database.
func (c *LiteConfig) ReviewDBPath() string {
	return filepath.Join(c.DataDir, "reviews.db")
}

// ReportDir returns the directory reports are written to.
func (c *LiteConfig) ReportDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// EnsureDataDir creates the data and report directories.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ReportDir(), 0755)
}
