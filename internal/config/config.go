// Package config provides configuration management for the monitoring application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Provider ProviderConfig `mapstructure:"provider"`
	Batch    BatchConfig    `mapstructure:"batch"`
	History  HistoryConfig  `mapstructure:"history"`
	Health   HealthConfig   `mapstructure:"health"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ProviderConfig holds listing provider configuration.
type ProviderConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second
	RateBurst    int           `mapstructure:"rate_burst"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// BatchConfig holds batch run configuration.
type BatchConfig struct {
	Interval    time.Duration `mapstructure:"interval"`    // daemon trigger interval
	RunTimeout  time.Duration `mapstructure:"run_timeout"` // deadline for one whole run
	Concurrency int           `mapstructure:"concurrency"` // concurrent users per run
}

// HistoryConfig holds price history retention configuration.
type HistoryConfig struct {
	Retention time.Duration `mapstructure:"retention"` // purge records unseen this long
}

// HealthConfig holds health probe configuration.
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/homewatch"
	}
	return filepath.Join(home, ".config", "homewatch")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		// Config file not found, write a template with the defaults
		if err := writeTemplate(configDir); err != nil {
			return nil, fmt.Errorf("creating config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("database.path", filepath.Join(configDir, "homewatch.db"))
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("provider.rate_limit", 5.0)
	v.SetDefault("provider.rate_burst", 10)
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.retry_backoff", 500*time.Millisecond)
	v.SetDefault("batch.interval", 4*time.Hour)
	v.SetDefault("batch.run_timeout", 15*time.Minute)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("history.retention", 30*24*time.Hour)
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.addr", ":8090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "homewatch.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOMEWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("HOMEWATCH_PROVIDER_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("HOMEWATCH_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("HOMEWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HOMEWATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Concurrency = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	if c.Provider.RateLimit <= 0 {
		return fmt.Errorf("provider.rate_limit must be positive")
	}
	if c.Provider.RateBurst <= 0 {
		return fmt.Errorf("provider.rate_burst must be positive")
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider.max_retries must be non-negative")
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be positive")
	}
	if c.Batch.RunTimeout <= 0 {
		return fmt.Errorf("batch.run_timeout must be positive")
	}
	if c.History.Retention <= 0 {
		return fmt.Errorf("history.retention must be positive")
	}
	return nil
}

const configTemplate = `# homewatch configuration

[database]
# path = "~/.config/homewatch/homewatch.db"

[provider]
# base_url = "https://listings.example.com/api/v1"
# api_key = ""
# timeout = "30s"
# rate_limit = 5.0
# rate_burst = 10
# max_retries = 3
# retry_backoff = "500ms"

[batch]
# interval = "4h"
# run_timeout = "15m"
# concurrency = 4

[history]
# retention = "720h"

[health]
# enabled = false
# addr = ":8090"

[logging]
# level = "info"
# console = true
# file = true
`

func writeTemplate(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}
