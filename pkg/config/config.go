// Package config loads process configuration from YAML files and the
// environment and builds the application logger.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the sync engine configuration shared by the
// sync-server and sync-worker processes.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains Postgres connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// AuthConfig contains operator API authentication settings
type AuthConfig struct {
	// OperatorJWTSecret signs and verifies HS256 bearer tokens for the
	// /ops endpoints. Empty disables those endpoints.
	OperatorJWTSecret string `mapstructure:"operator_jwt_secret"`
	Issuer            string `mapstructure:"issuer"`
}

// SyncConfig contains sync worker settings
type SyncConfig struct {
	// RetrySweepSchedule is a cron expression consumed by the sync-worker
	// process; the sweep itself is also callable via the operator API.
	RetrySweepSchedule string        `mapstructure:"retry_sweep_schedule"`
	RetrySweepLimit    int           `mapstructure:"retry_sweep_limit"`
	OutboundTimeout    time.Duration `mapstructure:"outbound_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "platform_sync")

	// Sync defaults
	viper.SetDefault("sync.retry_sweep_schedule", "*/1 * * * *")
	viper.SetDefault("sync.retry_sweep_limit", 50)
	viper.SetDefault("sync.outbound_timeout", "30s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Sync.RetrySweepLimit <= 0 {
		return fmt.Errorf("sync.retry_sweep_limit must be positive")
	}
	if config.Sync.OutboundTimeout <= 0 {
		return fmt.Errorf("sync.outbound_timeout must be positive")
	}
	return nil
}
