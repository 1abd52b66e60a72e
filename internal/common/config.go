// Package common provides shared utilities for Shelfgrade
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Shelfgrade.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Auth        AuthConfig    `toml:"auth"`
	Agent       AgentConfig   `toml:"agent"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations.
type ClientsConfig struct {
	Gemini GeminiConfig `toml:"gemini"`
}

// GeminiConfig holds Gemini vision API configuration.
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the scoring call timeout.
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// AuthConfig holds JWT authentication configuration.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// AgentConfig holds field-agent daemon configuration.
type AgentConfig struct {
	ServerURL     string `toml:"server_url"`
	DeviceID      string `toml:"device_id"`
	QueuePath     string `toml:"queue_path"`
	APIToken      string `toml:"api_token"`
	SyncInterval  string `toml:"sync_interval"`  // duration string, default "5m"
	ProbeInterval string `toml:"probe_interval"` // duration string, default "30s"
}

// GetSyncInterval parses and returns the periodic sync interval.
func (c *AgentConfig) GetSyncInterval() time.Duration {
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetProbeInterval parses and returns the connectivity probe interval.
func (c *AgentConfig) GetProbeInterval() time.Duration {
	d, err := time.ParseDuration(c.ProbeInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000/rpc",
			Namespace: "shelfgrade",
			Database:  "shelfgrade",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{
				Model:     "gemini-2.0-flash",
				RateLimit: 5,
				Timeout:   "60s",
			},
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Agent: AgentConfig{
			ServerURL:     "http://localhost:8080",
			QueuePath:     "data/queue",
			SyncInterval:  "5m",
			ProbeInterval: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SHELFGRADE_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("SHELFGRADE_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SHELFGRADE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("SHELFGRADE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if v := os.Getenv("SHELFGRADE_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("SHELFGRADE_STORAGE_NAMESPACE"); v != "" {
		config.Storage.Namespace = v
	}
	if v := os.Getenv("SHELFGRADE_STORAGE_DATABASE"); v != "" {
		config.Storage.Database = v
	}
	if v := os.Getenv("SHELFGRADE_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("SHELFGRADE_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}
	if v := os.Getenv("SHELFGRADE_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("SHELFGRADE_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
	if v := os.Getenv("SHELFGRADE_AGENT_SERVER_URL"); v != "" {
		config.Agent.ServerURL = v
	}
	if v := os.Getenv("SHELFGRADE_AGENT_DEVICE_ID"); v != "" {
		config.Agent.DeviceID = v
	}
	if v := os.Getenv("SHELFGRADE_AGENT_QUEUE_PATH"); v != "" {
		config.Agent.QueuePath = v
	}
	if v := os.Getenv("SHELFGRADE_AGENT_API_TOKEN"); v != "" {
		config.Agent.APIToken = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	} else if v := os.Getenv("SHELFGRADE_GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
