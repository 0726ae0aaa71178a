// Package config loads application configuration from command-line flags,
// environment variables, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Storage    StorageConfig
	Server     ServerConfig
	Auth       AuthConfig
	Invitation InvitationConfig
	Tracing    TracingConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	// DataPath is the directory holding the SQLite database and auth key.
	DataPath string `env:"DATA_PATH"`
	// Timeout bounds every storage round trip made by the services.
	Timeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`
}

// DatabasePath returns the SQLite database file path.
func (s StorageConfig) DatabasePath() string {
	return filepath.Join(s.DataPath, "rentwise.db")
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout        time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout       time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout        time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	CORSOrigins        []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	WriteRatePerMinute int           `env:"WRITE_RATE_PER_MINUTE" envDefault:"120"`
}

// AuthConfig holds bearer token configuration.
type AuthConfig struct {
	// TokenKeyHex is the PASETO v4 symmetric key as 64 hex characters.
	// When empty the key is loaded from (or generated into) DataPath.
	TokenKeyHex         string        `env:"AUTH_TOKEN_KEY"`
	AccessTokenDuration time.Duration `env:"ACCESS_TOKEN_DURATION" envDefault:"24h"`
}

// InvitationConfig holds invitation lifecycle configuration.
type InvitationConfig struct {
	TTL               time.Duration `env:"INVITATION_TTL" envDefault:"168h"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"15m"`
	OutboxInterval    time.Duration `env:"OUTBOX_INTERVAL" envDefault:"30s"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	Endpoint string `env:"OTEL_ENDPOINT"`
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// args are the command-line arguments without the program name.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("rentwise", flag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "Path to .env file")
	environment := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the database and auth key")
	port := fs.String("port", "", "Server port (default: 8080)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	environ, err := mergedEnvironment(*envFile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	overrideString(&cfg.App.Environment, *environment)
	overrideString(&cfg.Logger.Level, *logLevel)
	overrideString(&cfg.Storage.DataPath, *dataPath)
	overrideString(&cfg.Server.Port, *port)

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Storage.Timeout <= 0 {
		return errors.New("STORAGE_TIMEOUT must be positive")
	}

	if c.Auth.TokenKeyHex != "" && len(c.Auth.TokenKeyHex) != 64 {
		return fmt.Errorf("AUTH_TOKEN_KEY must be 64 hex characters, got %d", len(c.Auth.TokenKeyHex))
	}

	if c.Invitation.TTL <= 0 {
		return errors.New("INVITATION_TTL must be positive")
	}
	// A zero interval disables the background job; negative is a typo.
	if c.Invitation.ReconcileInterval < 0 || c.Invitation.OutboxInterval < 0 {
		return errors.New("background job intervals cannot be negative")
	}

	return nil
}

// expandDataPath expands ~ and makes the data path absolute,
// defaulting to ~/.rentwise.
func (c *Config) expandDataPath() error {
	path := c.Storage.DataPath
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Storage.DataPath = filepath.Join(homeDir, ".rentwise")
		return nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	c.Storage.DataPath = filepath.Clean(abs)
	return nil
}

// mergedEnvironment layers the process environment over the .env file
// without modifying the process environment.
func mergedEnvironment(envFile string) (map[string]string, error) {
	fileVars, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	merged := make(map[string]string, len(fileVars))
	for k, v := range fileVars {
		merged[k] = v
	}
	for k, v := range env.ToMap(os.Environ()) {
		merged[k] = v
	}
	return merged, nil
}

func overrideString(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}
