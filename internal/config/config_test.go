package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:        AppConfig{Environment: "development"},
		Logger:     LoggerConfig{Level: "info"},
		Storage:    StorageConfig{DataPath: "/var/lib/rentwise", Timeout: 5 * time.Second},
		Invitation: InvitationConfig{TTL: 168 * time.Hour, ReconcileInterval: 15 * time.Minute},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"empty data path", func(c *Config) { c.Storage.DataPath = "" }},
		{"zero storage timeout", func(c *Config) { c.Storage.Timeout = 0 }},
		{"short token key", func(c *Config) { c.Auth.TokenKeyHex = "abcd" }},
		{"zero invitation ttl", func(c *Config) { c.Invitation.TTL = 0 }},
		{"negative reconcile interval", func(c *Config) { c.Invitation.ReconcileInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_LEVEL=debug\nSERVER_PORT=9000\nINVITATION_TTL=48h\n"), 0o600))

	// Environment beats the .env file, flags beat the environment.
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("DATA_PATH", filepath.Join(dir, "data"))

	cfg, err := LoadConfig([]string{"-env-file", envFile, "-port", "9200"})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "9200", cfg.Server.Port)
	assert.Equal(t, 48*time.Hour, cfg.Invitation.TTL)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Storage.DataPath)
	assert.Equal(t, filepath.Join(dir, "data", "rentwise.db"), cfg.Storage.DatabasePath())

	_, leaked := os.LookupEnv("INVITATION_TTL")
	assert.False(t, leaked, ".env values must not be written to the process environment")
}

func TestLoadConfig_EnvFileDoesNotLeakBetweenLoads(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("INVITATION_TTL=48h\n"), 0o600))

	cfg, err := LoadConfig([]string{"-env-file", envFile})
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.Invitation.TTL)

	cfg, err = LoadConfig([]string{"-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cfg.Invitation.TTL)
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)

	cfg, err := LoadConfig([]string{"-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Invitation.TTL)
	assert.Equal(t, 5*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}
