package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, 8390, cfg.Server.Port)
	assert.Equal(t, 7, cfg.License.GracePeriodDays)
	assert.Equal(t, 6, cfg.Auth.MinPasswordLength)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, filepath.IsAbs(cfg.Paths.DatabaseFile))
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
  read_timeout: 30s
license:
  revocation_url: "https://licensing.example.com/revoked.json"
  grace_period_days: 14
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := LoadFromFile(configFile)
	require.NoError(t, err)

	// File values survive the env overlay and the default fill.
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "https://licensing.example.com/revoked.json", cfg.License.RevocationURL)
	assert.Equal(t, 14, cfg.License.GracePeriodDays)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Fields the file leaves out still get defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 5*time.Second, cfg.License.RevocationTimeout)
	assert.Equal(t, 6, cfg.Auth.MinPasswordLength)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server:\n  port: 9000\n"), 0644))

	t.Setenv("VYAPAR_SERVER_PORT", "9100")

	cfg, err := LoadFromFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid port", func(c *Config) { c.Server.Port = -1 }},
		{"negative grace period", func(c *Config) { c.License.GracePeriodDays = -1 }},
		{"short password minimum", func(c *Config) { c.Auth.MinPasswordLength = 4 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromFile("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.ExportDir = filepath.Join(dir, "data", "exports")
	cfg.Paths.LogsDir = filepath.Join(dir, "data", "logs")

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{cfg.Paths.DataDir, cfg.Paths.ExportDir, cfg.Paths.LogsDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
