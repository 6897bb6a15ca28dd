package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	License LicenseConfig `yaml:"license" envconfig:"LICENSE"`
	Auth    AuthConfig    `yaml:"auth" envconfig:"AUTH"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig contains the local HTTP server configuration.
// The desktop shell talks to this server on loopback only.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LicenseConfig contains license enforcement configuration
type LicenseConfig struct {
	// RevocationURL is the remote kill-switch feed. Empty disables the check.
	RevocationURL      string        `yaml:"revocation_url" envconfig:"REVOCATION_URL"`
	RevocationTimeout  time.Duration `yaml:"revocation_timeout" envconfig:"REVOCATION_TIMEOUT"`
	RevocationInterval time.Duration `yaml:"revocation_interval" envconfig:"REVOCATION_INTERVAL"`
	GracePeriodDays    int           `yaml:"grace_period_days" envconfig:"GRACE_PERIOD_DAYS"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	MinPasswordLength int     `yaml:"min_password_length" envconfig:"MIN_PASSWORD_LENGTH"`
	BcryptCost        int     `yaml:"bcrypt_cost" envconfig:"BCRYPT_COST"`
	LoginRPS          float64 `yaml:"login_rps" envconfig:"LOGIN_RPS"`
	LoginBurst        int     `yaml:"login_burst" envconfig:"LOGIN_BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR"`
	DatabaseFile string `yaml:"database_file" envconfig:"DATABASE_FILE"`
	ExportDir    string `yaml:"export_dir" envconfig:"EXPORT_DIR"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables win over file values.
func Load() (*Config, error) {
	return LoadFromFile(getConfigFilePath())
}

// LoadFromFile loads configuration in three layers: built-in defaults, then
// the YAML file when it exists, then environment variables. The struct
// carries no envconfig default tags, so Process overlays only variables
// that are actually set and never clobbers file values; defaults fill the
// fields that remain zero afterwards.
func LoadFromFile(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = *fileConfig
		}
	}

	if err := envconfig.Process("VYAPAR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv("VYAPAR_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

// applyDefaults fills fields neither the file nor the environment set
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8390
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.License.RevocationTimeout == 0 {
		c.License.RevocationTimeout = 5 * time.Second
	}
	if c.License.RevocationInterval == 0 {
		c.License.RevocationInterval = 6 * time.Hour
	}
	if c.License.GracePeriodDays == 0 {
		c.License.GracePeriodDays = 7
	}

	if c.Auth.MinPasswordLength == 0 {
		c.Auth.MinPasswordLength = 6
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Auth.LoginRPS == 0 {
		c.Auth.LoginRPS = 1
	}
	if c.Auth.LoginBurst == 0 {
		c.Auth.LoginBurst = 5
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/vyapar.log"
	}

	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Paths.DatabaseFile == "" {
		c.Paths.DatabaseFile = "vyapar.db"
	}
	if c.Paths.ExportDir == "" {
		c.Paths.ExportDir = "exports"
	}
	if c.Paths.LogsDir == "" {
		c.Paths.LogsDir = "logs"
	}
}

// resolvePaths makes relative paths absolute against the data directory
func (c *Config) resolvePaths() error {
	absData, err := filepath.Abs(c.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data dir: %w", err)
	}
	c.Paths.DataDir = absData

	if !filepath.IsAbs(c.Paths.DatabaseFile) {
		c.Paths.DatabaseFile = filepath.Join(c.Paths.DataDir, c.Paths.DatabaseFile)
	}
	if !filepath.IsAbs(c.Paths.ExportDir) {
		c.Paths.ExportDir = filepath.Join(c.Paths.DataDir, c.Paths.ExportDir)
	}
	if !filepath.IsAbs(c.Paths.LogsDir) {
		c.Paths.LogsDir = filepath.Join(c.Paths.DataDir, c.Paths.LogsDir)
	}
	return nil
}

// validate checks configuration values for consistency
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.License.GracePeriodDays < 0 {
		return fmt.Errorf("grace period days must be non-negative: %d", c.License.GracePeriodDays)
	}
	if c.License.RevocationTimeout <= 0 {
		return fmt.Errorf("revocation timeout must be positive: %s", c.License.RevocationTimeout)
	}
	if c.Auth.MinPasswordLength < 6 {
		return fmt.Errorf("minimum password length must be at least 6: %d", c.Auth.MinPasswordLength)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// EnsureDirectories creates the configured directories if they do not exist
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ExportDir, c.Paths.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
