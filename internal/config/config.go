package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"throttle/internal/models"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name, so the
// RATE_LIMIT_REQUESTS field is read from THROTTLE_RATE_LIMIT_REQUESTS.
const EnvPrefix = "THROTTLE_"

// dotEnvFile is loaded into the process environment when present. Variables
// that are already set win over the file.
var dotEnvFile = ".env"

// Load loads configuration from file and environment variables.
//
// Precedence, lowest first: built-in defaults, the YAML file, .env, the
// process environment.
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", dotEnvFile, err)
	}

	// Override with environment variables
	if err := loadFromEnvironment(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// unsupportedConfig mirrors keys operators commonly try to set but which the
// service does not read.
type unsupportedConfig struct {
	Security struct {
		RateLimit struct {
			Window            interface{} `yaml:"window"`
			BurstSize         interface{} `yaml:"burst_size"`
			RequestsPerMinute interface{} `yaml:"requests_per_minute"`
		} `yaml:"rate_limit"`
	} `yaml:"security"`
}

// warnUnsupportedKeys logs a warning for each ignored key found in the YAML data.
// The service continues to start normally.
func warnUnsupportedKeys(data []byte) {
	var cfg unsupportedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return
	}
	rl := cfg.Security.RateLimit
	if rl.Window != nil {
		slog.Warn("Config key is ignored; the rate limit window is fixed at one second.", "config_key", "security.rate_limit.window")
	}
	if rl.BurstSize != nil {
		slog.Warn("Config key is ignored; the sliding window has no separate burst allowance.", "config_key", "security.rate_limit.burst_size")
	}
	if rl.RequestsPerMinute != nil {
		slog.Warn("Config key is ignored; use security.rate_limit.requests_per_window.", "config_key", "security.rate_limit.requests_per_minute")
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnUnsupportedKeys(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadDotEnv exports the variables in path. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// loadFromEnvironment overlays THROTTLE_* environment variables onto config.
// Unset variables leave the current value alone.
func loadFromEnvironment(config *models.Config) error {
	return env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix})
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	config.Storage.Type = models.StorageTypeSQLite
	config.Storage.Database.DSN = "./data/items.db"

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	config.Stats.Redis.Addr = "localhost:6379"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
