// Package models - Service configuration and operational settings.
// This file defines configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, security, etc.)
// - Defaults that work out of the box with the in-memory backend
// - Validation catches misconfigurations before the server starts
// - Every leaf can be overridden from THROTTLE_* environment variables
package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Storage type constants
const (
	StorageTypeJSON     = "json"
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Security header presets
const (
	HeaderPresetStrict   = "strict"
	HeaderPresetBalanced = "balanced"
	HeaderPresetRelaxed  = "relaxed"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - Storage: Item persistence backend
// - Security: Rate limiting and response hardening
// - Logging: Structured logging output
// - Metrics: Prometheus endpoint
// - Observability: Tracing
// - Stats: Optional Redis counters for rate limit decisions
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Stats         StatsConfig         `yaml:"stats" json:"stats"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port" env:"PORT"`
	Host         string        `yaml:"host" json:"host" env:"HOST"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" env:"IDLE_TIMEOUT"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled" env:"TLS_ENABLED"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file" env:"TLS_KEY_FILE"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" env:"CORS_ENABLED"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods" env:"CORS_ALLOWED_METHODS"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers" env:"CORS_ALLOWED_HEADERS"`
	MaxAge         int      `yaml:"max_age" json:"max_age" env:"CORS_MAX_AGE"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type" env:"STORAGE_TYPE"`
	Path     string         `yaml:"path" json:"path" env:"STORAGE_PATH"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Headers   HeadersConfig   `yaml:"headers" json:"headers"`
}

// RateLimitConfig configures per-client admission control. The window length
// is fixed; only the number of requests admitted per window is tunable.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled" env:"RATE_LIMIT_ENABLED"`
	RequestsPerWindow int           `yaml:"requests_per_window" json:"requests_per_window" env:"RATE_LIMIT_REQUESTS"`
	IdleTTL           time.Duration `yaml:"idle_ttl" json:"idle_ttl" env:"RATE_LIMIT_IDLE_TTL"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" env:"RATE_LIMIT_CLEANUP_INTERVAL"`
	LogInterval       time.Duration `yaml:"log_interval" json:"log_interval" env:"RATE_LIMIT_LOG_INTERVAL"`
}

type HeadersConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"SECURITY_HEADERS_ENABLED"`
	Preset  string `yaml:"preset" json:"preset" env:"SECURITY_HEADERS_PRESET"`
	HSTS    bool   `yaml:"hsts" json:"hsts" env:"SECURITY_HEADERS_HSTS"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level" env:"LOG_LEVEL"`
	Format   string `yaml:"format" json:"format" env:"LOG_FORMAT"`
	Output   string `yaml:"output" json:"output" env:"LOG_OUTPUT"`
	FilePath string `yaml:"file_path" json:"file_path" env:"LOG_FILE_PATH"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" json:"path" env:"METRICS_PATH"`
	Port    int    `yaml:"port" json:"port" env:"METRICS_PORT"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled" env:"TRACING_ENABLED"`
	Exporter     string  `yaml:"exporter" json:"exporter" env:"TRACING_EXPORTER"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint" env:"TRACING_OTLP_ENDPOINT"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate" env:"TRACING_SAMPLE_RATE"`
}

// StatsConfig configures the Redis counters for rate limit decisions. The
// counters are for reporting; admission never depends on Redis. Events are
// queued for a background writer; BufferSize bounds the queue and events
// beyond it are dropped.
type StatsConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled" env:"STATS_ENABLED"`
	Prefix     string        `yaml:"prefix" json:"prefix" env:"STATS_PREFIX"`
	TTL        time.Duration `yaml:"ttl" json:"ttl" env:"STATS_TTL"`
	Bucket     string        `yaml:"bucket" json:"bucket" env:"STATS_BUCKET"`
	TrackKeys  bool          `yaml:"track_keys" json:"track_keys" env:"STATS_TRACK_KEYS"`
	BufferSize int           `yaml:"buffer_size" json:"buffer_size" env:"STATS_BUFFER_SIZE"`
	Redis      RedisConfig   `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" json:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" json:"db" env:"REDIS_DB"`
	PoolSize int    `yaml:"pool_size" json:"pool_size" env:"REDIS_POOL_SIZE"`
}

// NewDefaultConfig creates a configuration with defaults.
//
// Default Values Rationale:
// - Port 8080: Standard non-privileged HTTP port
// - Memory storage: No external dependencies for a first run
// - Rate limiting enabled at 5 requests per second per client
// - No idle-client eviction: limiter state lives for the process lifetime
// - Balanced security headers, HSTS off until TLS is terminated
// - Metrics on a separate port, tracing off
// - Redis stats off
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type"},
				MaxAge:         3600,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Path: "./data/items.json",
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerWindow: 5,
				IdleTTL:           0,
				CleanupInterval:   time.Minute,
				LogInterval:       time.Second,
			},
			Headers: HeadersConfig{
				Enabled: true,
				Preset:  HeaderPresetBalanced,
				HSTS:    false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "throttle",
			Tracing: TracingConfig{
				Enabled:      false,
				Exporter:     "stdout",
				OTLPEndpoint: "localhost:4317",
				SampleRate:   1.0,
			},
		},
		Stats: StatsConfig{
			Enabled:    false,
			Prefix:     "throttle:ratelimit",
			TTL:        24 * time.Hour,
			Bucket:     "minute",
			BufferSize: 1024,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	if err := c.Stats.Validate(); err != nil {
		return fmt.Errorf("invalid stats config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	validTypes := []string{StorageTypeJSON, StorageTypeMemory, StorageTypePostgres, StorageTypeSQLite}
	if !slices.Contains(validTypes, stc.Type) {
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}

	if stc.Type == StorageTypeJSON && stc.Path == "" {
		return errors.New("path is required for JSON storage")
	}

	if (stc.Type == StorageTypePostgres || stc.Type == StorageTypeSQLite) && stc.Database.DSN == "" {
		return errors.New("database DSN is required for database storage")
	}

	return nil
}

func (sec *SecurityConfig) Validate() error {
	if err := sec.RateLimit.Validate(); err != nil {
		return err
	}

	if sec.Headers.Enabled {
		validPresets := []string{HeaderPresetStrict, HeaderPresetBalanced, HeaderPresetRelaxed}
		if !slices.Contains(validPresets, sec.Headers.Preset) {
			return fmt.Errorf("invalid security header preset: %s", sec.Headers.Preset)
		}
	}

	return nil
}

func (rl *RateLimitConfig) Validate() error {
	if !rl.Enabled {
		return nil
	}

	if rl.RequestsPerWindow < 1 {
		return errors.New("requests per window must be at least 1")
	}
	if rl.IdleTTL < 0 {
		return errors.New("idle TTL cannot be negative")
	}
	if rl.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}
	if rl.LogInterval < 0 {
		return errors.New("log interval cannot be negative")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !slices.Contains([]string{"json", "text"}, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !slices.Contains([]string{"stdout", "stderr", "file"}, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}

	if !oc.Tracing.Enabled {
		return nil
	}

	if !slices.Contains([]string{"stdout", "otlp"}, oc.Tracing.Exporter) {
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required when exporter is otlp")
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}

func (st *StatsConfig) Validate() error {
	if !st.Enabled {
		return nil
	}

	if st.Redis.Addr == "" {
		return errors.New("Redis address is required when stats are enabled")
	}

	if !slices.Contains([]string{"minute", "none"}, st.Bucket) {
		return fmt.Errorf("invalid stats bucket: %s", st.Bucket)
	}

	if st.TTL < 0 {
		return errors.New("stats TTL cannot be negative")
	}

	if st.BufferSize < 0 {
		return errors.New("stats buffer size cannot be negative")
	}

	return nil
}
