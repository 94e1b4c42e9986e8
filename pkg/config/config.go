package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dealsourcer/orgsearch/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Redis / cache configuration
	Redis RedisConfig `yaml:"redis"`
	Cache CacheConfig `yaml:"cache"`

	// SMTP configuration for access code delivery
	SMTP SMTPConfig `yaml:"smtp"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string        `yaml:"url"`
	ReplicaURLs string        `yaml:"replica_urls"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
}

// CacheConfig holds cache tuning configuration
type CacheConfig struct {
	Enabled   bool `yaml:"enabled"`
	LocalSize int  `yaml:"local_size"`
}

// SMTPConfig holds the outgoing mail configuration. When Host is empty
// access codes are logged instead of mailed.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging. LogLevelName carries the YAML value; LogLevel is derived.
	LogLevel     observability.LogLevel `yaml:"-"`
	LogLevelName string                 `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from an optional YAML file (path taken
// from ORGSEARCH_CONFIG_FILE) with environment variables taking precedence.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("ORGSEARCH_CONFIG_FILE"); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxConns: 25,
			MinConns: 5,
			Timeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			DB:         0,
			MaxRetries: 3,
			PoolSize:   10,
		},
		Cache: CacheConfig{
			Enabled:   true,
			LocalSize: 1024,
		},
		SMTP: SMTPConfig{
			Port: 587,
			From: "no-reply@orgsearch.local",
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "orgsearch-api",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if cfg.Observability.LogLevelName != "" {
		cfg.Observability.LogLevel = parseLogLevel(cfg.Observability.LogLevelName)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Server
	cfg.Server.Host = getEnv("ORGSEARCH_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("ORGSEARCH_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("ORGSEARCH_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("ORGSEARCH_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("ORGSEARCH_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("ORGSEARCH_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("ORGSEARCH_HEALTH_PORT", cfg.Server.HealthPort)

	// Database
	cfg.Database.URL = getEnv("ORGSEARCH_POSTGRES_URL", cfg.Database.URL)
	cfg.Database.ReplicaURLs = getEnv("ORGSEARCH_POSTGRES_REPLICA_URLS", cfg.Database.ReplicaURLs)
	cfg.Database.MaxConns = getEnvInt("ORGSEARCH_POSTGRES_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvInt("ORGSEARCH_POSTGRES_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.Timeout = getEnvDuration("ORGSEARCH_POSTGRES_TIMEOUT", cfg.Database.Timeout)

	// Redis
	cfg.Redis.URL = getEnv("ORGSEARCH_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("ORGSEARCH_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("ORGSEARCH_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.MaxRetries = getEnvInt("ORGSEARCH_REDIS_MAX_RETRIES", cfg.Redis.MaxRetries)
	cfg.Redis.PoolSize = getEnvInt("ORGSEARCH_REDIS_POOL_SIZE", cfg.Redis.PoolSize)

	// Cache
	cfg.Cache.Enabled = getEnvBool("ORGSEARCH_CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.LocalSize = getEnvInt("ORGSEARCH_L1_CACHE_SIZE", cfg.Cache.LocalSize)

	// SMTP
	cfg.SMTP.Host = getEnv("ORGSEARCH_SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvInt("ORGSEARCH_SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getEnv("ORGSEARCH_SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("ORGSEARCH_SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("ORGSEARCH_SMTP_FROM", cfg.SMTP.From)

	// Observability
	if level := os.Getenv("ORGSEARCH_LOG_LEVEL"); level != "" {
		cfg.Observability.LogLevel = parseLogLevel(level)
	}
	cfg.Observability.MetricsEnabled = getEnvBool("ORGSEARCH_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("ORGSEARCH_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("ORGSEARCH_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("ORGSEARCH_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("ORGSEARCH_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("ORGSEARCH_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("postgres max connections must be positive")
	}

	// Validate SMTP config when mailing is enabled
	if c.SMTP.Host != "" {
		if c.SMTP.Port <= 0 {
			return fmt.Errorf("SMTP port must be positive")
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("SMTP from address is required when SMTP host is set")
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
