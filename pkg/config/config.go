package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/lumi-ai/lumi/pkg/observability"
)

// Registry backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config holds all application configuration
type Config struct {
	// Plugin runtime configuration
	Plugins PluginsConfig

	// Registry persistence configuration
	Registry RegistryConfig

	// Admin server configuration
	Server ServerConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// PluginsConfig holds extension discovery and data settings
type PluginsConfig struct {
	// Search roots, scanned in order.
	Paths []string

	// Root for per-extension data directories (<DataDir>/plugins/<name>).
	DataDir string

	// Cron spec for dashboard collection.
	DashboardSchedule string

	// Concurrent unload workers used on shutdown.
	UnloadWorkers int
}

// RegistryConfig holds registry storage settings
type RegistryConfig struct {
	Backend   string
	ConfigDir string
	RedisURL  string
	RedisKey  string
	Watch     bool
}

// ServerConfig holds admin HTTP server configuration
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       logrus.Level
	LogFormat      string
	MetricsEnabled bool
}

// DefaultPluginPaths are the search roots used when LUMI_PLUGIN_PATHS is unset.
var DefaultPluginPaths = []string{
	filepath.Join("plugins", "core"),
	filepath.Join("plugins", "community"),
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Plugins:       loadPluginsConfig(),
		Registry:      loadRegistryConfig(),
		Server:        loadServerConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadPluginsConfig loads extension settings from environment
func loadPluginsConfig() PluginsConfig {
	return PluginsConfig{
		Paths:             getEnvList("LUMI_PLUGIN_PATHS", DefaultPluginPaths),
		DataDir:           getEnv("LUMI_DATA_DIR", "data"),
		DashboardSchedule: getEnv("LUMI_DASHBOARD_SCHEDULE", "@every 30s"),
		UnloadWorkers:     getEnvInt("LUMI_UNLOAD_WORKERS", 4),
	}
}

// loadRegistryConfig loads registry settings from environment
func loadRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Backend:   strings.ToLower(getEnv("LUMI_REGISTRY_BACKEND", BackendFile)),
		ConfigDir: getEnv("LUMI_CONFIG_DIR", "config"),
		RedisURL:  getEnv("LUMI_REDIS_URL", "redis://localhost:6379/0"),
		RedisKey:  getEnv("LUMI_REDIS_KEY", "lumi:plugin_config"),
		Watch:     getEnvBool("LUMI_WATCH_REGISTRY", true),
	}
}

// loadServerConfig loads admin server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            getEnv("LUMI_ADMIN_ADDR", "127.0.0.1:8085"),
		ReadTimeout:     getEnvDuration("LUMI_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LUMI_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvDuration("LUMI_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLevel(getEnv("LUMI_LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LUMI_LOG_FORMAT", observability.FormatText)),
		MetricsEnabled: getEnvBool("LUMI_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Plugins.Paths) == 0 {
		return fmt.Errorf("at least one plugin path is required")
	}
	if c.Plugins.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Plugins.UnloadWorkers < 1 {
		return fmt.Errorf("unload workers must be at least 1, got %d", c.Plugins.UnloadWorkers)
	}
	if _, err := cron.ParseStandard(c.Plugins.DashboardSchedule); err != nil {
		return fmt.Errorf("invalid dashboard schedule %q: %w", c.Plugins.DashboardSchedule, err)
	}

	switch c.Registry.Backend {
	case BackendFile:
		if c.Registry.ConfigDir == "" {
			return fmt.Errorf("config directory is required for file registry")
		}
	case BackendRedis:
		if c.Registry.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis registry")
		}
		if c.Registry.RedisKey == "" {
			return fmt.Errorf("redis key is required for redis registry")
		}
	default:
		return fmt.Errorf("invalid registry backend: %s (must be file or redis)", c.Registry.Backend)
	}

	switch c.Observability.LogFormat {
	case observability.FormatText, observability.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("admin address is required")
	}

	return nil
}

// RegistryFile returns the path of the file registry document.
func (c *Config) RegistryFile() string {
	return filepath.Join(c.Registry.ConfigDir, "plugin_config.json")
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

// getEnvList splits a path-list environment variable or returns a copy of the default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}

	var out []string
	for _, part := range filepath.SplitList(value) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
