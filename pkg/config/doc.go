// Package config provides runtime configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Plugin settings:
//
//	LUMI_PLUGIN_PATHS="plugins/core:plugins/community"
//	LUMI_DATA_DIR="data"
//	LUMI_DASHBOARD_SCHEDULE="@every 30s"
//	LUMI_UNLOAD_WORKERS="4"
//
// Registry settings:
//
//	LUMI_REGISTRY_BACKEND="file"  # file, redis
//	LUMI_CONFIG_DIR="config"
//	LUMI_REDIS_URL="redis://localhost:6379/0"
//	LUMI_REDIS_KEY="lumi:plugin_config"
//	LUMI_WATCH_REGISTRY="true"
//
// Admin server settings:
//
//	LUMI_ADMIN_ADDR="127.0.0.1:8085"
//	LUMI_SHUTDOWN_TIMEOUT="30s"
//
// Observability settings:
//
//	LUMI_LOG_LEVEL="info"
//	LUMI_LOG_FORMAT="text"  # text, json
//	LUMI_METRICS_ENABLED="true"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := registry.NewFileStore(cfg.RegistryFile())
package config
