// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/multiplex/config.yaml",
	"/etc/multiplex/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		ServerA: TautulliServerConfig{
			Enabled: false,
			Name:    "",
			URL:     "",
			APIKey:  "",
		},
		ServerB: TautulliServerConfig{
			Enabled: false,
			Name:    "",
			URL:     "",
			APIKey:  "",
		},
		Database: DatabaseConfig{
			Path:                   "/data/multiplex.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
			LedgerPath:             "/data/ledger",
		},
		Sync: SyncConfig{
			PageSize:           1000,
			BatchSize:          100,
			Timezone:           "America/Los_Angeles",
			ExportPollInterval: 2 * time.Second,
			ExportTimeout:      25 * time.Minute,
			ScanChunkSize:      2000,
			RetryAttempts:      5,
			RetryDelay:         2 * time.Second,
			DailyRefresh:       true,
			DailyRefreshHour:   1,
		},
		HTTP: HTTPConfig{
			Host:    "0.0.0.0",
			Port:    8181,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables: highest priority
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment variables do not
// pollute the configuration.
//
// Examples:
//   - SERVER_A_URL -> server_a.url
//   - SYNC_TIMEZONE -> sync.timezone
//   - DUCKDB_PATH -> database.path
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server A (primary)
		"server_a_enabled": "server_a.enabled",
		"server_a_name":    "server_a.name",
		"server_a_url":     "server_a.url",
		"server_a_api_key": "server_a.api_key",

		// Server B (secondary, optional)
		"server_b_enabled": "server_b.enabled",
		"server_b_name":    "server_b.name",
		"server_b_url":     "server_b.url",
		"server_b_api_key": "server_b.api_key",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",
		"ledger_path":       "database.ledger_path",

		// Sync mappings
		"sync_page_size":            "sync.page_size",
		"sync_batch_size":           "sync.batch_size",
		"sync_timezone":             "sync.timezone",
		"tz":                        "sync.timezone",
		"sync_export_poll_interval": "sync.export_poll_interval",
		"sync_export_timeout":       "sync.export_timeout",
		"sync_scan_chunk_size":      "sync.scan_chunk_size",
		"sync_retry_attempts":       "sync.retry_attempts",
		"sync_retry_delay":          "sync.retry_delay",
		"sync_daily_refresh":        "sync.daily_refresh",
		"sync_daily_refresh_hour":   "sync.daily_refresh_hour",

		// HTTP server mappings
		"http_host":    "http.host",
		"http_port":    "http.port",
		"http_timeout": "http.timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
