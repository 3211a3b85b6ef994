// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

// Package config loads and validates the Multiplex configuration from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for Multiplex.
type Config struct {
	ServerA  TautulliServerConfig `koanf:"server_a"`
	ServerB  TautulliServerConfig `koanf:"server_b"`
	Database DatabaseConfig       `koanf:"database"`
	Sync     SyncConfig           `koanf:"sync"`
	HTTP     HTTPConfig           `koanf:"http"`
	Logging  LoggingConfig        `koanf:"logging"`
}

// TautulliServerConfig describes one Tautulli statistics server.
// Server A is the primary and is always required; server B is optional.
type TautulliServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Name    string `koanf:"name"`
	URL     string `koanf:"url"`
	APIKey  string `koanf:"api_key"`
}

// DatabaseConfig holds DuckDB and ledger storage settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file path.
	Path string `koanf:"path"`

	// MaxMemory limits DuckDB memory usage (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads sets DuckDB worker threads. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`

	// PreserveInsertionOrder keeps DuckDB's default ordering behavior.
	PreserveInsertionOrder bool `koanf:"preserve_insertion_order"`

	// LedgerPath is the Badger directory for sync status snapshots.
	LedgerPath string `koanf:"ledger_path"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// PageSize is the history page size requested from Tautulli.
	PageSize int `koanf:"page_size"`

	// BatchSize is the number of history rows committed per transaction.
	BatchSize int `koanf:"batch_size"`

	// Timezone resolves local date_played/time_played values.
	Timezone string `koanf:"timezone"`

	// ExportPollInterval is the delay between export status polls.
	ExportPollInterval time.Duration `koanf:"export_poll_interval"`

	// ExportTimeout is the hard deadline for a metadata export job.
	ExportTimeout time.Duration `koanf:"export_timeout"`

	// ScanChunkSize is the local history chunk size for lifetime scans.
	ScanChunkSize int `koanf:"scan_chunk_size"`

	// RetryAttempts bounds 429 retries per API request.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelay is the initial backoff for 429 retries.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// DailyRefresh enables the 01:00 lifetime stats refresh.
	DailyRefresh bool `koanf:"daily_refresh"`

	// DailyRefreshHour is the local hour for the daily refresh.
	DailyRefreshHour int `koanf:"daily_refresh_hour"`
}

// HTTPConfig holds the HTTP server settings.
type HTTPConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServers(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateHTTP(); err != nil {
		return err
	}
	return c.validateLogging()
}

// validateServers checks the Tautulli server entries. At least the
// primary (server A) must be enabled and complete.
func (c *Config) validateServers() error {
	if !c.ServerA.Enabled {
		return fmt.Errorf("SERVER_A_ENABLED must be true: the primary server is required")
	}
	if err := validateServerEntry(c.ServerA, "SERVER_A"); err != nil {
		return err
	}
	if c.ServerB.Enabled {
		if err := validateServerEntry(c.ServerB, "SERVER_B"); err != nil {
			return err
		}
		if c.ServerA.Name == c.ServerB.Name {
			return fmt.Errorf("SERVER_A_NAME and SERVER_B_NAME must differ")
		}
	}
	return nil
}

func validateServerEntry(s TautulliServerConfig, prefix string) error {
	if s.Name == "" {
		return fmt.Errorf("%s_NAME is required", prefix)
	}
	if s.URL == "" {
		return fmt.Errorf("%s_URL is required", prefix)
	}
	if err := validateHTTPURL(s.URL, prefix+"_URL"); err != nil {
		return fmt.Errorf("%s_URL is invalid: %w", prefix, err)
	}
	if s.APIKey == "" {
		return fmt.Errorf("%s_API_KEY is required", prefix)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.LedgerPath == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 10000 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 10000")
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	if c.Sync.ScanChunkSize < 1 {
		return fmt.Errorf("SYNC_SCAN_CHUNK_SIZE must be positive")
	}
	if c.Sync.ExportPollInterval <= 0 {
		return fmt.Errorf("SYNC_EXPORT_POLL_INTERVAL must be positive")
	}
	if c.Sync.ExportTimeout <= 0 {
		return fmt.Errorf("SYNC_EXPORT_TIMEOUT must be positive")
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("SYNC_TIMEZONE is invalid: %w", err)
	}
	if c.Sync.DailyRefreshHour < 0 || c.Sync.DailyRefreshHour > 23 {
		return fmt.Errorf("SYNC_DAILY_REFRESH_HOUR must be between 0 and 23")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// ServerEntry is an active server with its fixed fan-out order
// (1 = primary A, 2 = secondary B).
type ServerEntry struct {
	Order  int
	Name   string
	URL    string
	APIKey string
}

// ActiveServers returns the enabled servers in order, primary first.
func (c *Config) ActiveServers() []ServerEntry {
	servers := []ServerEntry{{
		Order:  1,
		Name:   c.ServerA.Name,
		URL:    c.ServerA.URL,
		APIKey: c.ServerA.APIKey,
	}}
	if c.ServerB.Enabled {
		servers = append(servers, ServerEntry{
			Order:  2,
			Name:   c.ServerB.Name,
			URL:    c.ServerB.URL,
			APIKey: c.ServerB.APIKey,
		})
	}
	return servers
}
