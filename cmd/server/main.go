// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

// Command server runs the Multiplex daemon: the sync engine, the daily
// lifetime refresh, and the HTTP API, all under one supervisor tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/multiplexstats/multiplex/internal/api"
	"github.com/multiplexstats/multiplex/internal/config"
	"github.com/multiplexstats/multiplex/internal/database"
	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/sync"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	servers := cfg.ActiveServers()
	logging.Info().
		Int("servers", len(servers)).
		Str("db_path", cfg.Database.Path).
		Str("timezone", cfg.Sync.Timezone).
		Msg("Starting Multiplex")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ledger, err := sync.OpenBadgerStore(cfg.Database.LedgerPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open status ledger")
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing status ledger")
		}
	}()

	engine, err := sync.NewEngine(cfg, db, ledger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create sync engine")
	}

	// Connectivity is checked but not required at startup; the circuit
	// breakers handle servers that come up later.
	if err := engine.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Tautulli connectivity check failed (will retry)")
	} else {
		logging.Info().Msg("Connected to all configured Tautulli servers")
	}

	router := api.NewRouter(api.NewHandler(engine, db))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	sup := suture.NewSimple("multiplex")
	sup.Add(newHTTPServerService(server, shutdownTimeout))
	if cfg.Sync.DailyRefresh {
		sup.Add(sync.NewRefreshScheduler(engine, cfg.Sync.DailyRefreshHour))
		logging.Info().Int("hour", cfg.Sync.DailyRefreshHour).Msg("Daily lifetime refresh scheduled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("HTTP server starting")
	errCh := sup.ServeBackground(ctx)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor exited with error")
	}
	logging.Info().Msg("Shutdown complete")
}
