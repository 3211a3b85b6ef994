// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

// Package sync implements the Multiplex sync engine: the Tautulli API
// client with rate-limit handling and per-server circuit breakers, the
// per-domain progress ledgers, the two-server fan-out coordinator, and
// the three sync orchestrators (viewing history, media library,
// lifetime play counts).
//
// Each domain is single-flight: StartHistorySync, StartMediaSync and
// StartLifetimeSync return true when a background run was started and
// false when one is already in flight. Runs move through
// idle -> running -> success|failed and are never cancelled mid-run.
package sync
