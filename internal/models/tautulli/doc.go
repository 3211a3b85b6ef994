// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

// Package tautulli defines typed response envelopes for the Tautulli v2
// API commands consumed by the sync engine. Every response shares the
// {"response": {"result", "message", "data"}} wrapper; result values other
// than "success" surface the message as a remote error.
package tautulli
