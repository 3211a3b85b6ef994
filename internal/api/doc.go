// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

// Package api provides the HTTP surface: sync triggers, sync status,
// and read endpoints over the stored history, media, and lifetime
// tables, routed with Chi.
//
// Sync triggers return 202 when a run was started and 409 when the
// domain is already running; they never block on the run itself.
package api
