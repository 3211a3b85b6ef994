// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package database

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoHistory indicates the viewing_history table is empty, so an
	// incremental cutoff cannot be derived.
	ErrNoHistory = errors.New("no history records stored")
)
