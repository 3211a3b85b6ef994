// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package models

import "time"

// LifetimePlayCount is the summed play count for one logical media item,
// keyed by (MediaType, NormalizedTitle, Year). Year is nil for shows and
// for movies stored without a year; it participates in identity exactly as
// stored, so "It" (1990) and "It" (2017) are distinct rows.
//
// The whole table is replaced on every successful lifetime sync.
type LifetimePlayCount struct {
	ID              int64     `json:"id"`
	MediaType       string    `json:"media_type"`
	NormalizedTitle string    `json:"normalized_title"`
	Year            *int      `json:"year"`
	PlayCount       int       `json:"play_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}
