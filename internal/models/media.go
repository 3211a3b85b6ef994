// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package models

import "time"

// CachedMediaItem is one merged logical media item, aggregated across both
// servers during a library sync. Identity is (MediaType, Title, Year);
// remote rating keys are unstable across servers and are retained only as
// per-server side lists for per-item statistics lookups.
//
// The whole table is replaced on every successful library sync.
type CachedMediaItem struct {
	ID        int64  `json:"id"`
	MediaType string `json:"media_type"` // movie or show
	Title     string `json:"title"`
	SortTitle string `json:"sort_title"`
	Year      int    `json:"year"` // 0 for shows and yearless movies

	TotalFileSize int64 `json:"total_file_size"` // bytes, summed across servers
	AddedAt       int64 `json:"added_at"`        // earliest across servers
	LastPlayed    int64 `json:"last_played"`     // latest across servers
	PlayCount     int   `json:"play_count"`

	// Rendered variant strings, ' | ' delimited.
	VideoCodecs string `json:"video_codecs"`
	Resolutions string `json:"resolutions"` // priority ordered, 4k first
	FileSizes   string `json:"file_sizes"`  // "%.2f GB", largest first

	// Rating fields follow primary-server-wins.
	ContentRating  string `json:"content_rating"`
	AudienceRating string `json:"audience_rating"`

	// RatingKeysA/B hold each server's rating keys for this item.
	RatingKeysA []string `json:"rating_keys_a"`
	RatingKeysB []string `json:"rating_keys_b"`

	ServerNames string    `json:"server_names"` // ' | ' delimited
	SyncedAt    time.Time `json:"synced_at"`
}

// MediaFilter selects cached media rows for read accessors.
type MediaFilter struct {
	MediaType string // movie or show
	Search    string

	SortBy   string // title, year, added_at, last_played, play_count, total_file_size
	SortDesc bool
	Offset   int
	Limit    int
}
