// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package models

import "time"

// HistoryRecord is one completed playback session pulled from a Tautulli
// server. RowID is the remote's opaque session row identifier and the sole
// deduplication key: a record already stored for a RowID is skipped, never
// updated.
type HistoryRecord struct {
	ID          int64  `json:"id"`
	RowID       int64  `json:"row_id"`
	ServerName  string `json:"server_name"`
	ServerOrder int    `json:"server_order"` // 1 = primary A, 2 = secondary B

	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	FriendlyName string `json:"friendly_name"`

	MediaType            string `json:"media_type"`
	Title                string `json:"title"`
	ParentTitle          string `json:"parent_title"`
	GrandparentTitle     string `json:"grandparent_title"`
	Year                 int    `json:"year"`
	RatingKey            string `json:"rating_key"`
	ParentRatingKey      string `json:"parent_rating_key"`
	GrandparentRatingKey string `json:"grandparent_rating_key"`

	Started         int64   `json:"started"` // unix seconds
	Stopped         int64   `json:"stopped"`
	DurationSec     int     `json:"duration_sec"`
	PlayDurationSec int     `json:"play_duration_sec"`
	PercentComplete int     `json:"percent_complete"`
	WatchedStatus   float64 `json:"watched_status"`

	IPAddress         string `json:"ip_address"`
	Platform          string `json:"platform"`
	Product           string `json:"product"`
	Player            string `json:"player"`
	QualityProfile    string `json:"quality_profile"`
	TranscodeDecision string `json:"transcode_decision"`

	// DatePlayed/TimePlayed are display fields derived from Started in
	// the configured local zone ("2006-01-02" and "3:04pm").
	DatePlayed string `json:"date_played"`
	TimePlayed string `json:"time_played"`

	SyncedAt time.Time `json:"synced_at"`
}

// DisplayTitle returns the title used for cross-server identity: the show
// title for episodes, the item title otherwise.
func (r *HistoryRecord) DisplayTitle() string {
	if r.MediaType == "episode" && r.GrandparentTitle != "" {
		return r.GrandparentTitle
	}
	return r.Title
}

// HistoryFilter selects history rows for read accessors. Zero values mean
// "no constraint".
type HistoryFilter struct {
	ServerName string
	Username   string
	MediaType  string
	Search     string
	After      int64 // started >= After (unix seconds)
	Before     int64 // started <= Before

	SortBy   string // started, date_played, title, username
	SortDesc bool
	Offset   int
	Limit    int
}
