// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package tautulli

// TautulliHistory represents the API response from Tautulli's get_history endpoint
type TautulliHistory struct {
	Response TautulliHistoryResponse `json:"response"`
}

type TautulliHistoryResponse struct {
	Result  string              `json:"result"`
	Message *string             `json:"message,omitempty"`
	Data    TautulliHistoryData `json:"data"`
}

type TautulliHistoryData struct {
	RecordsFiltered int                     `json:"recordsFiltered"`
	RecordsTotal    int                     `json:"recordsTotal"`
	Data            []TautulliHistoryRecord `json:"data"`
}

// TautulliHistoryRecord is a single playback session from get_history.
// Pointer fields distinguish null from zero in Tautulli API responses.
//
// Note: Duration is in SECONDS (unlike get_activity which returns milliseconds)
type TautulliHistoryRecord struct {
	// RowID is the opaque session row identifier; nullable when Tautulli
	// groups sessions. Records without it are counted but never stored.
	RowID *int64 `json:"row_id"`

	Date    int64 `json:"date"`
	Started int64 `json:"started"`
	Stopped int64 `json:"stopped"`

	UserID       *int64 `json:"user_id"` // Nullable - may be null in edge cases
	User         string `json:"user"`
	FriendlyName string `json:"friendly_name"`
	IPAddress    string `json:"ip_address"`

	MediaType        string  `json:"media_type"`
	Title            string  `json:"title"`
	ParentTitle      *string `json:"parent_title"`      // Nullable - null for movies
	GrandparentTitle *string `json:"grandparent_title"` // Nullable - null for movies
	Year             *int    `json:"year"`

	RatingKey            *int64 `json:"rating_key"`
	ParentRatingKey      *int64 `json:"parent_rating_key"`
	GrandparentRatingKey *int64 `json:"grandparent_rating_key"`

	Duration        *int     `json:"duration"`      // seconds, nullable for live
	PlayDuration    *int     `json:"play_duration"` // seconds actually played
	PercentComplete *int     `json:"percent_complete"`
	WatchedStatus   *float64 `json:"watched_status"`

	Platform          string `json:"platform"`
	Product           string `json:"product"`
	Player            string `json:"player"`
	QualityProfile    string `json:"quality_profile"`
	TranscodeDecision string `json:"transcode_decision"`
}
