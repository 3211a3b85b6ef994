// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package tautulli

// TautulliLibraries represents the API response from get_libraries endpoint
type TautulliLibraries struct {
	Response TautulliLibrariesResponse `json:"response"`
}

type TautulliLibrariesResponse struct {
	Result  string                  `json:"result"`
	Message *string                 `json:"message,omitempty"`
	Data    []TautulliLibraryDetail `json:"data"`
}

type TautulliLibraryDetail struct {
	SectionID   int    `json:"section_id"`
	SectionName string `json:"section_name"`
	SectionType string `json:"section_type"` // movie, show, artist, photo
	Count       int    `json:"count"`
	ParentCount int    `json:"parent_count"`
	ChildCount  int    `json:"child_count"`
	IsActive    int    `json:"is_active"`
}

// TautulliLibraryMediaInfo represents the API response from the
// get_library_media_info endpoint (paged, DataTables-style).
type TautulliLibraryMediaInfo struct {
	Response TautulliLibraryMediaInfoResponse `json:"response"`
}

type TautulliLibraryMediaInfoResponse struct {
	Result  string                       `json:"result"`
	Message *string                      `json:"message,omitempty"`
	Data    TautulliLibraryMediaInfoData `json:"data"`
}

type TautulliLibraryMediaInfoData struct {
	RecordsFiltered  int                       `json:"recordsFiltered"`
	RecordsTotal     int                       `json:"recordsTotal"`
	Data             []TautulliLibraryMediaRow `json:"data"`
	TotalFileSize    int64                     `json:"total_file_size"`
	FilteredFileSize int64                     `json:"filtered_file_size"`
}

// TautulliLibraryMediaRow is one library item. Tautulli reports several
// numeric fields as strings here (year, added_at, rating_key); they are
// kept as strings and parsed tolerantly at the call site.
type TautulliLibraryMediaRow struct {
	SectionID       int    `json:"section_id"`
	SectionType     string `json:"section_type"`
	RatingKey       string `json:"rating_key"`
	ParentRatingKey string `json:"parent_rating_key"`
	MediaType       string `json:"media_type"`
	Title           string `json:"title"`
	SortTitle       string `json:"sort_title"`
	Year            string `json:"year"`
	AddedAt         string `json:"added_at"` // unix seconds as string
	FileSize        int64  `json:"file_size"`
	VideoCodec      string `json:"video_codec"`
	VideoResolution string `json:"video_resolution"`
	AudioCodec      string `json:"audio_codec"`
	LastPlayed      *int64 `json:"last_played"` // Nullable - null when never played
	PlayCount       *int   `json:"play_count"`  // Nullable - null when never played
}
