// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package tautulli

// TautulliExportMetadata represents the API response from export_metadata.
// Tautulli returns the new export's id in the data object.
type TautulliExportMetadata struct {
	Response TautulliExportMetadataResponse `json:"response"`
}

type TautulliExportMetadataResponse struct {
	Result  string                     `json:"result"`
	Message *string                    `json:"message,omitempty"`
	Data    TautulliExportMetadataData `json:"data"`
}

type TautulliExportMetadataData struct {
	ExportID int64 `json:"export_id"`
}

// TautulliExportsTable represents the API response from get_exports_table endpoint
type TautulliExportsTable struct {
	Response TautulliExportsTableResponse `json:"response"`
}

type TautulliExportsTableResponse struct {
	Result  string                   `json:"result"`
	Message *string                  `json:"message,omitempty"`
	Data    TautulliExportsTableData `json:"data"`
}

type TautulliExportsTableData struct {
	RecordsTotal    int                       `json:"recordsTotal"`
	RecordsFiltered int                       `json:"recordsFiltered"`
	Data            []TautulliExportsTableRow `json:"data"`
}

type TautulliExportsTableRow struct {
	ExportID      int64  `json:"export_id"`
	Timestamp     int64  `json:"timestamp"`
	SectionID     int    `json:"section_id"`
	RatingKey     *int64 `json:"rating_key"`
	MediaType     string `json:"media_type"`
	FileFormat    string `json:"file_format"`
	Filename      string `json:"filename"`
	FileSize      int64  `json:"file_size"`
	TotalItems    int    `json:"total_items"`
	ExportedItems int    `json:"exported_items"`
	// Complete is 1 when finished, 0 while processing, negative on a
	// terminal failure.
	Complete int `json:"complete"`
}

// TautulliExportedItem is one metadata record decoded from a downloaded
// export payload. Export JSON uses camelCase keys.
type TautulliExportedItem struct {
	RatingKey      int64  `json:"ratingKey"`
	Title          string `json:"title"`
	Year           int    `json:"year"`
	AddedAt        int64  `json:"addedAt"`
	ContentRating  string `json:"contentRating"`
	AudienceRating string `json:"audienceRating"`
}
