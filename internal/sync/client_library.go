// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
client_library.go - Tautulli Library and Item Statistics Methods

Library Methods:
  - GetLibraries(): List of library sections with type and counts
  - GetLibraryMediaInfo(): Paginated per-item media info for a section
    (file size, codec, resolution, play counts)

Item Statistics:
  - GetItemWatchTimeStats(): Watch time buckets per item; the "0"
    query_days bucket is the all-time total
  - GetItemUserStats(): Per-user play counts for an item
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"net/url"

	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// GetLibraries retrieves all library sections.
func (c *TautulliClient) GetLibraries(ctx context.Context) (*tautulli.TautulliLibraries, error) {
	var result tautulli.TautulliLibraries
	err := c.makeRequest(ctx, "get_libraries", nil, &result)
	return &result, err
}

// GetLibraryMediaInfo retrieves one page of per-item media info for a
// library section, ordered by added_at so pagination is stable while a
// library is not being modified.
func (c *TautulliClient) GetLibraryMediaInfo(ctx context.Context, sectionID, start, length int) (*tautulli.TautulliLibraryMediaInfo, error) {
	params := url.Values{}
	params.Set("section_id", fmt.Sprintf("%d", sectionID))
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("length", fmt.Sprintf("%d", length))
	params.Set("order_column", "added_at")
	params.Set("order_dir", "desc")

	var result tautulli.TautulliLibraryMediaInfo
	err := c.makeRequest(ctx, "get_library_media_info", params, &result)
	return &result, err
}

// GetItemWatchTimeStats retrieves watch time statistics for one item.
// query_days "0" requests the all-time bucket.
func (c *TautulliClient) GetItemWatchTimeStats(ctx context.Context, ratingKey string) (*tautulli.TautulliItemWatchTimeStats, error) {
	params := url.Values{}
	params.Set("rating_key", ratingKey)
	params.Set("query_days", "0")

	var result tautulli.TautulliItemWatchTimeStats
	err := c.makeRequest(ctx, "get_item_watch_time_stats", params, &result)
	return &result, err
}

// GetItemUserStats retrieves per-user play statistics for one item.
func (c *TautulliClient) GetItemUserStats(ctx context.Context, ratingKey string) (*tautulli.TautulliItemUserStats, error) {
	params := url.Values{}
	params.Set("rating_key", ratingKey)

	var result tautulli.TautulliItemUserStats
	err := c.makeRequest(ctx, "get_item_user_stats", params, &result)
	return &result, err
}
