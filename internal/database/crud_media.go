// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/models"
)

// ratingKeySeparator joins per-server rating key lists into one column.
const ratingKeySeparator = ","

// ReplaceCachedMedia replaces the whole cached_media table with the given
// items inside one transaction. The library sync aggregates in memory and
// persists the final merged catalog in a single delete-all plus reinsert.
func (db *DB) ReplaceCachedMedia(ctx context.Context, items []*models.CachedMediaItem) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Warn().Err(rbErr).Msg("Failed to roll back media replace")
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM cached_media`); err != nil {
		return fmt.Errorf("failed to clear cached media: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cached_media (
		media_type, title, sort_title, year,
		total_file_size, added_at, last_played, play_count,
		video_codecs, resolutions, file_sizes,
		content_rating, audience_rating,
		rating_keys_a, rating_keys_b,
		server_names, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare media insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close prepared statement")
		}
	}()

	for _, item := range items {
		if _, err = stmt.ExecContext(ctx,
			item.MediaType, item.Title, item.SortTitle, item.Year,
			item.TotalFileSize, item.AddedAt, item.LastPlayed, item.PlayCount,
			item.VideoCodecs, item.Resolutions, item.FileSizes,
			item.ContentRating, item.AudienceRating,
			strings.Join(item.RatingKeysA, ratingKeySeparator),
			strings.Join(item.RatingKeysB, ratingKeySeparator),
			item.ServerNames, item.SyncedAt,
		); err != nil {
			return fmt.Errorf("failed to insert media item %q: %w", item.Title, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit media replace: %w", err)
	}
	return nil
}

// mediaSortColumns whitelists sortable columns for QueryCachedMedia.
var mediaSortColumns = map[string]string{
	"title":           "title",
	"sort_title":      "sort_title",
	"year":            "year",
	"added_at":        "added_at",
	"last_played":     "last_played",
	"play_count":      "play_count",
	"total_file_size": "total_file_size",
}

// QueryCachedMedia returns merged media items matching the filter.
func (db *DB) QueryCachedMedia(ctx context.Context, filter models.MediaFilter) ([]*models.CachedMediaItem, error) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.MediaType != "" {
		conds = append(conds, "media_type = ?")
		args = append(args, filter.MediaType)
	}
	if filter.Search != "" {
		conds = append(conds, "title ILIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}

	query := `SELECT
		id, media_type, title, sort_title, year,
		total_file_size, added_at, last_played, play_count,
		video_codecs, resolutions, file_sizes,
		content_rating, audience_rating,
		rating_keys_a, rating_keys_b,
		server_names, synced_at
	FROM cached_media`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	sortCol, ok := mediaSortColumns[filter.SortBy]
	if !ok {
		sortCol = "sort_title"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortCol, direction)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached media: %w", err)
	}
	defer closeRows(rows)

	var items []*models.CachedMediaItem
	for rows.Next() {
		item := &models.CachedMediaItem{}
		var keysA, keysB string
		if err := rows.Scan(
			&item.ID, &item.MediaType, &item.Title, &item.SortTitle, &item.Year,
			&item.TotalFileSize, &item.AddedAt, &item.LastPlayed, &item.PlayCount,
			&item.VideoCodecs, &item.Resolutions, &item.FileSizes,
			&item.ContentRating, &item.AudienceRating,
			&keysA, &keysB,
			&item.ServerNames, &item.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		item.RatingKeysA = splitRatingKeys(keysA)
		item.RatingKeysB = splitRatingKeys(keysB)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media rows: %w", err)
	}
	return items, nil
}

// CountCachedMedia returns the number of merged items, optionally
// restricted to one media type.
func (db *DB) CountCachedMedia(ctx context.Context, mediaType string) (int64, error) {
	query := `SELECT COUNT(*) FROM cached_media`
	var args []interface{}
	if mediaType != "" {
		query += ` WHERE media_type = ?`
		args = append(args, mediaType)
	}

	var count int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cached media: %w", err)
	}
	return count, nil
}

func splitRatingKeys(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ratingKeySeparator)
}
