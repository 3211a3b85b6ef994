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

const historyInsertQuery = `INSERT INTO viewing_history (
	row_id, server_name, server_order,
	user_id, username, friendly_name,
	media_type, title, parent_title, grandparent_title, year,
	rating_key, parent_rating_key, grandparent_rating_key,
	started, stopped, duration_sec, play_duration_sec, percent_complete, watched_status,
	ip_address, platform, product, player, quality_profile, transcode_decision,
	date_played, time_played, synced_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING`

// InsertHistoryRecord inserts one history row with duplicate handling.
// Uses INSERT ... ON CONFLICT DO NOTHING against the row_id unique
// constraint; a duplicate is silently ignored and reported via the
// returned bool, never as an error. Existing rows are never updated.
func (db *DB) InsertHistoryRecord(ctx context.Context, rec *models.HistoryRecord) (bool, error) {
	result, err := db.conn.ExecContext(ctx, historyInsertQuery, historyInsertArgs(rec)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert history record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rowsAffected == 0 {
		logging.Debug().
			Int64("row_id", rec.RowID).
			Str("server", rec.ServerName).
			Msg("Duplicate detected")
		return false, nil
	}
	return true, nil
}

// InsertHistoryBatch atomically inserts a batch of history rows.
// Returns the number inserted and the number skipped as duplicates; on a
// transaction error everything is rolled back.
func (db *DB) InsertHistoryBatch(ctx context.Context, recs []*models.HistoryRecord) (inserted, duplicates int, err error) {
	if len(recs) == 0 {
		return 0, 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Warn().Err(rbErr).Msg("Failed to roll back history batch")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, historyInsertQuery)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close prepared statement")
		}
	}()

	for _, rec := range recs {
		result, execErr := stmt.ExecContext(ctx, historyInsertArgs(rec)...)
		if execErr != nil {
			err = fmt.Errorf("failed to insert row_id %d: %w", rec.RowID, execErr)
			return 0, 0, err
		}
		rowsAffected, raErr := result.RowsAffected()
		if raErr != nil {
			err = fmt.Errorf("failed to read affected rows: %w", raErr)
			return 0, 0, err
		}
		if rowsAffected == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit history batch: %w", err)
	}
	return inserted, duplicates, nil
}

func historyInsertArgs(rec *models.HistoryRecord) []interface{} {
	return []interface{}{
		rec.RowID, rec.ServerName, rec.ServerOrder,
		rec.UserID, rec.Username, rec.FriendlyName,
		rec.MediaType, rec.Title, rec.ParentTitle, rec.GrandparentTitle, rec.Year,
		rec.RatingKey, rec.ParentRatingKey, rec.GrandparentRatingKey,
		rec.Started, rec.Stopped, rec.DurationSec, rec.PlayDurationSec, rec.PercentComplete, rec.WatchedStatus,
		rec.IPAddress, rec.Platform, rec.Product, rec.Player, rec.QualityProfile, rec.TranscodeDecision,
		rec.DatePlayed, rec.TimePlayed, rec.SyncedAt,
	}
}

// CountHistoryRows returns the total number of stored history rows.
func (db *DB) CountHistoryRows(ctx context.Context) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM viewing_history`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history rows: %w", err)
	}
	return count, nil
}

// LatestStarted returns the start timestamp of the most recent stored
// record across all servers. Returns ErrNoHistory when the table is empty.
func (db *DB) LatestStarted(ctx context.Context) (int64, error) {
	var latest sql.NullInt64
	err := db.conn.QueryRowContext(ctx, `SELECT MAX(started) FROM viewing_history`).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("failed to query latest started: %w", err)
	}
	if !latest.Valid {
		return 0, ErrNoHistory
	}
	return latest.Int64, nil
}

// DeleteAllHistory clears the viewing_history table. Used by backfill and
// full syncs before repopulating.
func (db *DB) DeleteAllHistory(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM viewing_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// historySortColumns whitelists sortable columns for QueryHistory.
var historySortColumns = map[string]string{
	"started":     "started",
	"date_played": "date_played",
	"title":       "title",
	"username":    "username",
	"server_name": "server_name",
}

// QueryHistory returns history rows matching the filter, sorted and
// paginated. Unknown sort columns fall back to started.
func (db *DB) QueryHistory(ctx context.Context, filter models.HistoryFilter) ([]*models.HistoryRecord, error) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.ServerName != "" {
		conds = append(conds, "server_name = ?")
		args = append(args, filter.ServerName)
	}
	if filter.Username != "" {
		conds = append(conds, "username = ?")
		args = append(args, filter.Username)
	}
	if filter.MediaType != "" {
		conds = append(conds, "media_type = ?")
		args = append(args, filter.MediaType)
	}
	if filter.Search != "" {
		conds = append(conds, "(title ILIKE ? OR grandparent_title ILIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.After > 0 {
		conds = append(conds, "started >= ?")
		args = append(args, filter.After)
	}
	if filter.Before > 0 {
		conds = append(conds, "started <= ?")
		args = append(args, filter.Before)
	}

	query := selectHistoryColumns + " FROM viewing_history"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	sortCol, ok := historySortColumns[filter.SortBy]
	if !ok {
		sortCol = "started"
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
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer closeRows(rows)

	return scanHistoryRows(rows)
}

// HistoryChunk reads one chunk of a server's history in insertion order,
// for the lifetime full-table scan. Chunk boundaries must not affect the
// resulting aggregates.
func (db *DB) HistoryChunk(ctx context.Context, serverName string, offset, limit int) ([]*models.HistoryRecord, error) {
	query := selectHistoryColumns + ` FROM viewing_history
		WHERE server_name = ?
		ORDER BY id
		LIMIT ? OFFSET ?`

	rows, err := db.conn.QueryContext(ctx, query, serverName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to read history chunk: %w", err)
	}
	defer closeRows(rows)

	return scanHistoryRows(rows)
}

// CountHistoryForServer returns the number of stored rows for one server.
func (db *DB) CountHistoryForServer(ctx context.Context, serverName string) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM viewing_history WHERE server_name = ?`, serverName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history for server %s: %w", serverName, err)
	}
	return count, nil
}

// CountPlaysForRatingKeys counts a server's local history rows whose
// rating key (or show-level grandparent rating key) matches any of the
// given keys. Used as the fallback play count when remote per-item stats
// are unavailable.
func (db *DB) CountPlaysForRatingKeys(ctx context.Context, serverName string, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := fmt.Sprintf(`SELECT COUNT(*) FROM viewing_history
		WHERE server_name = ? AND (rating_key IN (%s) OR grandparent_rating_key IN (%s))`,
		placeholders, placeholders)

	args := make([]interface{}, 0, 1+2*len(keys))
	args = append(args, serverName)
	for _, k := range keys {
		args = append(args, k)
	}
	for _, k := range keys {
		args = append(args, k)
	}

	var count int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count plays for rating keys: %w", err)
	}
	return count, nil
}

const selectHistoryColumns = `SELECT
	id, row_id, server_name, server_order,
	user_id, username, friendly_name,
	media_type, title, parent_title, grandparent_title, year,
	rating_key, parent_rating_key, grandparent_rating_key,
	started, stopped, duration_sec, play_duration_sec, percent_complete, watched_status,
	ip_address, platform, product, player, quality_profile, transcode_decision,
	date_played, time_played, synced_at`

func scanHistoryRows(rows *sql.Rows) ([]*models.HistoryRecord, error) {
	var records []*models.HistoryRecord
	for rows.Next() {
		rec := &models.HistoryRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.RowID, &rec.ServerName, &rec.ServerOrder,
			&rec.UserID, &rec.Username, &rec.FriendlyName,
			&rec.MediaType, &rec.Title, &rec.ParentTitle, &rec.GrandparentTitle, &rec.Year,
			&rec.RatingKey, &rec.ParentRatingKey, &rec.GrandparentRatingKey,
			&rec.Started, &rec.Stopped, &rec.DurationSec, &rec.PlayDurationSec, &rec.PercentComplete, &rec.WatchedStatus,
			&rec.IPAddress, &rec.Platform, &rec.Product, &rec.Player, &rec.QualityProfile, &rec.TranscodeDecision,
			&rec.DatePlayed, &rec.TimePlayed, &rec.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return records, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close result rows")
	}
}
