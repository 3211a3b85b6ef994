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

	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/models"
)

// ReplaceLifetimeCounts replaces the whole lifetime_play_counts table with
// the given rows inside one transaction.
func (db *DB) ReplaceLifetimeCounts(ctx context.Context, counts []*models.LifetimePlayCount) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Warn().Err(rbErr).Msg("Failed to roll back lifetime replace")
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM lifetime_play_counts`); err != nil {
		return fmt.Errorf("failed to clear lifetime counts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO lifetime_play_counts (
		media_type, normalized_title, year, play_count, updated_at
	) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare lifetime insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close prepared statement")
		}
	}()

	for _, c := range counts {
		if _, err = stmt.ExecContext(ctx,
			c.MediaType, c.NormalizedTitle, c.Year, c.PlayCount, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert lifetime count %q: %w", c.NormalizedTitle, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lifetime replace: %w", err)
	}
	return nil
}

// QueryLifetimeCounts returns all lifetime rows for one media type, most
// played first. An empty mediaType returns everything.
func (db *DB) QueryLifetimeCounts(ctx context.Context, mediaType string) ([]*models.LifetimePlayCount, error) {
	query := `SELECT id, media_type, normalized_title, year, play_count, updated_at
		FROM lifetime_play_counts`
	var args []interface{}
	if mediaType != "" {
		query += ` WHERE media_type = ?`
		args = append(args, mediaType)
	}
	query += ` ORDER BY play_count DESC, normalized_title`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lifetime counts: %w", err)
	}
	defer closeRows(rows)

	var counts []*models.LifetimePlayCount
	for rows.Next() {
		c := &models.LifetimePlayCount{}
		if err := rows.Scan(&c.ID, &c.MediaType, &c.NormalizedTitle, &c.Year, &c.PlayCount, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lifetime row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lifetime rows: %w", err)
	}
	return counts, nil
}

// LifetimePlayCountFor returns the play count for one key. With year set,
// only the exact (media_type, normalized_title, year) row counts; with a
// nil year the counts of every year variant of the title are summed, so
// "it" resolves 1990 and 2017 into one combined total.
func (db *DB) LifetimePlayCountFor(ctx context.Context, mediaType, normalizedTitle string, year *int) (int64, error) {
	var (
		total sql.NullInt64
		err   error
	)
	if year != nil {
		err = db.conn.QueryRowContext(ctx,
			`SELECT SUM(play_count) FROM lifetime_play_counts
			 WHERE media_type = ? AND normalized_title = ? AND year = ?`,
			mediaType, normalizedTitle, *year).Scan(&total)
	} else {
		err = db.conn.QueryRowContext(ctx,
			`SELECT SUM(play_count) FROM lifetime_play_counts
			 WHERE media_type = ? AND normalized_title = ?`,
			mediaType, normalizedTitle).Scan(&total)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query lifetime play count: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}

// CountLifetimeRows returns the number of stored lifetime rows.
func (db *DB) CountLifetimeRows(ctx context.Context) (int64, error) {
	var count int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM lifetime_play_counts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count lifetime rows: %w", err)
	}
	return count, nil
}
