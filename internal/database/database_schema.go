// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
database_schema.go - Database Schema Management

Tables:
  - viewing_history: one row per remote playback session; row_id carries a
    UNIQUE constraint and is the sole deduplication key
  - cached_media: one row per merged logical media item; fully replaced on
    every successful library sync
  - lifetime_play_counts: one row per (media_type, normalized_title, year)
    key; fully replaced on every successful lifetime sync

All columns are defined in the initial CREATE TABLE statements: a single
source of truth for the complete schema with no migrations to run.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables and indexes.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements.
func (db *DB) getTableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_viewing_history START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_cached_media START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_lifetime_play_counts START 1`,

		`CREATE TABLE IF NOT EXISTS viewing_history (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_viewing_history'),
			row_id BIGINT NOT NULL UNIQUE,
			server_name TEXT NOT NULL,
			server_order INTEGER NOT NULL,

			user_id BIGINT,
			username TEXT,
			friendly_name TEXT,

			media_type TEXT,
			title TEXT,
			parent_title TEXT,
			grandparent_title TEXT,
			year INTEGER,
			rating_key TEXT,
			parent_rating_key TEXT,
			grandparent_rating_key TEXT,

			started BIGINT,
			stopped BIGINT,
			duration_sec INTEGER,
			play_duration_sec INTEGER,
			percent_complete INTEGER,
			watched_status DOUBLE,

			ip_address TEXT,
			platform TEXT,
			product TEXT,
			player TEXT,
			quality_profile TEXT,
			transcode_decision TEXT,

			date_played TEXT,
			time_played TEXT,

			synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS cached_media (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_cached_media'),
			media_type TEXT NOT NULL,
			title TEXT NOT NULL,
			sort_title TEXT,
			year INTEGER NOT NULL DEFAULT 0,

			total_file_size BIGINT NOT NULL DEFAULT 0,
			added_at BIGINT NOT NULL DEFAULT 0,
			last_played BIGINT NOT NULL DEFAULT 0,
			play_count INTEGER NOT NULL DEFAULT 0,

			video_codecs TEXT,
			resolutions TEXT,
			file_sizes TEXT,

			content_rating TEXT,
			audience_rating TEXT,

			rating_keys_a TEXT,
			rating_keys_b TEXT,

			server_names TEXT,
			synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

			UNIQUE (media_type, title, year)
		)`,

		`CREATE TABLE IF NOT EXISTS lifetime_play_counts (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_lifetime_play_counts'),
			media_type TEXT NOT NULL,
			normalized_title TEXT NOT NULL,
			year INTEGER,
			play_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Frequently filtered columns for read accessors and scans
		`CREATE INDEX IF NOT EXISTS idx_history_started ON viewing_history(started)`,
		`CREATE INDEX IF NOT EXISTS idx_history_server ON viewing_history(server_name)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user ON viewing_history(username)`,
		`CREATE INDEX IF NOT EXISTS idx_history_media_type ON viewing_history(media_type)`,
		`CREATE INDEX IF NOT EXISTS idx_media_type_title ON cached_media(media_type, title)`,
		`CREATE INDEX IF NOT EXISTS idx_lifetime_key ON lifetime_play_counts(media_type, normalized_title)`,
	}
}
