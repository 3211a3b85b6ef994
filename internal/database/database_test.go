// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/multiplexstats/multiplex/internal/config"
	"github.com/multiplexstats/multiplex/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:                   filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory:              "512MB",
		Threads:                2,
		PreserveInsertionOrder: true,
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return db
}

func historyRecord(rowID int64, server string, order int) *models.HistoryRecord {
	return &models.HistoryRecord{
		RowID:       rowID,
		ServerName:  server,
		ServerOrder: order,
		Username:    "alice",
		MediaType:   "movie",
		Title:       "Inception",
		Year:        2010,
		RatingKey:   "101",
		Started:     1700000000 + rowID,
		Stopped:     1700003600 + rowID,
		DatePlayed:  "2023-11-14",
		TimePlayed:  "2:13pm",
		SyncedAt:    time.Now(),
	}
}

func TestInsertHistoryRecordDedup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	inserted, err := db.InsertHistoryRecord(ctx, historyRecord(1, "alpha", 1))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted")
	}

	// Same row_id from the other server: skipped, never updated.
	inserted, err = db.InsertHistoryRecord(ctx, historyRecord(1, "beta", 2))
	if err != nil {
		t.Fatalf("duplicate insert failed: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate row_id to be skipped")
	}

	count, err := db.CountHistoryRows(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored row, got %d", count)
	}

	rows, err := db.QueryHistory(ctx, models.HistoryFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ServerName != "alpha" {
		t.Errorf("expected the original row to survive, got %+v", rows)
	}
}

func TestInsertHistoryBatchCountsDuplicates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// Server A rows 1,2 then server B rows 2,3: stored 3, one duplicate.
	batchA := []*models.HistoryRecord{historyRecord(1, "alpha", 1), historyRecord(2, "alpha", 1)}
	batchB := []*models.HistoryRecord{historyRecord(2, "beta", 2), historyRecord(3, "beta", 2)}

	insertedA, dupA, err := db.InsertHistoryBatch(ctx, batchA)
	if err != nil {
		t.Fatalf("batch A failed: %v", err)
	}
	insertedB, dupB, err := db.InsertHistoryBatch(ctx, batchB)
	if err != nil {
		t.Fatalf("batch B failed: %v", err)
	}

	if insertedA+insertedB != 3 {
		t.Errorf("expected 3 inserted, got %d", insertedA+insertedB)
	}
	if dupA+dupB != 1 {
		t.Errorf("expected 1 duplicate, got %d", dupA+dupB)
	}

	count, err := db.CountHistoryRows(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 stored rows, got %d", count)
	}
}

func TestLatestStarted(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.LatestStarted(ctx); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory on empty table, got %v", err)
	}

	for _, id := range []int64{5, 9, 2} {
		if _, err := db.InsertHistoryRecord(ctx, historyRecord(id, "alpha", 1)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	latest, err := db.LatestStarted(ctx)
	if err != nil {
		t.Fatalf("latest started failed: %v", err)
	}
	if latest != 1700000009 {
		t.Errorf("expected latest started 1700000009, got %d", latest)
	}
}

func TestDeleteAllHistory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.InsertHistoryRecord(ctx, historyRecord(1, "alpha", 1)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := db.DeleteAllHistory(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	count, err := db.CountHistoryRows(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty table, got %d rows", count)
	}
}

func TestHistoryChunkOrdering(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		if _, err := db.InsertHistoryRecord(ctx, historyRecord(i, "alpha", 1)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	if _, err := db.InsertHistoryRecord(ctx, historyRecord(6, "beta", 2)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Chunked reads cover exactly the server's rows, in insertion order.
	var seen []int64
	for offset := 0; ; offset += 2 {
		chunk, err := db.HistoryChunk(ctx, "alpha", offset, 2)
		if err != nil {
			t.Fatalf("chunk read failed: %v", err)
		}
		if len(chunk) == 0 {
			break
		}
		for _, rec := range chunk {
			seen = append(seen, rec.RowID)
		}
	}

	if len(seen) != 5 {
		t.Fatalf("expected 5 rows for alpha, got %d", len(seen))
	}
	for i, rowID := range seen {
		if rowID != int64(i+1) {
			t.Errorf("expected insertion order, got %v", seen)
			break
		}
	}
}

func TestReplaceCachedMediaRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	items := []*models.CachedMediaItem{
		{
			MediaType:     "movie",
			Title:         "Inception",
			SortTitle:     "inception",
			Year:          2010,
			TotalFileSize: 30 << 30,
			AddedAt:       1600000000,
			LastPlayed:    1700000000,
			PlayCount:     17,
			VideoCodecs:   "hevc | h264",
			Resolutions:   "4k | 1080p",
			FileSizes:     "20.00 GB | 10.00 GB",
			ContentRating: "PG-13",
			RatingKeysA:   []string{"101"},
			RatingKeysB:   []string{"9044"},
			ServerNames:   "alpha | beta",
			SyncedAt:      time.Now(),
		},
	}

	if err := db.ReplaceCachedMedia(ctx, items); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	got, err := db.QueryCachedMedia(ctx, models.MediaFilter{MediaType: "movie"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	item := got[0]
	if item.Title != "Inception" || item.Year != 2010 {
		t.Errorf("unexpected item identity: %+v", item)
	}
	if len(item.RatingKeysA) != 1 || item.RatingKeysA[0] != "101" {
		t.Errorf("unexpected rating keys A: %v", item.RatingKeysA)
	}
	if len(item.RatingKeysB) != 1 || item.RatingKeysB[0] != "9044" {
		t.Errorf("unexpected rating keys B: %v", item.RatingKeysB)
	}

	// A second replace drops the previous catalog entirely.
	if err := db.ReplaceCachedMedia(ctx, nil); err != nil {
		t.Fatalf("empty replace failed: %v", err)
	}
	count, err := db.CountCachedMedia(ctx, "")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty catalog after replace, got %d", count)
	}
}

func TestLifetimePlayCountFor(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	year1990 := 1990
	year2017 := 2017
	counts := []*models.LifetimePlayCount{
		{MediaType: "movie", NormalizedTitle: "it", Year: &year1990, PlayCount: 12, UpdatedAt: time.Now()},
		{MediaType: "movie", NormalizedTitle: "it", Year: &year2017, PlayCount: 34, UpdatedAt: time.Now()},
		{MediaType: "show", NormalizedTitle: "dark", PlayCount: 80, UpdatedAt: time.Now()},
	}
	if err := db.ReplaceLifetimeCounts(ctx, counts); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	// Year filter keeps the 1990 and 2017 rows separate.
	got, err := db.LifetimePlayCountFor(ctx, "movie", "it", &year1990)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got != 12 {
		t.Errorf("expected 12 plays for 1990, got %d", got)
	}

	// No year filter merges the variants: 12 + 34 = 46.
	got, err = db.LifetimePlayCountFor(ctx, "movie", "it", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got != 46 {
		t.Errorf("expected merged count 46, got %d", got)
	}

	got, err = db.LifetimePlayCountFor(ctx, "movie", "unknown", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got != 0 {
		t.Errorf("expected 0 for unknown title, got %d", got)
	}
}

func TestCountPlaysForRatingKeys(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	recs := []*models.HistoryRecord{
		historyRecord(1, "alpha", 1),
		historyRecord(2, "alpha", 1),
		historyRecord(3, "beta", 2),
	}
	// Row 2 is an episode of a show keyed by its grandparent.
	recs[1].MediaType = "episode"
	recs[1].RatingKey = "555"
	recs[1].GrandparentRatingKey = "101"

	for _, rec := range recs {
		if _, err := db.InsertHistoryRecord(ctx, rec); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	count, err := db.CountPlaysForRatingKeys(ctx, "alpha", []string{"101"})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	// Direct play of 101 plus the episode under grandparent 101; the beta
	// server's row is out of scope.
	if count != 2 {
		t.Errorf("expected 2 plays for alpha key 101, got %d", count)
	}

	count, err = db.CountPlaysForRatingKeys(ctx, "alpha", nil)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 for no keys, got %d", count)
	}
}
