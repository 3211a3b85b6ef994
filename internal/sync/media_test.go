// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package sync

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/multiplexstats/multiplex/internal/models"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

func movieLibraries() *tautulli.TautulliLibraries {
	return &tautulli.TautulliLibraries{
		Response: tautulli.TautulliLibrariesResponse{
			Result: "success",
			Data: []tautulli.TautulliLibraryDetail{
				{SectionID: 1, SectionName: "Movies", SectionType: "movie", Count: 1},
				{SectionID: 2, SectionName: "Photos", SectionType: "photo", Count: 9},
			},
		},
	}
}

func mediaInfoPage(rows ...tautulli.TautulliLibraryMediaRow) *tautulli.TautulliLibraryMediaInfo {
	return &tautulli.TautulliLibraryMediaInfo{
		Response: tautulli.TautulliLibraryMediaInfoResponse{
			Result: "success",
			Data: tautulli.TautulliLibraryMediaInfoData{
				RecordsFiltered: len(rows),
				RecordsTotal:    len(rows),
				Data:            rows,
			},
		},
	}
}

func watchTimeAllTime(plays int) *tautulli.TautulliItemWatchTimeStats {
	return &tautulli.TautulliItemWatchTimeStats{
		Response: tautulli.TautulliItemWatchTimeStatsResponse{
			Result: "success",
			Data: []tautulli.TautulliItemWatchTimeDetail{
				{QueryDays: "7", TotalPlays: 1},
				{QueryDays: "0", TotalPlays: plays},
			},
		},
	}
}

// mediaServerClient stubs the full media sync call sequence for one
// server holding a single movie.
func mediaServerClient(name, ratingKey string, fileSize int64, codec, resolution string, plays int, rating string) *fakeClient {
	exportID := int64(77)
	return &fakeClient{
		name: name,
		librariesFn: func(context.Context) (*tautulli.TautulliLibraries, error) {
			return movieLibraries(), nil
		},
		mediaInfoFn: func(context.Context, int, int, int) (*tautulli.TautulliLibraryMediaInfo, error) {
			return mediaInfoPage(tautulli.TautulliLibraryMediaRow{
				SectionID:       1,
				SectionType:     "movie",
				RatingKey:       ratingKey,
				MediaType:       "movie",
				Title:           "Inception",
				SortTitle:       "Inception",
				Year:            "2010",
				AddedAt:         "1600000000",
				FileSize:        fileSize,
				VideoCodec:      codec,
				VideoResolution: resolution,
			}), nil
		},
		watchTimeFn: func(context.Context, string) (*tautulli.TautulliItemWatchTimeStats, error) {
			return watchTimeAllTime(plays), nil
		},
		exportFn: func(context.Context, int) (*tautulli.TautulliExportMetadata, error) {
			return exportStartResponse(exportID), nil
		},
		exportsTableFn: func(context.Context) (*tautulli.TautulliExportsTable, error) {
			return exportsTableWith(exportID, 1), nil
		},
		downloadFn: func(context.Context, int64) ([]byte, error) {
			payload := fmt.Sprintf(`[{"ratingKey": %s, "title": "Inception", "year": 2010, "addedAt": 1500000000, "contentRating": %q, "audienceRating": "8.8"}]`, ratingKey, rating)
			return []byte(payload), nil
		},
	}
}

func TestMediaSyncMergesBothServers(t *testing.T) {
	store := newFakeStore()
	alpha := mediaServerClient("alpha", "101", 2*bytesPerGB, "h264", "1080p", 3, "PG-13")
	beta := mediaServerClient("beta", "204", 3*bytesPerGB, "hevc", "4k", 2, "R")
	e := testEngine(t, store, alpha, beta)

	if !e.StartMediaSync(context.Background()) {
		t.Fatal("StartMediaSync rejected")
	}
	snap := waitForTerminal(t, e.media)
	if snap.State != models.SyncStateSuccess {
		t.Fatalf("state = %s (%s)", snap.State, snap.ErrorMessage)
	}

	media := store.storedMedia()
	if len(media) != 1 {
		t.Fatalf("stored %d items, want 1 merged", len(media))
	}
	m := media[0]
	if m.TotalFileSize != 5*bytesPerGB {
		t.Errorf("TotalFileSize = %d", m.TotalFileSize)
	}
	if m.PlayCount != 5 {
		t.Errorf("PlayCount = %d, want remote all-time totals summed", m.PlayCount)
	}
	if m.ContentRating != "PG-13" {
		t.Errorf("ContentRating = %q, want the primary's", m.ContentRating)
	}
	if len(m.RatingKeysA) != 1 || m.RatingKeysA[0] != "101" {
		t.Errorf("RatingKeysA = %v", m.RatingKeysA)
	}
	if len(m.RatingKeysB) != 1 || m.RatingKeysB[0] != "204" {
		t.Errorf("RatingKeysB = %v", m.RatingKeysB)
	}
	// The export's earlier addedAt must not override the media info
	// row's value; export addedAt only fills gaps.
	if m.AddedAt != 1600000000 {
		t.Errorf("AddedAt = %d", m.AddedAt)
	}
}

func TestMediaSyncSecondaryFailureIsWarning(t *testing.T) {
	store := newFakeStore()
	alpha := mediaServerClient("alpha", "101", bytesPerGB, "h264", "1080p", 3, "PG-13")
	beta := &fakeClient{name: "beta"} // every call fails
	e := testEngine(t, store, alpha, beta)

	e.StartMediaSync(context.Background())
	snap := waitForTerminal(t, e.media)

	if snap.State != models.SyncStateSuccess {
		t.Fatalf("state = %s (%s), want success with warning", snap.State, snap.ErrorMessage)
	}
	if !strings.HasPrefix(snap.ErrorMessage, "Partial warnings: ") {
		t.Errorf("message = %q, want the partial warning prefix", snap.ErrorMessage)
	}
	if !strings.Contains(snap.ErrorMessage, "beta") {
		t.Errorf("message = %q, want the failing server named", snap.ErrorMessage)
	}
	if len(store.storedMedia()) != 1 {
		t.Error("primary's items should still be stored")
	}
}

func TestMediaSyncPrimaryFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	alpha := &fakeClient{name: "alpha"}
	beta := mediaServerClient("beta", "204", bytesPerGB, "hevc", "4k", 2, "R")
	e := testEngine(t, store, alpha, beta)

	e.StartMediaSync(context.Background())
	snap := waitForTerminal(t, e.media)

	if snap.State != models.SyncStateFailed {
		t.Fatalf("state = %s, want failed on primary failure", snap.State)
	}
	if store.storedMedia() != nil {
		t.Error("nothing should be stored on a failed run")
	}
}

func TestMediaSyncPlayCountFallsBackToLocalHistory(t *testing.T) {
	store := newFakeStore()
	seedPlays(t, store, "alpha", "Inception", 2010, "movie", 4)
	// Give the seeded rows the rating key the library row carries.
	for _, rec := range store.history {
		rec.RatingKey = "101"
	}

	alpha := mediaServerClient("alpha", "101", bytesPerGB, "h264", "1080p", 0, "PG-13")
	alpha.watchTimeFn = func(context.Context, string) (*tautulli.TautulliItemWatchTimeStats, error) {
		return nil, fmt.Errorf("get_item_watch_time_stats failed: timeout")
	}
	e := testEngine(t, store, alpha)

	e.StartMediaSync(context.Background())
	snap := waitForTerminal(t, e.media)
	if snap.State != models.SyncStateSuccess {
		t.Fatalf("state = %s (%s)", snap.State, snap.ErrorMessage)
	}

	media := store.storedMedia()
	if len(media) != 1 || media[0].PlayCount != 4 {
		t.Fatalf("PlayCount = %+v, want the local history fallback of 4", media)
	}
}

func TestMediaSyncExportTerminalFailureFailsPrimary(t *testing.T) {
	store := newFakeStore()
	alpha := mediaServerClient("alpha", "101", bytesPerGB, "h264", "1080p", 3, "PG-13")
	alpha.exportsTableFn = func(context.Context) (*tautulli.TautulliExportsTable, error) {
		return exportsTableWith(77, -1), nil
	}
	e := testEngine(t, store, alpha)

	e.StartMediaSync(context.Background())
	snap := waitForTerminal(t, e.media)

	if snap.State != models.SyncStateFailed {
		t.Fatalf("state = %s, want failed on a terminal export failure", snap.State)
	}
	if !strings.Contains(snap.ErrorMessage, string(ExportTerminalFailure)) {
		t.Errorf("message = %q, want the export failure reason", snap.ErrorMessage)
	}
}
