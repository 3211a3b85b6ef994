// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
media.go - Media Library Sync Orchestrator

Rebuilds the merged cached_media catalog from both servers. Per server:

 1. List library sections, keeping movie and show sections.
 2. Page get_library_media_info per section for the per-item facts
    (file size, codec, resolution, last played, rating key).
 3. Run a metadata export job per section for the fields the media
    info endpoint does not expose (content/audience rating, added_at),
    joined back by rating key.
 4. Resolve a play count per item: remote all-time watch stats by
    rating key, falling back to the local history count when the
    remote lookup fails.

Workers append their items to shared state under one mutex; after the
join the merged catalog replaces cached_media in one transaction.

Failure policy: the primary's failure is fatal; a secondary failure
with a primary success records a partial warning on a successful run.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/multiplexstats/multiplex/internal/config"
	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/metrics"
	"github.com/multiplexstats/multiplex/internal/models"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// StartMediaSync triggers a background media library sync. Media runs
// are always full replacements.
func (e *Engine) StartMediaSync(ctx context.Context) bool {
	if len(e.servers) == 0 {
		logging.Error().Err(ErrNoServers).Msg("Media sync requested with no servers")
		return false
	}
	if !e.media.Start(models.SyncKindFull, e.serverEntries()) {
		metrics.SyncRunsTotal.WithLabelValues(DomainMedia, "rejected").Inc()
		return false
	}

	runCtx := context.WithoutCancel(ctx)
	go e.runMediaSync(runCtx)
	return true
}

func (e *Engine) runMediaSync(ctx context.Context) {
	started := time.Now()
	metrics.SyncRunning.WithLabelValues(DomainMedia).Set(1)
	defer metrics.SyncRunning.WithLabelValues(DomainMedia).Set(0)

	logging.Info().Msg("Media library sync started")

	var (
		mu    gosync.Mutex
		items []serverMediaItem
	)

	results := runServers(ctx, e.serverEntries(), func(ctx context.Context, entry config.ServerEntry) error {
		serverItems, err := e.collectServerMedia(ctx, entry)
		if err != nil {
			e.media.SetServerDone(slotForOrder(entry.Order), err)
			return err
		}
		mu.Lock()
		items = append(items, serverItems...)
		mu.Unlock()
		e.media.SetServerDone(slotForOrder(entry.Order), nil)
		return nil
	})

	warning, err := applyPolicy(results, primaryFailureFatal)
	if err != nil {
		e.media.FinishFailure(err)
		metrics.ObserveSyncRun(DomainMedia, "failed", started)
		logging.Error().Err(err).Msg("Media library sync failed")
		return
	}

	merged := mergeMediaItems(items, time.Now())
	if err := e.store.ReplaceCachedMedia(ctx, merged); err != nil {
		e.media.FinishFailure(fmt.Errorf("failed to store media catalog: %w", err))
		metrics.ObserveSyncRun(DomainMedia, "failed", started)
		logging.Error().Err(err).Msg("Media library sync failed")
		return
	}

	e.media.FinishSuccess(warning)
	metrics.ObserveSyncRun(DomainMedia, "success", started)
	logging.Info().
		Int("items", len(merged)).
		Str("warning", warning).
		Dur("elapsed", time.Since(started)).
		Msg("Media library sync completed")
}

// collectServerMedia gathers one server's enriched library items.
func (e *Engine) collectServerMedia(ctx context.Context, entry config.ServerEntry) ([]serverMediaItem, error) {
	client := e.clientFor(entry)
	slot := slotForOrder(entry.Order)
	e.media.SetServer(entry.Name)
	e.media.SetServerStep(slot, "listing libraries")

	libs, err := client.GetLibraries(ctx)
	if err != nil {
		return nil, remoteErr(entry.Name, "get_libraries", err)
	}

	var items []serverMediaItem
	for _, lib := range libs.Response.Data {
		if lib.SectionType != "movie" && lib.SectionType != "show" {
			continue
		}

		e.media.SetServerStep(slot, fmt.Sprintf("scanning %s", lib.SectionName))
		rows, err := e.fetchSectionRows(ctx, client, entry, lib.SectionID)
		if err != nil {
			return nil, err
		}

		e.media.SetServerStep(slot, fmt.Sprintf("exporting %s metadata", lib.SectionName))
		exported, err := e.exportSectionMetadata(ctx, client, entry, lib.SectionID)
		if err != nil {
			return nil, err
		}

		e.media.SetServerStep(slot, fmt.Sprintf("resolving %s play counts", lib.SectionName))
		sectionItems := e.buildSectionItems(ctx, client, entry, lib.SectionType, rows, exported)
		items = append(items, sectionItems...)

		e.media.AddFetched(slot, int64(len(sectionItems)))
		metrics.SyncRecordsFetched.WithLabelValues(DomainMedia, entry.Name).Add(float64(len(sectionItems)))
	}

	logging.Info().
		Str("server", entry.Name).
		Int("items", len(items)).
		Msg("Server library scan complete")
	return items, nil
}

// fetchSectionRows pages one section's media info rows.
func (e *Engine) fetchSectionRows(ctx context.Context, client ClientAPI, entry config.ServerEntry, sectionID int) ([]tautulli.TautulliLibraryMediaRow, error) {
	pageSize := e.cfg.Sync.PageSize

	var (
		rows   []tautulli.TautulliLibraryMediaRow
		offset int
		total  int
	)
	for page := 0; ; page++ {
		resp, err := client.GetLibraryMediaInfo(ctx, sectionID, offset, pageSize)
		if err != nil {
			return nil, remoteErr(entry.Name, "get_library_media_info", err)
		}
		if page == 0 {
			total = resp.Response.Data.RecordsFiltered
		}

		pageRows := resp.Response.Data.Data
		if len(pageRows) == 0 {
			break
		}
		rows = append(rows, pageRows...)
		offset += len(pageRows)
		if len(rows) >= total {
			break
		}
	}
	return rows, nil
}

// exportSectionMetadata runs an export job for a section and indexes
// the result by rating key.
func (e *Engine) exportSectionMetadata(ctx context.Context, client ClientAPI, entry config.ServerEntry, sectionID int) (map[string]tautulli.TautulliExportedItem, error) {
	poller := &exportPoller{
		client:   client,
		server:   entry.Name,
		interval: e.cfg.Sync.ExportPollInterval,
		timeout:  e.cfg.Sync.ExportTimeout,
	}
	exported, err := poller.Run(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]tautulli.TautulliExportedItem, len(exported))
	for _, item := range exported {
		byKey[fmt.Sprintf("%d", item.RatingKey)] = item
	}
	return byKey, nil
}

// buildSectionItems joins media info rows with export metadata and
// resolves a play count per item.
func (e *Engine) buildSectionItems(ctx context.Context, client ClientAPI, entry config.ServerEntry, sectionType string, rows []tautulli.TautulliLibraryMediaRow, exported map[string]tautulli.TautulliExportedItem) []serverMediaItem {
	mediaType := "movie"
	if sectionType == "show" {
		mediaType = "show"
	}

	items := make([]serverMediaItem, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		item := serverMediaItem{
			ServerName:  entry.Name,
			ServerOrder: entry.Order,
			MediaType:   mediaType,
			Title:       row.Title,
			SortTitle:   row.SortTitle,
			Year:        int(parseIntString(row.Year)),
			RatingKey:   row.RatingKey,
			FileSize:    row.FileSize,
			VideoCodec:  row.VideoCodec,
			Resolution:  row.VideoResolution,
			AddedAt:     parseIntString(row.AddedAt),
		}
		if row.LastPlayed != nil {
			item.LastPlayed = *row.LastPlayed
		}

		if meta, ok := exported[row.RatingKey]; ok {
			item.ContentRating = meta.ContentRating
			item.AudienceRating = meta.AudienceRating
			if item.AddedAt == 0 && meta.AddedAt > 0 {
				item.AddedAt = meta.AddedAt
			}
			if item.Year == 0 && meta.Year > 0 {
				item.Year = meta.Year
			}
		}

		item.PlayCount = e.resolvePlayCount(ctx, client, entry, row)
		items = append(items, item)
	}
	return items
}

// resolvePlayCount returns the all-time play count for one item:
// remote watch-time stats first, local history as the fallback.
func (e *Engine) resolvePlayCount(ctx context.Context, client ClientAPI, entry config.ServerEntry, row *tautulli.TautulliLibraryMediaRow) int {
	stats, err := client.GetItemWatchTimeStats(ctx, row.RatingKey)
	if err == nil {
		for _, bucket := range stats.Response.Data {
			if bucket.QueryDays == "0" {
				return bucket.TotalPlays
			}
		}
	}

	count, dbErr := e.store.CountPlaysForRatingKeys(ctx, entry.Name, []string{row.RatingKey})
	if dbErr != nil {
		logging.Warn().
			Str("server", entry.Name).
			Str("rating_key", row.RatingKey).
			AnErr("remote", err).
			AnErr("local", dbErr).
			Msg("Play count unresolved, defaulting to row value")
		if row.PlayCount != nil {
			return *row.PlayCount
		}
		return 0
	}
	return int(count)
}
