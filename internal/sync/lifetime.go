// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
lifetime.go - Lifetime Play Count Sync Orchestrator

Recomputes lifetime_play_counts from the LOCAL viewing_history table.
No remote calls: each server worker scans its own server's stored rows
in fixed-size chunks and counts plays per logical item key
(media type, normalized display title, year-or-nil). Display title is
the show title for episodes, the item title otherwise; year
participates only for movies and exactly as stored, so a 1990 and a
2017 movie sharing a title stay separate rows.

Cross-server counts combine additively, and chunk size never affects
totals. Persistence is a full replace in one transaction.
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
)

// progressReportInterval is how many scanned rows pass between ledger
// progress updates.
const progressReportInterval = 500

// lifetimeKey identifies one logical item in the lifetime counts.
// hasYear distinguishes a stored year of zero from no year at all.
type lifetimeKey struct {
	mediaType       string
	normalizedTitle string
	year            int
	hasYear         bool
}

func lifetimeKeyFor(rec *models.HistoryRecord) lifetimeKey {
	mediaType := rec.MediaType
	if mediaType == "episode" {
		mediaType = "show"
	}
	k := lifetimeKey{
		mediaType:       mediaType,
		normalizedTitle: normalizeTitle(rec.DisplayTitle()),
	}
	if mediaType == "movie" && rec.Year > 0 {
		k.year = rec.Year
		k.hasYear = true
	}
	return k
}

// StartLifetimeSync triggers a background lifetime play count rebuild.
func (e *Engine) StartLifetimeSync(ctx context.Context) bool {
	if len(e.servers) == 0 {
		logging.Error().Err(ErrNoServers).Msg("Lifetime sync requested with no servers")
		return false
	}
	if !e.lifetime.Start(models.SyncKindFull, e.serverEntries()) {
		metrics.SyncRunsTotal.WithLabelValues(DomainLifetime, "rejected").Inc()
		return false
	}

	runCtx := context.WithoutCancel(ctx)
	go e.runLifetimeSync(runCtx)
	return true
}

func (e *Engine) runLifetimeSync(ctx context.Context) {
	started := time.Now()
	metrics.SyncRunning.WithLabelValues(DomainLifetime).Set(1)
	defer metrics.SyncRunning.WithLabelValues(DomainLifetime).Set(0)

	logging.Info().Msg("Lifetime play count sync started")

	var (
		mu     gosync.Mutex
		counts = make(map[lifetimeKey]int)
	)

	results := runServers(ctx, e.serverEntries(), func(ctx context.Context, entry config.ServerEntry) error {
		serverCounts, err := e.scanServerHistory(ctx, entry)
		if err != nil {
			e.lifetime.SetServerDone(slotForOrder(entry.Order), err)
			return err
		}
		mu.Lock()
		for k, n := range serverCounts {
			counts[k] += n
		}
		mu.Unlock()
		e.lifetime.SetServerDone(slotForOrder(entry.Order), nil)
		return nil
	})

	warning, err := applyPolicy(results, primaryFailureFatal)
	if err != nil {
		e.lifetime.FinishFailure(err)
		metrics.ObserveSyncRun(DomainLifetime, "failed", started)
		logging.Error().Err(err).Msg("Lifetime play count sync failed")
		return
	}

	rows := lifetimeRows(counts, time.Now())
	if err := e.store.ReplaceLifetimeCounts(ctx, rows); err != nil {
		e.lifetime.FinishFailure(fmt.Errorf("failed to store lifetime counts: %w", err))
		metrics.ObserveSyncRun(DomainLifetime, "failed", started)
		logging.Error().Err(err).Msg("Lifetime play count sync failed")
		return
	}

	e.lifetime.FinishSuccess(warning)
	metrics.ObserveSyncRun(DomainLifetime, "success", started)
	logging.Info().
		Int("items", len(rows)).
		Dur("elapsed", time.Since(started)).
		Msg("Lifetime play count sync completed")
}

// scanServerHistory counts plays per logical item from one server's
// local history, in chunks.
func (e *Engine) scanServerHistory(ctx context.Context, entry config.ServerEntry) (map[lifetimeKey]int, error) {
	slot := slotForOrder(entry.Order)
	e.lifetime.SetServer(entry.Name)
	e.lifetime.SetServerStep(slot, "scanning local history")

	total, err := e.store.CountHistoryForServer(ctx, entry.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s history: %w", entry.Name, err)
	}
	e.lifetime.SetServerTotal(slot, total)

	chunkSize := e.cfg.Sync.ScanChunkSize
	counts := make(map[lifetimeKey]int)

	var scanned, lastReport int64
	for offset := 0; ; offset += chunkSize {
		chunk, err := e.store.HistoryChunk(ctx, entry.Name, offset, chunkSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s history chunk: %w", entry.Name, err)
		}
		if len(chunk) == 0 {
			break
		}

		for _, rec := range chunk {
			counts[lifetimeKeyFor(rec)]++
			scanned++
			if scanned-lastReport >= progressReportInterval {
				e.lifetime.SetServerFetched(slot, scanned)
				lastReport = scanned
			}
		}
	}

	e.lifetime.SetServerFetched(slot, scanned)
	metrics.SyncRecordsFetched.WithLabelValues(DomainLifetime, entry.Name).Add(float64(scanned))
	logging.Info().
		Str("server", entry.Name).
		Int64("scanned", scanned).
		Int("items", len(counts)).
		Msg("Server history scan complete")
	return counts, nil
}

func lifetimeRows(counts map[lifetimeKey]int, updatedAt time.Time) []*models.LifetimePlayCount {
	rows := make([]*models.LifetimePlayCount, 0, len(counts))
	for k, n := range counts {
		row := &models.LifetimePlayCount{
			MediaType:       k.mediaType,
			NormalizedTitle: k.normalizedTitle,
			PlayCount:       n,
			UpdatedAt:       updatedAt,
		}
		if k.hasYear {
			year := k.year
			row.Year = &year
		}
		rows = append(rows, row)
	}
	return rows
}
