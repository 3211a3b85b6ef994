// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
history.go - Viewing History Sync Orchestrator

Pulls paginated playback history from every configured server into
viewing_history, deduplicated by the remote row_id.

Run kinds:
  - incremental: cutoff = date of the newest local session minus one
    day (the overlap re-fetches the boundary day; duplicates are
    skipped by the insert). Fails closed when the table is empty.
  - backfill(days): destructive; clears the table and re-fetches the
    last N days.
  - full: destructive; clears the table and fetches everything.

Pagination contract: the server total is taken from the FIRST page's
recordsFiltered, the offset advances by the number of rows actually
returned, and the loop also stops on an empty page so a server that
keeps reporting more rows than it serves cannot wedge a worker.

Failure policy: any server failure fails the run. History rows are
facts, and a half-synced table would be silently incomplete.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/multiplexstats/multiplex/internal/config"
	"github.com/multiplexstats/multiplex/internal/database"
	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/metrics"
	"github.com/multiplexstats/multiplex/internal/models"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// StartHistorySync triggers a background history sync. It returns true
// when a run was started and false when one is already in flight. days
// is only meaningful for backfill runs.
func (e *Engine) StartHistorySync(ctx context.Context, kind models.SyncKind, days int) bool {
	if len(e.servers) == 0 {
		logging.Error().Err(ErrNoServers).Msg("History sync requested with no servers")
		return false
	}
	if !e.history.Start(kind, e.serverEntries()) {
		metrics.SyncRunsTotal.WithLabelValues(DomainHistory, "rejected").Inc()
		return false
	}

	runCtx := context.WithoutCancel(ctx)
	go e.runHistorySync(runCtx, kind, days)
	return true
}

func (e *Engine) runHistorySync(ctx context.Context, kind models.SyncKind, days int) {
	started := time.Now()
	metrics.SyncRunning.WithLabelValues(DomainHistory).Set(1)
	defer metrics.SyncRunning.WithLabelValues(DomainHistory).Set(0)

	logging.Info().
		Str("kind", string(kind)).
		Int("days", days).
		Msg("History sync started")

	cutoff, err := e.historyCutoff(ctx, kind, days)
	if err != nil {
		e.history.FinishFailure(err)
		metrics.ObserveSyncRun(DomainHistory, "failed", started)
		logging.Error().Err(err).Msg("History sync failed")
		return
	}

	results := runServers(ctx, e.serverEntries(), func(ctx context.Context, entry config.ServerEntry) error {
		if err := e.syncServerHistory(ctx, entry, cutoff); err != nil {
			e.history.SetServerDone(slotForOrder(entry.Order), err)
			return err
		}
		return nil
	})

	warning, err := applyPolicy(results, anyFailureFatal)
	if err != nil {
		e.history.FinishFailure(err)
		metrics.ObserveSyncRun(DomainHistory, "failed", started)
		logging.Error().Err(err).Msg("History sync failed")
		return
	}

	snap := e.history.Snapshot()
	e.history.FinishSuccess(warning)
	metrics.ObserveSyncRun(DomainHistory, "success", started)
	logging.Info().
		Int64("fetched", snap.RecordsFetched).
		Int64("inserted", snap.RecordsInserted).
		Int64("skipped", snap.RecordsSkipped).
		Dur("elapsed", time.Since(started)).
		Msg("History sync completed")
}

// historyCutoff resolves the run kind to a fetch cutoff date, clearing
// the table first for the destructive kinds. A zero cutoff means no
// date filter.
func (e *Engine) historyCutoff(ctx context.Context, kind models.SyncKind, days int) (time.Time, error) {
	switch kind {
	case models.SyncKindIncremental:
		latest, err := e.store.LatestStarted(ctx)
		if err != nil {
			if errors.Is(err, database.ErrNoHistory) {
				return time.Time{}, ErrNoLocalData
			}
			return time.Time{}, fmt.Errorf("failed to find newest local session: %w", err)
		}
		// One day of overlap; the boundary day's rows dedup on insert.
		return time.Unix(latest, 0).In(e.loc).AddDate(0, 0, -1), nil

	case models.SyncKindBackfill:
		if days < 1 {
			return time.Time{}, fmt.Errorf("backfill days must be positive, got %d", days)
		}
		if err := e.store.DeleteAllHistory(ctx); err != nil {
			return time.Time{}, fmt.Errorf("failed to clear history: %w", err)
		}
		return time.Now().In(e.loc).AddDate(0, 0, -days), nil

	case models.SyncKindFull:
		if err := e.store.DeleteAllHistory(ctx); err != nil {
			return time.Time{}, fmt.Errorf("failed to clear history: %w", err)
		}
		return time.Time{}, nil

	default:
		return time.Time{}, fmt.Errorf("unknown history sync kind %q", kind)
	}
}

// syncServerHistory pages one server's history into storage.
func (e *Engine) syncServerHistory(ctx context.Context, entry config.ServerEntry, cutoff time.Time) error {
	client := e.clientFor(entry)
	slot := slotForOrder(entry.Order)
	e.history.SetServer(entry.Name)
	e.history.SetServerStep(slot, "fetching history")

	pageSize := e.cfg.Sync.PageSize
	batch := make([]*models.HistoryRecord, 0, e.cfg.Sync.BatchSize)

	var (
		offset  int
		fetched int64
		total   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, duplicates, err := e.store.InsertHistoryBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to store history batch: %w", err)
		}
		e.history.AddInserted(int64(inserted))
		e.history.AddSkipped(int64(duplicates))
		metrics.SyncRecordsInserted.WithLabelValues(DomainHistory, entry.Name).Add(float64(inserted))
		metrics.SyncRecordsSkipped.WithLabelValues(DomainHistory, entry.Name).Add(float64(duplicates))
		batch = batch[:0]
		return nil
	}

	for page := 0; ; page++ {
		resp, err := client.GetHistory(ctx, cutoff, offset, pageSize)
		if err != nil {
			return remoteErr(entry.Name, "get_history", err)
		}

		if page == 0 {
			// The first page's recordsFiltered is the authoritative
			// total for this run; later pages may drift while new
			// sessions arrive.
			total = int64(resp.Response.Data.RecordsFiltered)
			e.history.SetServerTotal(slot, total)
		}

		rows := resp.Response.Data.Data
		if len(rows) == 0 {
			break
		}

		for i := range rows {
			fetched++
			rec := e.convertHistoryRecord(&rows[i], entry)
			if rec == nil {
				// No row_id: counted as fetched, never stored.
				continue
			}
			batch = append(batch, rec)
			if len(batch) >= e.cfg.Sync.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		e.history.AddFetched(slot, int64(len(rows)))
		metrics.SyncRecordsFetched.WithLabelValues(DomainHistory, entry.Name).Add(float64(len(rows)))

		offset += len(rows)
		if fetched >= total {
			break
		}
	}

	if err := flush(); err != nil {
		return err
	}

	e.history.SetServerDone(slot, nil)
	logging.Info().
		Str("server", entry.Name).
		Int64("fetched", fetched).
		Msg("Server history fetch complete")
	return nil
}

// convertHistoryRecord maps one Tautulli history row to the storage
// model. Returns nil for rows without a row_id, which cannot be
// deduplicated and are therefore never stored.
func (e *Engine) convertHistoryRecord(row *tautulli.TautulliHistoryRecord, entry config.ServerEntry) *models.HistoryRecord {
	if row.RowID == nil {
		return nil
	}

	startedAt := time.Unix(row.Started, 0).In(e.loc)

	rec := &models.HistoryRecord{
		RowID:       *row.RowID,
		ServerName:  entry.Name,
		ServerOrder: entry.Order,

		Username:     row.User,
		FriendlyName: row.FriendlyName,

		MediaType: row.MediaType,
		Title:     row.Title,

		Started: row.Started,
		Stopped: row.Stopped,

		IPAddress:         row.IPAddress,
		Platform:          row.Platform,
		Product:           row.Product,
		Player:            row.Player,
		QualityProfile:    row.QualityProfile,
		TranscodeDecision: row.TranscodeDecision,

		DatePlayed: startedAt.Format("2006-01-02"),
		TimePlayed: strings.ToLower(startedAt.Format("3:04PM")),

		SyncedAt: time.Now(),
	}

	if row.UserID != nil {
		rec.UserID = *row.UserID
	}
	if row.ParentTitle != nil {
		rec.ParentTitle = *row.ParentTitle
	}
	if row.GrandparentTitle != nil {
		rec.GrandparentTitle = *row.GrandparentTitle
	}
	if row.Year != nil {
		rec.Year = *row.Year
	}
	if row.RatingKey != nil {
		rec.RatingKey = fmt.Sprintf("%d", *row.RatingKey)
	}
	if row.ParentRatingKey != nil {
		rec.ParentRatingKey = fmt.Sprintf("%d", *row.ParentRatingKey)
	}
	if row.GrandparentRatingKey != nil {
		rec.GrandparentRatingKey = fmt.Sprintf("%d", *row.GrandparentRatingKey)
	}
	if row.Duration != nil {
		rec.DurationSec = *row.Duration
	}
	if row.PlayDuration != nil {
		rec.PlayDurationSec = *row.PlayDuration
	}
	if row.PercentComplete != nil {
		rec.PercentComplete = *row.PercentComplete
	}
	if row.WatchedStatus != nil {
		rec.WatchedStatus = *row.WatchedStatus
	}

	return rec
}
