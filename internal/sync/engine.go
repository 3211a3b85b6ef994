// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
engine.go - Sync Engine Wiring

The Engine owns the per-server clients, the three domain ledgers and
the storage handle. It exposes the StartXxxSync single-flight triggers
and the status accessors the HTTP API serves.

The Store interface deliberately mirrors the storage methods the engine
actually calls so tests can substitute an in-memory fake.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/multiplexstats/multiplex/internal/config"
	"github.com/multiplexstats/multiplex/internal/models"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// Domain labels used for ledgers, metrics and status keys.
const (
	DomainHistory  = "history"
	DomainMedia    = "media"
	DomainLifetime = "lifetime"
)

// Store is the storage surface the engine consumes.
type Store interface {
	InsertHistoryBatch(ctx context.Context, recs []*models.HistoryRecord) (inserted, duplicates int, err error)
	CountHistoryRows(ctx context.Context) (int64, error)
	LatestStarted(ctx context.Context) (int64, error)
	DeleteAllHistory(ctx context.Context) error
	HistoryChunk(ctx context.Context, serverName string, offset, limit int) ([]*models.HistoryRecord, error)
	CountHistoryForServer(ctx context.Context, serverName string) (int64, error)
	CountPlaysForRatingKeys(ctx context.Context, serverName string, keys []string) (int64, error)

	ReplaceCachedMedia(ctx context.Context, items []*models.CachedMediaItem) error
	CountCachedMedia(ctx context.Context, mediaType string) (int64, error)

	ReplaceLifetimeCounts(ctx context.Context, counts []*models.LifetimePlayCount) error
	CountLifetimeRows(ctx context.Context) (int64, error)
}

// server pairs a configured server entry with its API client.
type server struct {
	entry  config.ServerEntry
	client ClientAPI
}

// Engine coordinates the three sync domains.
type Engine struct {
	cfg     *config.Config
	loc     *time.Location
	store   Store
	servers []server

	history  *Ledger
	media    *Ledger
	lifetime *Ledger
}

// NewEngine builds the engine from validated configuration, wrapping
// each server's client in a circuit breaker.
func NewEngine(cfg *config.Config, store Store, persist SnapshotStore) (*Engine, error) {
	loc, err := time.LoadLocation(cfg.Sync.Timezone)
	if err != nil {
		return nil, err
	}

	servers := make([]server, 0, 2)
	for _, entry := range cfg.ActiveServers() {
		client := NewTautulliClient(entry.Name, entry.URL, entry.APIKey, cfg.Sync.RetryAttempts, cfg.Sync.RetryDelay)
		servers = append(servers, server{
			entry:  entry,
			client: NewCircuitBreakerClient(client),
		})
	}

	return newEngine(cfg, loc, store, persist, servers), nil
}

// newEngine is the injection seam the tests use to supply fake clients.
func newEngine(cfg *config.Config, loc *time.Location, store Store, persist SnapshotStore, servers []server) *Engine {
	return &Engine{
		cfg:      cfg,
		loc:      loc,
		store:    store,
		servers:  servers,
		history:  NewLedger(DomainHistory, persist),
		media:    NewLedger(DomainMedia, persist),
		lifetime: NewLedger(DomainLifetime, persist),
	}
}

// Ping checks connectivity to every configured server.
func (e *Engine) Ping(ctx context.Context) error {
	for _, s := range e.servers {
		if err := s.client.Ping(ctx); err != nil {
			return remoteErr(s.entry.Name, "arnold", err)
		}
	}
	return nil
}

// HistoryStatus returns the history ledger snapshot plus the stored
// row count.
func (e *Engine) HistoryStatus(ctx context.Context) (models.StatusSnapshot, error) {
	rows, err := e.store.CountHistoryRows(ctx)
	if err != nil {
		return models.StatusSnapshot{}, err
	}
	return models.StatusSnapshot{SyncStatus: e.history.Snapshot(), StoredRows: rows}, nil
}

// MediaStatus returns the media ledger snapshot plus the stored item
// count.
func (e *Engine) MediaStatus(ctx context.Context) (models.StatusSnapshot, error) {
	rows, err := e.store.CountCachedMedia(ctx, "")
	if err != nil {
		return models.StatusSnapshot{}, err
	}
	return models.StatusSnapshot{SyncStatus: e.media.Snapshot(), StoredRows: rows}, nil
}

// LifetimeStatus returns the lifetime ledger snapshot plus the stored
// row count.
func (e *Engine) LifetimeStatus(ctx context.Context) (models.StatusSnapshot, error) {
	rows, err := e.store.CountLifetimeRows(ctx)
	if err != nil {
		return models.StatusSnapshot{}, err
	}
	return models.StatusSnapshot{SyncStatus: e.lifetime.Snapshot(), StoredRows: rows}, nil
}

// StatusFor returns the snapshot for a domain label, or false for an
// unknown domain.
func (e *Engine) StatusFor(ctx context.Context, domain string) (models.StatusSnapshot, bool, error) {
	var (
		snap models.StatusSnapshot
		err  error
	)
	switch domain {
	case DomainHistory:
		snap, err = e.HistoryStatus(ctx)
	case DomainMedia:
		snap, err = e.MediaStatus(ctx)
	case DomainLifetime:
		snap, err = e.LifetimeStatus(ctx)
	default:
		return models.StatusSnapshot{}, false, nil
	}
	return snap, true, err
}

// ItemUserStats proxies per-user play statistics for one item on one
// server, identified by the server's slot label ("a" or "b").
func (e *Engine) ItemUserStats(ctx context.Context, slot, ratingKey string) ([]tautulli.TautulliItemUserStatRow, error) {
	for _, s := range e.servers {
		if slotForOrder(s.entry.Order) != slot {
			continue
		}
		stats, err := s.client.GetItemUserStats(ctx, ratingKey)
		if err != nil {
			return nil, remoteErr(s.entry.Name, "get_item_user_stats", err)
		}
		return stats.Response.Data, nil
	}
	return nil, fmt.Errorf("no server in slot %q", slot)
}

// serverEntries returns the configured entries in fan-out order.
func (e *Engine) serverEntries() []config.ServerEntry {
	entries := make([]config.ServerEntry, 0, len(e.servers))
	for _, s := range e.servers {
		entries = append(entries, s.entry)
	}
	return entries
}

// clientFor returns the client for a server entry.
func (e *Engine) clientFor(entry config.ServerEntry) ClientAPI {
	for _, s := range e.servers {
		if s.entry.Order == entry.Order {
			return s.client
		}
	}
	return nil
}
