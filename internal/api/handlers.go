// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package api

import (
	"context"

	"github.com/multiplexstats/multiplex/internal/models"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// SyncEngine is the slice of the sync engine the handlers need.
// *sync.Engine satisfies it.
type SyncEngine interface {
	StartHistorySync(ctx context.Context, kind models.SyncKind, days int) bool
	StartMediaSync(ctx context.Context) bool
	StartLifetimeSync(ctx context.Context) bool
	StatusFor(ctx context.Context, domain string) (models.StatusSnapshot, bool, error)
	ItemUserStats(ctx context.Context, slot, ratingKey string) ([]tautulli.TautulliItemUserStatRow, error)
	Ping(ctx context.Context) error
}

// Store is the read-side slice of the database the handlers need.
// *database.DB satisfies it.
type Store interface {
	QueryHistory(ctx context.Context, filter models.HistoryFilter) ([]*models.HistoryRecord, error)
	QueryCachedMedia(ctx context.Context, filter models.MediaFilter) ([]*models.CachedMediaItem, error)
	QueryLifetimeCounts(ctx context.Context, mediaType string) ([]*models.LifetimePlayCount, error)
	CountHistoryRows(ctx context.Context) (int64, error)
}

// Handler bundles the dependencies behind the HTTP endpoints.
type Handler struct {
	engine SyncEngine
	store  Store
}

// NewHandler creates a Handler over the given engine and store.
func NewHandler(engine SyncEngine, store Store) *Handler {
	return &Handler{engine: engine, store: store}
}
