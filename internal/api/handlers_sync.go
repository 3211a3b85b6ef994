// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
handlers_sync.go - Sync Trigger and Status Endpoints

POST /api/v1/sync/history   start a history sync (incremental, backfill, full)
POST /api/v1/sync/media     start a library media sync
POST /api/v1/sync/lifetime  start a lifetime play-count rebuild
GET  /api/v1/sync/{domain}/status

Triggers respond 202 Accepted when the run was started and 409 Conflict
when the domain already has a run in flight. The run itself proceeds in
the background; status is observed via the status endpoint.
*/
package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/models"
)

// syncAccepted is the 202 payload for a started run.
type syncAccepted struct {
	Domain  string `json:"domain"`
	Kind    string `json:"kind,omitempty"`
	Started bool   `json:"started"`
}

// TriggerHistorySync handles POST /api/v1/sync/history.
func (h *Handler) TriggerHistorySync(w http.ResponseWriter, r *http.Request) {
	req := SyncHistoryRequest{Kind: string(models.SyncKindIncremental)}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read request body", err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", err)
			return
		}
		if req.Kind == "" {
			req.Kind = string(models.SyncKindIncremental)
		}
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}
	kind := models.SyncKind(req.Kind)
	if kind == models.SyncKindBackfill && req.Days == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Backfill requires days", nil)
		return
	}

	if !h.engine.StartHistorySync(r.Context(), kind, req.Days) {
		respondSyncConflict(w, "history")
		return
	}

	logging.Info().Str("kind", req.Kind).Int("days", req.Days).Msg("History sync triggered")
	respondData(w, http.StatusAccepted, syncAccepted{Domain: "history", Kind: req.Kind, Started: true}, 0)
}

// TriggerMediaSync handles POST /api/v1/sync/media.
func (h *Handler) TriggerMediaSync(w http.ResponseWriter, r *http.Request) {
	if !h.engine.StartMediaSync(r.Context()) {
		respondSyncConflict(w, "media")
		return
	}

	logging.Info().Msg("Media sync triggered")
	respondData(w, http.StatusAccepted, syncAccepted{Domain: "media", Started: true}, 0)
}

// TriggerLifetimeSync handles POST /api/v1/sync/lifetime.
func (h *Handler) TriggerLifetimeSync(w http.ResponseWriter, r *http.Request) {
	if !h.engine.StartLifetimeSync(r.Context()) {
		respondSyncConflict(w, "lifetime")
		return
	}

	logging.Info().Msg("Lifetime sync triggered")
	respondData(w, http.StatusAccepted, syncAccepted{Domain: "lifetime", Started: true}, 0)
}

// SyncStatus handles GET /api/v1/sync/{domain}/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	snap, ok, err := h.engine.StatusFor(r.Context(), domain)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown sync domain", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read sync status", err)
		return
	}

	respondData(w, http.StatusOK, snap, 0)
}

func respondSyncConflict(w http.ResponseWriter, domain string) {
	respondJSON(w, http.StatusConflict, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    "SYNC_ALREADY_RUNNING",
			Message: "A " + domain + " sync is already in progress",
		},
	})
}

func respondValidationError(w http.ResponseWriter, apiErr *models.APIError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    apiErr,
	})
}
