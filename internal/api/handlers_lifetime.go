// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package api

import "net/http"

// Lifetime handles GET /api/v1/lifetime, optionally filtered by
// media_type (movie or show).
func (h *Handler) Lifetime(w http.ResponseWriter, r *http.Request) {
	req := LifetimeQueryRequest{MediaType: r.URL.Query().Get("media_type")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	counts, err := h.store.QueryLifetimeCounts(r.Context(), req.MediaType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query lifetime counts", err)
		return
	}

	respondData(w, http.StatusOK, counts, len(counts))
}
