// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
handlers_media.go - Cached Media and Per-Item Statistics Endpoints

GET /api/v1/media/movies and /api/v1/media/shows serve the merged
cross-server library cache. GET /api/v1/media/{slot}/items/{ratingKey}/users
proxies per-item user statistics from the named server (slot "a" or
"b"), since rating keys are only meaningful per server.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/multiplexstats/multiplex/internal/models"
)

// Movies handles GET /api/v1/media/movies.
func (h *Handler) Movies(w http.ResponseWriter, r *http.Request) {
	h.cachedMedia(w, r, "movie")
}

// Shows handles GET /api/v1/media/shows.
func (h *Handler) Shows(w http.ResponseWriter, r *http.Request) {
	h.cachedMedia(w, r, "show")
}

func (h *Handler) cachedMedia(w http.ResponseWriter, r *http.Request, mediaType string) {
	q := r.URL.Query()
	req := MediaQueryRequest{
		Search: q.Get("search"),
		SortBy: q.Get("sort"),
		Order:  q.Get("order"),
		Limit:  getIntParam(r, "limit", 100),
		Offset: getIntParam(r, "offset", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "title"
	}
	filter := models.MediaFilter{
		MediaType: mediaType,
		Search:    req.Search,
		SortBy:    sortBy,
		SortDesc:  req.Order == "desc",
		Offset:    req.Offset,
		Limit:     req.Limit,
	}

	items, err := h.store.QueryCachedMedia(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query cached media", err)
		return
	}

	respondData(w, http.StatusOK, items, len(items))
}

// ItemUserStats handles GET /api/v1/media/{slot}/items/{ratingKey}/users.
func (h *Handler) ItemUserStats(w http.ResponseWriter, r *http.Request) {
	req := ItemUserStatsRequest{
		Slot:      chi.URLParam(r, "slot"),
		RatingKey: chi.URLParam(r, "ratingKey"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	rows, err := h.engine.ItemUserStats(r.Context(), req.Slot, req.RatingKey)
	if err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to fetch item user statistics", err)
		return
	}

	respondData(w, http.StatusOK, rows, len(rows))
}
