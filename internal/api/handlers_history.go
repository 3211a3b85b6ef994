// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package api

import (
	"net/http"

	"github.com/multiplexstats/multiplex/internal/models"
)

// History handles GET /api/v1/history. Defaults to the newest 100 rows
// by start time.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := HistoryQueryRequest{
		ServerName: q.Get("server"),
		Username:   q.Get("user"),
		MediaType:  q.Get("media_type"),
		Search:     q.Get("search"),
		SortBy:     q.Get("sort"),
		Order:      q.Get("order"),
		Limit:      getIntParam(r, "limit", 100),
		Offset:     getIntParam(r, "offset", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "started"
	}
	filter := models.HistoryFilter{
		ServerName: req.ServerName,
		Username:   req.Username,
		MediaType:  req.MediaType,
		Search:     req.Search,
		After:      getInt64Param(r, "after", 0),
		Before:     getInt64Param(r, "before", 0),
		SortBy:     sortBy,
		SortDesc:   req.Order != "asc",
		Offset:     req.Offset,
		Limit:      req.Limit,
	}

	records, err := h.store.QueryHistory(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query history", err)
		return
	}

	respondData(w, http.StatusOK, records, len(records))
}
