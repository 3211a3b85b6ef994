// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// healthReport is the GET /api/v1/health payload.
type healthReport struct {
	Status string            `json:"status"` // healthy or degraded
	Checks map[string]string `json:"checks"`
}

// HealthLive handles GET /healthz. It answers as long as the process
// serves requests.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Health handles GET /api/v1/health. It verifies the database and the
// configured Tautulli servers, reporting degraded with a 503 when any
// check fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	report := healthReport{Status: "healthy", Checks: map[string]string{}}

	if _, err := h.store.CountHistoryRows(ctx); err != nil {
		report.Status = "degraded"
		report.Checks["database"] = err.Error()
	} else {
		report.Checks["database"] = "ok"
	}

	if err := h.engine.Ping(ctx); err != nil {
		report.Status = "degraded"
		report.Checks["tautulli"] = err.Error()
	} else {
		report.Checks["tautulli"] = "ok"
	}

	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondData(w, status, report, 0)
}
