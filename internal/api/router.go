// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rate limits per client IP. Sync triggers are stricter since each one
// can start remote-API-heavy work.
const (
	readRateLimit    = 300
	triggerRateLimit = 30
	rateLimitWindow  = time.Minute
)

// Router wires the handlers into a Chi mux.
type Router struct {
	handler *Handler
}

// NewRouter creates a Router over the given handler set.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Setup builds the full middleware and route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", router.handler.HealthLive)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(readRateLimit, rateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Get("/health", router.handler.Health)

		r.Route("/sync", func(r chi.Router) {
			r.With(httprate.Limit(triggerRateLimit, rateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP))).
				Group(func(r chi.Router) {
					r.Post("/history", router.handler.TriggerHistorySync)
					r.Post("/media", router.handler.TriggerMediaSync)
					r.Post("/lifetime", router.handler.TriggerLifetimeSync)
				})
			r.Get("/{domain}/status", router.handler.SyncStatus)
		})

		r.Get("/history", router.handler.History)

		r.Route("/media", func(r chi.Router) {
			r.Get("/movies", router.handler.Movies)
			r.Get("/shows", router.handler.Shows)
			r.Get("/{slot}/items/{ratingKey}/users", router.handler.ItemUserStats)
		})

		r.Get("/lifetime", router.handler.Lifetime)
	})

	return r
}
