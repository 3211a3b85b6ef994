// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/multiplexstats/multiplex/internal/logging"
)

// httpServerService adapts http.Server to the suture service contract:
// Serve blocks until the context is canceled, then drains in-flight
// requests within the shutdown timeout.
type httpServerService struct {
	server  *http.Server
	timeout time.Duration
}

func newHTTPServerService(server *http.Server, timeout time.Duration) *httpServerService {
	return &httpServerService{server: server, timeout: timeout}
}

func (s *httpServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown timed out, forcing close")
			_ = s.server.Close()
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *httpServerService) String() string { return "http-server" }
