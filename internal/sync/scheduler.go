// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
scheduler.go - Daily Refresh Scheduler

A suture-supervised service that triggers a lifetime play count
refresh once a day at the configured local hour. A refresh that finds
a run already in flight is skipped silently; the next day's trigger
tries again.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"time"

	"github.com/multiplexstats/multiplex/internal/logging"
)

// RefreshScheduler triggers the daily lifetime refresh. It implements
// suture.Service.
type RefreshScheduler struct {
	engine *Engine
	hour   int
	loc    *time.Location

	// now is replaceable for tests.
	now func() time.Time
}

// NewRefreshScheduler creates the scheduler for the engine's zone.
func NewRefreshScheduler(engine *Engine, hour int) *RefreshScheduler {
	return &RefreshScheduler{
		engine: engine,
		hour:   hour,
		loc:    engine.loc,
		now:    time.Now,
	}
}

// Serve runs until the context is cancelled, firing at the configured
// hour each day.
func (s *RefreshScheduler) Serve(ctx context.Context) error {
	for {
		next := nextRunTime(s.now().In(s.loc), s.hour)
		timer := time.NewTimer(time.Until(next))

		logging.Debug().
			Time("next", next).
			Msg("Daily refresh scheduled")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if s.engine.StartLifetimeSync(ctx) {
			logging.Info().Msg("Daily lifetime refresh triggered")
		} else {
			logging.Debug().Msg("Daily lifetime refresh skipped, sync already running")
		}
	}
}

func (s *RefreshScheduler) String() string {
	return "daily-refresh-scheduler"
}

// nextRunTime returns the next occurrence of hour:00 strictly after
// now, in now's location.
func nextRunTime(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
